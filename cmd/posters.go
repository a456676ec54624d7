/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cinerate/apiserver/internal/posters"
	"github.com/cinerate/apiserver/internal/server"
	"github.com/cinerate/apiserver/internal/storage"
	"github.com/cinerate/apiserver/types"
)

var postersCmd = &cobra.Command{
	Use:   "posters",
	Short: "Poster maintenance tasks",
}

var postersAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Store the matching poster path on every movie",
	Long: `Scans the configured poster sources once and stores the matching poster
URL on every movie whose current image path differs. Prints the result
as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		ctx := cmd.Context()

		deps, err := server.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			_ = deps.Close()
		}()

		// Batch runs act with administrator rights.
		result, err := deps.Reviews.AssignPosters(ctx, types.Identity{IsAdmin: true})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

var postersUploadCmd = &cobra.Command{
	Use:   "upload <dir>",
	Short: "Upload poster images from a local directory to the poster bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadRuntime()
		ctx := cmd.Context()

		st, err := storage.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = st.Close()
		}()
		if err := st.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket %s: %w", st.Bucket(), err)
		}

		src := posters.NewDirSource(args[0], "")
		names, err := src.List(ctx)
		if err != nil {
			return err
		}

		prefix := strings.Trim(cfg.Posters.Prefix, "/")
		uploaded := 0
		for _, name := range names {
			ext := strings.ToLower(filepath.Ext(name))
			if !isPosterExt(ext) {
				continue
			}
			if err := uploadFile(cmd, st, filepath.Join(args[0], name), path.Join(prefix, name), ext); err != nil {
				return err
			}
			uploaded++
			logger.Debug("poster uploaded", slog.String("name", name))
		}

		logger.Info("posters uploaded",
			slog.String("bucket", st.Bucket()),
			slog.Int("count", uploaded))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postersCmd)
	postersCmd.AddCommand(postersAssignCmd, postersUploadCmd)
}

func isPosterExt(ext string) bool {
	for _, candidate := range posters.Extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

func uploadFile(cmd *cobra.Command, st *storage.Storage, localPath, key, ext string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if err := st.Put(cmd.Context(), key, f, info.Size(), mime.TypeByExtension(ext)); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
