package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cinerate/apiserver/internal/store"
	"github.com/cinerate/apiserver/types"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user or
// a wrong password; the two are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService encapsulates account use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates a non-admin account with a bcrypt hashed password. A
// taken username or email surfaces as store.ErrConflict.
func (s *UserService) Register(ctx context.Context, username, email, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, types.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
	})
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Identity resolves the per-request identity of a user from current state,
// so offense changes apply to the very next request.
func (s *UserService) Identity(ctx context.Context, userID int) (types.Identity, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.Identity{}, err
	}
	return types.IdentityOf(user), nil
}
