package types

import "time"

// User represents an account in the system.
// It contains identity, moderation state, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// IsAdmin grants the moderation capabilities: flagging offenses,
	// overwriting offense counts, and deleting reviews.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// OffenseCount is the number of administrator-flagged violations.
	// It never goes below zero and only decreases through an explicit
	// administrator overwrite.
	OffenseCount int `json:"offense_count" db:"offense_count"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Identity is the already-authenticated caller handed to every core
// operation. It is resolved once per request and never mutated.
type Identity struct {
	UserID       int
	IsAdmin      bool
	OffenseCount int
}

// IdentityOf builds the per-call identity for u.
func IdentityOf(u User) Identity {
	return Identity{
		UserID:       u.ID,
		IsAdmin:      u.IsAdmin,
		OffenseCount: u.OffenseCount,
	}
}

// Offender is a user with at least one recorded offense, as listed for
// administrators.
type Offender struct {
	ID           int      `json:"id" db:"id"`
	Username     string   `json:"username" db:"username"`
	Email        string   `json:"email" db:"email"`
	OffenseCount int      `json:"offense_count" db:"offense_count"`
	Standing     Standing `json:"standing" db:"-"`
}

// OffenseResult reports a user's offense count after a moderation action.
type OffenseResult struct {
	UserID       int      `json:"user_id" db:"id"`
	OffenseCount int      `json:"offense_count" db:"offense_count"`
	Standing     Standing `json:"standing" db:"-"`
}
