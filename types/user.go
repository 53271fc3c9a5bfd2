package types

import "time"

// User represents an account in the system.
// It owns an ordered list of active session tokens.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address, unique across all users.
	Email string `json:"email" db:"email"`

	// Age is the user's age. Optional; zero when not provided.
	Age int `json:"age" db:"age"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Tokens is the list of active session tokens, newest appended last.
	// Duplicates are kept as-is; the list is never exposed in API responses.
	Tokens []string `json:"-" db:"tokens"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// NewUser carries the candidate fields for a registration.
type NewUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Age      int    `json:"age"`
}

// UserUpdate carries a partial update. Nil fields are left untouched.
// These four fields are the only ones a client may change.
type UserUpdate struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Age      *int    `json:"age"`
}

// IsUpdatableField reports whether a request key names a field
// that UserUpdate can carry.
func IsUpdatableField(name string) bool {
	switch name {
	case "name", "email", "password", "age":
		return true
	}
	return false
}
