package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/jobtrust/internal/types"
)

// User represents a stored account
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Profession   *string   `json:"profession"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	PasswordSet  bool      `json:"password_set" db:"password_set"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToTypes converts to the API user, dropping the password hash.
func (u *User) ToTypes() *types.User {
	if u == nil {
		return nil
	}
	return &types.User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Profession:  u.Profession,
		PasswordSet: u.PasswordSet,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UserUpdate holds optional profile changes. Nil fields are left as they are.
type UserUpdate struct {
	Name       *string
	Profession *string
}
