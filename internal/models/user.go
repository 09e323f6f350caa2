package models

import (
	"errors"
	"strings"
	"time"
)

// User here is only the operator surface (admins and support staff who gate
// release/refund/resolve). Customer and professional profiles live in the
// profile service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) Validate() error {
	if !strings.Contains(u.Email, "@") {
		return errors.New("invalid email")
	}
	if u.Role == "" {
		u.Role = "admin"
	}
	return nil
}
