package domain

import (
	"errors"
	"time"
)

var ErrBusinessExists = errors.New("business already exists for user")

type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Business is the profile a user sets up after their first sign-in.
// Its presence is the "has business" signal the session resolver gates on.
type Business struct {
	ID        string
	UserID    string
	Name      string
	Country   string
	Currency  string
	CreatedAt time.Time
}
