package domain

import (
	"errors"
	"time"
)

// Account errors
var (
	ErrAccountNotFound = errors.New("account not found")
)

// Account status constants
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusClosed    = "closed"
)

// ValidStatuses returns list of valid account statuses
func ValidStatuses() []string {
	return []string{StatusActive, StatusSuspended, StatusClosed}
}

// Account is the audited record. Fields carrying an audit tag are snapshotted
// when the account is loaded and diffed when it is saved; the tag value is the
// field name reported in change notifications.
type Account struct {
	ID          string     `json:"id" audit:"id,identity"`
	Email       string     `json:"email" audit:"email"`
	Name        string     `json:"name" audit:"name"`
	Status      string     `json:"status" audit:"status"`
	Balance     int64      `json:"balance" audit:"balance"`
	SuspendedAt *time.Time `json:"suspended_at" audit:"suspended_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateAccountRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type UpdateAccountRequest struct {
	Email   *string `json:"email"`
	Name    *string `json:"name"`
	Status  *string `json:"status"`
	Balance *int64  `json:"balance"`
}
