package utils

import (
	"errors"
	"fmt"
	"time"
)

// Common application errors used across services.
var (
	ErrDuplicateCode        = errors.New("DUPLICATE_CODE")
	ErrDuplicateSlug        = errors.New("DUPLICATE_SLUG")
	ErrNotFound             = errors.New("NOT_FOUND")
	ErrCategoryInUse        = errors.New("CATEGORY_IN_USE")
	ErrValidation           = errors.New("VALIDATION_ERROR")
	ErrAuth                 = errors.New("AUTH_FAILED")
	ErrAuthInProgress       = errors.New("AUTH_IN_PROGRESS")
	ErrLockedOut            = errors.New("LOCKED_OUT")
	ErrInvalidToken         = errors.New("INVALID_TOKEN")
	ErrSessionExpired       = errors.New("SESSION_EXPIRED")
	ErrConfirmationRequired = errors.New("CONFIRMATION_REQUIRED")
)

// RemoteError is a failure reported by the remote store (network, constraint,
// missing table...). It is never retried; the caller decides what to show.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// NewRemoteError wraps err as a RemoteError for op. Nil stays nil and errors
// that already are RemoteErrors are returned unchanged.
func NewRemoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

// Cascade stages reported by CascadeError.
const (
	StageCategory = "category"
	StageProducts = "products"
)

// CascadeError reports which half of a category+products update failed.
type CascadeError struct {
	Stage string
	Err   error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade failed at %s stage: %v", e.Stage, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }

// LockoutError is returned while the admin login is locked.
type LockoutError struct {
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("too many failed attempts, try again in %d:%02d", secs/60, secs%60)
}

func (e *LockoutError) Unwrap() error { return ErrLockedOut }
