// Package domain holds the error taxonomy shared by the service and
// handler layers. The handler layer maps these to HTTP status codes.
package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio_not_found")
	ErrPositionNotFound  = errors.New("position_not_found")
	ErrUserNotFound      = errors.New("user_not_found")
	ErrUserExists        = errors.New("user_already_exists")
	ErrWrongPassword     = errors.New("wrong_password")
)

// ValidationError represents a rejected trade or request input. It is
// always returned before any write happens.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PartialWriteError reports that a trade record was persisted but the
// follow-up portfolio update failed, leaving the store detectably
// inconsistent. TradeID identifies the record that made it in.
type PartialWriteError struct {
	TradeID string
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("trade %s written but portfolio update failed: %v", e.TradeID, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
