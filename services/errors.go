package services

import (
	"errors"
	"fmt"
)

// Validation and business-rule errors are surfaced to callers as-is and
// never retried; handlers map them to 4xx responses.
var (
	ErrInvalidAmount         = errors.New("invalid XP amount")
	ErrSuspiciousActivity    = errors.New("suspicious activity detected")
	ErrConcurrentTransaction = errors.New("concurrent transaction conflict")
	ErrInvalidFeature        = errors.New("unknown feature")
	ErrFeatureAlreadyOwned   = errors.New("feature already owned")
	ErrPrerequisiteMissing   = errors.New("feature prerequisite not met")
	ErrAlreadyReacted        = errors.New("already reacted to this comment")
)

// InsufficientBalanceError carries balance context so handlers can tell the
// user exactly how short they are.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: need %d XP, have %d", e.Required, e.Available)
}
