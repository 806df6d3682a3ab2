package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrActiveSessionExists      = errors.New("an active sleep session already exists")
	ErrNoActiveSession          = errors.New("no active sleep session")
	ErrSessionNotFound          = errors.New("sleep session not found")
	ErrSessionNotRunning        = errors.New("sleep session is not running")
	ErrSessionAlreadyEnded      = errors.New("sleep session already ended")
	ErrInvalidVolume            = errors.New("white_noise_volume must be an integer between 0 and 100")
	ErrInvalidSettings          = errors.New("invalid session settings")
	ErrInvalidAmount            = errors.New("accumulated_points must be a number")
	ErrInvalidSessionID         = errors.New("session_id must be a UUID string")
	ErrNoPointsToClaim          = errors.New("no points to claim")
	ErrIntermediateLimitReached = errors.New("intermediate claim limit reached for today")
	ErrDailyLimitExceeded       = errors.New("daily point limit exceeded")
	ErrClaimConflict            = errors.New("intermediate claim already recorded")
	ErrAccrualNotPlausible      = errors.New("accumulated points exceed what the session could have accrued")
)

// DailyLimitError reports a claim rejected by the daily cap together with
// the headroom that was left.
type DailyLimitError struct {
	Available  decimal.Decimal
	Requested  decimal.Decimal
	DailyLimit decimal.Decimal
}

func (e *DailyLimitError) Error() string {
	return fmt.Sprintf("daily point limit exceeded: requested %s, available %s of %s",
		e.Requested.StringFixed(1), e.Available.StringFixed(1), e.DailyLimit.StringFixed(0))
}

func (e *DailyLimitError) Unwrap() error {
	return ErrDailyLimitExceeded
}

// SettingsError names the offending field of a session patch.
type SettingsError struct {
	Field string
	err   error
}

func (e *SettingsError) Error() string {
	return e.Field + ": " + e.err.Error()
}

func (e *SettingsError) Unwrap() error {
	return e.err
}
