package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal/config"
)

const (
	DefaultDailyCap              = 200
	DefaultMaxIntermediateClaims = 5
	DefaultAdBonus               = 10
)

// Policy holds the reward constants. They are shared by every award
// channel, so a single value is passed to the Service.
type Policy struct {
	DailyCap              decimal.Decimal
	MaxIntermediateClaims int
	AdBonus               decimal.Decimal
	Location              *time.Location

	// When EnforceAccrualCeiling is set, a claimed accumulated amount may not
	// exceed the running session's elapsed minutes times AccrualPerMinute.
	EnforceAccrualCeiling bool
	AccrualPerMinute      decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		DailyCap:              decimal.NewFromInt(DefaultDailyCap),
		MaxIntermediateClaims: DefaultMaxIntermediateClaims,
		AdBonus:               decimal.NewFromInt(DefaultAdBonus),
		Location:              time.UTC,
		AccrualPerMinute:      decimal.NewFromInt(1),
	}
}

func PolicyFromConfig(cfg *config.Config) Policy {
	p := DefaultPolicy()
	p.Location = cfg.Location()
	p.EnforceAccrualCeiling = cfg.EnforceAccrualCeiling
	p.AccrualPerMinute = decimal.NewFromFloat(cfg.AccrualPerMinute)
	return p
}
