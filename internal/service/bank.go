package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

const dayKeyLayout = "2006-01-02"

// DayKey returns the reward day t belongs to. A reward day runs from 12:00
// to 11:59:59 of the following calendar day in loc, so any instant before
// noon is attributed to the previous calendar date.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	if local.Hour() < 12 {
		d--
	}
	return time.Date(y, m, d, 12, 0, 0, 0, loc).Format(dayKeyLayout)
}

// BankStatus is the client view of a user's daily bank.
type BankStatus struct {
	DayKey                      string          `json:"day_key"`
	DailyLimit                  decimal.Decimal `json:"daily_limit"`
	ClaimedPoints               decimal.Decimal `json:"claimed_points"`
	IntermediateClaimedCount    int             `json:"intermediate_claimed_count"`
	IntermediateClaimedPoints   decimal.Decimal `json:"intermediate_claimed_points"`
	TodayTotal                  decimal.Decimal `json:"today_total"`
	RemainingPoints             decimal.Decimal `json:"remaining_points"`
	MaxIntermediateClaims       int             `json:"max_intermediate_claims"`
	RemainingIntermediateClaims int             `json:"remaining_intermediate_claims"`
}

func (s *Service) remaining(b *internal.DailyPointBank) decimal.Decimal {
	r := s.policy.DailyCap.Sub(b.Total())
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

func (s *Service) bankStatus(b *internal.DailyPointBank) BankStatus {
	left := s.policy.MaxIntermediateClaims - b.IntermediateClaimedCount
	if left < 0 {
		left = 0
	}
	return BankStatus{
		DayKey:                      b.DayKey,
		DailyLimit:                  s.policy.DailyCap,
		ClaimedPoints:               b.ClaimedPoints,
		IntermediateClaimedCount:    b.IntermediateClaimedCount,
		IntermediateClaimedPoints:   b.IntermediateClaimedPoints,
		TodayTotal:                  b.Total(),
		RemainingPoints:             s.remaining(b),
		MaxIntermediateClaims:       s.policy.MaxIntermediateClaims,
		RemainingIntermediateClaims: left,
	}
}

// readBank returns the bank for dayKey without creating it.
func readBank(ctx context.Context, tx storage.Tx, userID, dayKey string) (*internal.DailyPointBank, error) {
	b, err := tx.GetDailyBank(ctx, userID, dayKey)
	if errors.Is(err, storage.ErrNotFound) {
		return &internal.DailyPointBank{
			UserID:                    userID,
			DayKey:                    dayKey,
			ClaimedPoints:             decimal.Zero,
			IntermediateClaimedPoints: decimal.Zero,
		}, nil
	}
	return b, err
}

// lookupUser fails with ErrUserNotFound before any row referencing the
// user is written.
func lookupUser(ctx context.Context, tx storage.Tx, userID string) error {
	_, err := tx.GetUser(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

type credit struct {
	userID    string
	amount    decimal.Decimal
	kind      internal.LedgerType
	sessionID *string
}

// applyCredit adds the amount to the user's balance, appends the ledger
// entry and persists the bank. It must run inside the transaction that
// locked the bank.
func applyCredit(ctx context.Context, tx storage.Tx, bank *internal.DailyPointBank, c credit, now time.Time) (decimal.Decimal, error) {
	user, err := tx.LockUser(ctx, c.userID)
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, ErrUserNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	total := user.TotalPoints.Add(c.amount).Round(1)
	if err := tx.SetUserPoints(ctx, c.userID, total); err != nil {
		return decimal.Zero, err
	}
	entry := &internal.PointLedgerEntry{
		ID:           uuid.NewString(),
		UserID:       c.userID,
		Change:       c.amount,
		BalanceAfter: total,
		Type:         c.kind,
		Source:       internal.LedgerSourceSleep,
		SessionID:    c.sessionID,
		CreatedAt:    now,
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return decimal.Zero, err
	}
	bank.UpdatedAt = now
	if err := tx.UpdateDailyBank(ctx, bank); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
