package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

type Balance struct {
	UserID      string          `json:"user_id"`
	TotalPoints decimal.Decimal `json:"total_points"`
}

type HistoryPage struct {
	Items  []internal.PointLedgerEntry `json:"items"`
	Total  int                         `json:"total"`
	Limit  int                         `json:"limit"`
	Offset int                         `json:"offset"`
}

// RewardStatus is the snapshot a client needs to render the sleep screen.
type RewardStatus struct {
	TotalPoints    decimal.Decimal        `json:"total_points"`
	ActiveSession  *internal.SleepSession `json:"active_session"`
	ElapsedMinutes int                    `json:"elapsed_minutes"`
	AdBonus        decimal.Decimal        `json:"ad_bonus"`
	Bank           BankStatus             `json:"bank"`
}

func (s *Service) Balance(ctx context.Context, userID string) (*Balance, error) {
	var out *Balance
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		user, err := tx.GetUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		out = &Balance{UserID: user.ID, TotalPoints: user.TotalPoints}
		return nil
	})
	return out, err
}

// History lists ledger entries newest first. Out-of-range paging values are
// clamped rather than rejected.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) (*HistoryPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	page := &HistoryPage{Limit: limit, Offset: offset}
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		items, total, err := tx.ListLedgerEntries(ctx, userID, limit, offset)
		if err != nil {
			return err
		}
		page.Items = items
		page.Total = total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Status reads the balance, the running session and today's bank without
// creating any rows.
func (s *Service) Status(ctx context.Context, userID string) (*RewardStatus, error) {
	var out *RewardStatus
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		now := s.now()
		user, err := tx.GetUser(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		out = &RewardStatus{TotalPoints: user.TotalPoints, AdBonus: s.policy.AdBonus}

		session, err := tx.ActiveSession(ctx, userID)
		switch {
		case err == nil:
			out.ActiveSession = session
			if m := int(now.Sub(session.StartedAt).Minutes()); m > 0 {
				out.ElapsedMinutes = m
			}
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		bank, err := readBank(ctx, tx, userID, DayKey(now, s.policy.Location))
		if err != nil {
			return err
		}
		out.Bank = s.bankStatus(bank)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SessionClaims lists the intermediate claims recorded against a session.
func (s *Service) SessionClaims(ctx context.Context, userID, sessionID string) ([]internal.IntermediateClaim, error) {
	var claims []internal.IntermediateClaim
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetSession(ctx, userID, sessionID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		var err error
		claims, err = tx.ListSessionClaims(ctx, sessionID)
		return err
	})
	return claims, err
}
