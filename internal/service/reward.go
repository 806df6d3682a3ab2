package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

type ClaimRequest struct {
	AccumulatedPoints decimal.Decimal `json:"accumulated_points"`
	SessionID         string          `json:"session_id,omitempty" validate:"omitempty,uuid"`
}

// ParseClaimRequest reads a claim body. accumulated_points may be a JSON
// number or a numeric string; a missing or null amount parses as zero.
func ParseClaimRequest(raw map[string]json.RawMessage) (ClaimRequest, error) {
	var req ClaimRequest
	if v, ok := raw["accumulated_points"]; ok && !isNull(v) {
		if err := req.AccumulatedPoints.UnmarshalJSON(bytes.TrimSpace(v)); err != nil {
			return req, ErrInvalidAmount
		}
	}
	if v, ok := raw["session_id"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &req.SessionID); err != nil {
			return req, ErrInvalidSessionID
		}
	}
	return req, nil
}

func ValidateClaimRequest(req *ClaimRequest) error {
	if err := validate.Struct(req); err != nil {
		return ErrInvalidSessionID
	}
	if !req.AccumulatedPoints.IsPositive() {
		return ErrNoPointsToClaim
	}
	return nil
}

// AwardResult describes one successful credit and the bank afterwards.
type AwardResult struct {
	Awarded     decimal.Decimal `json:"points_earned"`
	TotalPoints decimal.Decimal `json:"total_points"`
	SessionID   *string         `json:"session_id,omitempty"`
	Sequence    int             `json:"claim_sequence,omitempty"`
	Bank        BankStatus      `json:"bank"`
}

// ClaimTimer credits accumulated plus the ad bonus as one all-or-nothing
// award. A running session is linked to the ledger entry when present but
// is not required.
func (s *Service) ClaimTimer(ctx context.Context, userID string, req ClaimRequest) (*AwardResult, error) {
	result, err := s.claimTimer(ctx, userID, req)
	s.observe(ChannelTimer, result, err)
	return result, err
}

func (s *Service) claimTimer(ctx context.Context, userID string, req ClaimRequest) (*AwardResult, error) {
	if err := ValidateClaimRequest(&req); err != nil {
		return nil, err
	}
	accumulated := req.AccumulatedPoints.Round(1)

	var result *AwardResult
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := lookupUser(ctx, tx, userID); err != nil {
			return err
		}
		now := s.now()
		var sessionID *string
		session, err := tx.ActiveSession(ctx, userID)
		switch {
		case err == nil:
			sessionID = &session.ID
		case errors.Is(err, storage.ErrNotFound):
			session = nil
		default:
			return err
		}
		if s.policy.EnforceAccrualCeiling {
			if err := s.checkAccrual(session, accumulated, now); err != nil {
				return err
			}
		}

		bank, err := tx.LockDailyBank(ctx, userID, DayKey(now, s.policy.Location), now)
		if err != nil {
			return err
		}
		candidate := accumulated.Add(s.policy.AdBonus)
		if err := s.checkCap(bank, candidate); err != nil {
			return err
		}
		bank.ClaimedPoints = bank.ClaimedPoints.Add(candidate)

		total, err := applyCredit(ctx, tx, bank, credit{
			userID:    userID,
			amount:    candidate,
			kind:      internal.LedgerTimerClaim,
			sessionID: sessionID,
		}, now)
		if err != nil {
			return err
		}
		result = &AwardResult{
			Awarded:     candidate,
			TotalPoints: total,
			SessionID:   sessionID,
			Bank:        s.bankStatus(bank),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClaimIntermediate credits a mid-session claim against the running session.
// At most MaxIntermediateClaims succeed per reward day and each gets the
// next sequence number.
func (s *Service) ClaimIntermediate(ctx context.Context, userID string, req ClaimRequest) (*AwardResult, error) {
	result, err := s.claimIntermediate(ctx, userID, req)
	s.observe(ChannelIntermediate, result, err)
	return result, err
}

func (s *Service) claimIntermediate(ctx context.Context, userID string, req ClaimRequest) (*AwardResult, error) {
	if err := ValidateClaimRequest(&req); err != nil {
		return nil, err
	}
	accumulated := req.AccumulatedPoints.Round(1)

	var result *AwardResult
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := lookupUser(ctx, tx, userID); err != nil {
			return err
		}
		now := s.now()
		session, err := tx.ActiveSession(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoActiveSession
		}
		if err != nil {
			return err
		}
		if req.SessionID != "" && req.SessionID != session.ID {
			return ErrNoActiveSession
		}
		if s.policy.EnforceAccrualCeiling {
			if err := s.checkAccrual(session, accumulated, now); err != nil {
				return err
			}
		}

		bank, err := tx.LockDailyBank(ctx, userID, DayKey(now, s.policy.Location), now)
		if err != nil {
			return err
		}
		if bank.IntermediateClaimedCount >= s.policy.MaxIntermediateClaims {
			return ErrIntermediateLimitReached
		}
		candidate := accumulated.Add(s.policy.AdBonus)
		if err := s.checkCap(bank, candidate); err != nil {
			return err
		}

		claim := &internal.IntermediateClaim{
			ID:            uuid.NewString(),
			UserID:        userID,
			SessionID:     session.ID,
			Sequence:      bank.IntermediateClaimedCount + 1,
			PointsAwarded: candidate,
			ClaimedAt:     now,
		}
		if err := tx.InsertIntermediateClaim(ctx, claim); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrClaimConflict
			}
			return err
		}
		bank.IntermediateClaimedCount++
		bank.IntermediateClaimedPoints = bank.IntermediateClaimedPoints.Add(candidate)

		sessionID := session.ID
		total, err := applyCredit(ctx, tx, bank, credit{
			userID:    userID,
			amount:    candidate,
			kind:      internal.LedgerIntermediateClaim,
			sessionID: &sessionID,
		}, now)
		if err != nil {
			return err
		}
		result = &AwardResult{
			Awarded:     candidate,
			TotalPoints: total,
			SessionID:   &sessionID,
			Sequence:    claim.Sequence,
			Bank:        s.bankStatus(bank),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) checkCap(bank *internal.DailyPointBank, candidate decimal.Decimal) error {
	if bank.Total().Add(candidate).GreaterThan(s.policy.DailyCap) {
		return &DailyLimitError{
			Available:  s.remaining(bank),
			Requested:  candidate,
			DailyLimit: s.policy.DailyCap,
		}
	}
	return nil
}

func (s *Service) checkAccrual(session *internal.SleepSession, accumulated decimal.Decimal, now time.Time) error {
	if session == nil {
		return ErrAccrualNotPlausible
	}
	minutes := int64(now.Sub(session.StartedAt).Minutes())
	if minutes < 0 {
		minutes = 0
	}
	ceiling := decimal.NewFromInt(minutes).Mul(s.policy.AccrualPerMinute)
	if accumulated.GreaterThan(ceiling) {
		return ErrAccrualNotPlausible
	}
	return nil
}

func (s *Service) observe(channel string, result *AwardResult, err error) {
	if err == nil {
		s.recorder.RecordAward(channel, result.Awarded.InexactFloat64())
		return
	}
	if reason := RejectionReason(err); reason != "" {
		s.recorder.RecordRejection(channel, reason)
	}
}

// RejectionReason maps a business-rule error to a short label. It returns
// an empty string for infrastructure errors.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit"
	case errors.Is(err, ErrIntermediateLimitReached):
		return "intermediate_limit"
	case errors.Is(err, ErrNoPointsToClaim):
		return "no_points"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrClaimConflict):
		return "conflict"
	case errors.Is(err, ErrAccrualNotPlausible):
		return "accrual"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	}
	return ""
}
