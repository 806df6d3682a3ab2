package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

// Field is an optional patch value. Set reports whether the key was present
// in the request; a present key with a nil Value clears the column.
type Field[T any] struct {
	Set   bool
	Value *T
}

// SessionPatch carries the user-editable session settings.
type SessionPatch struct {
	Mood             Field[string]
	Memo             Field[string]
	WhiteNoiseType   Field[string]
	WhiteNoiseVolume Field[int]
}

var textLimits = map[string]string{
	"mood":             "max=20",
	"memo":             "max=2000",
	"white_noise_type": "max=50",
}

// ParseSessionPatch decodes the known settings keys of a JSON object.
// Unknown keys are ignored. The volume accepts an integer or a numeric
// string; null or anything outside 0..100 is ErrInvalidVolume.
func ParseSessionPatch(raw map[string]json.RawMessage) (SessionPatch, error) {
	var p SessionPatch
	var err error
	if p.Mood, err = parseText(raw, "mood"); err != nil {
		return p, err
	}
	if p.Memo, err = parseText(raw, "memo"); err != nil {
		return p, err
	}
	if p.WhiteNoiseType, err = parseText(raw, "white_noise_type"); err != nil {
		return p, err
	}
	if v, ok := raw["white_noise_volume"]; ok {
		vol, err := parseVolume(v)
		if err != nil {
			return p, err
		}
		p.WhiteNoiseVolume = Field[int]{Set: true, Value: &vol}
	}
	return p, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func parseText(raw map[string]json.RawMessage, key string) (Field[string], error) {
	v, ok := raw[key]
	if !ok {
		return Field[string]{}, nil
	}
	if isNull(v) {
		return Field[string]{Set: true}, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return Field[string]{}, &SettingsError{Field: key, err: ErrInvalidSettings}
	}
	if err := validate.Var(s, textLimits[key]); err != nil {
		return Field[string]{}, &SettingsError{Field: key, err: ErrInvalidSettings}
	}
	return Field[string]{Set: true, Value: &s}, nil
}

var maxVolume = decimal.NewFromInt(100)

func parseVolume(v json.RawMessage) (int, error) {
	if isNull(v) {
		return 0, ErrInvalidVolume
	}
	var vol int
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, ErrInvalidVolume
		}
		vol = n
	} else {
		d, err := decimal.NewFromString(string(bytes.TrimSpace(v)))
		if err != nil || !d.IsInteger() {
			return 0, ErrInvalidVolume
		}
		// IntPart wraps outside int64.
		if d.IsNegative() || d.GreaterThan(maxVolume) {
			return 0, ErrInvalidVolume
		}
		vol = int(d.IntPart())
	}
	if err := validate.Var(vol, "gte=0,lte=100"); err != nil {
		return 0, ErrInvalidVolume
	}
	return vol, nil
}

func (p SessionPatch) apply(s *internal.SleepSession) {
	if p.Mood.Set {
		s.Mood = p.Mood.Value
	}
	if p.Memo.Set {
		s.Memo = p.Memo.Value
	}
	if p.WhiteNoiseType.Set {
		s.WhiteNoiseType = p.WhiteNoiseType.Value
	}
	if p.WhiteNoiseVolume.Set {
		s.WhiteNoiseVolume = p.WhiteNoiseVolume.Value
	}
}

// SleepScore derives the score of a finished session from its length.
func SleepScore(minutes int) int {
	score := 70 + minutes/10
	if score > 100 {
		return 100
	}
	return score
}

// EndOptions control the session-end award.
type EndOptions struct {
	// SkipAward ends the session without touching the bank or balance.
	SkipAward bool
}

type EndResult struct {
	Session *internal.SleepSession `json:"session"`
	Award   *AwardResult           `json:"award,omitempty"`
}

func (s *Service) StartSession(ctx context.Context, userID string, patch SessionPatch) (*internal.SleepSession, error) {
	var session *internal.SleepSession
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		if err := lookupUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ActiveSession(ctx, userID); err == nil {
			return ErrActiveSessionExists
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := s.now()
		session = &internal.SleepSession{
			ID:        uuid.NewString(),
			UserID:    userID,
			StartedAt: now,
			Status:    internal.SessionRunning,
			CreatedAt: now,
		}
		patch.apply(session)
		if err := tx.CreateSession(ctx, session); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return ErrActiveSessionExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ActiveSession returns the user's running session, or nil when there is none.
func (s *Service) ActiveSession(ctx context.Context, userID string) (*internal.SleepSession, error) {
	var session *internal.SleepSession
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		found, err := tx.ActiveSession(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		session = found
		return err
	})
	return session, err
}

func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*internal.SleepSession, error) {
	var session *internal.SleepSession
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		found, err := tx.GetSession(ctx, userID, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		session = found
		return err
	})
	return session, err
}

func (s *Service) UpdateSession(ctx context.Context, userID, sessionID string, patch SessionPatch) (*internal.SleepSession, error) {
	var session *internal.SleepSession
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		found, err := tx.GetSession(ctx, userID, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if !found.Running() {
			return ErrSessionNotRunning
		}
		patch.apply(found)
		if err := tx.UpdateSession(ctx, found); err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// EndSession finishes a running session, computes its length and score, and
// credits the session-end award in the same transaction. The award is
// clamped to the bank's remaining headroom and may be zero.
func (s *Service) EndSession(ctx context.Context, userID, sessionID string, opts EndOptions) (*EndResult, error) {
	var result *EndResult
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		session, err := tx.GetSession(ctx, userID, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if !session.Running() {
			return ErrSessionAlreadyEnded
		}

		now := s.now()
		minutes := int(now.Sub(session.StartedAt).Minutes())
		if minutes < 0 {
			minutes = 0
		}
		session.EndedAt = &now
		session.Status = internal.SessionEnded
		session.TotalSleepMinutes = &minutes
		if session.SleepScore == nil {
			score := SleepScore(minutes)
			session.SleepScore = &score
		}
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}

		result = &EndResult{Session: session}
		if opts.SkipAward {
			return nil
		}
		award, err := s.awardSessionEnd(ctx, tx, session, minutes, now)
		if err != nil {
			return err
		}
		result.Award = award
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Award != nil {
		s.recorder.RecordAward(ChannelSessionEnd, result.Award.Awarded.InexactFloat64())
		s.logger.Infof("session %s ended for user %s: %d min, awarded %s",
			sessionID, userID, *result.Session.TotalSleepMinutes, result.Award.Awarded.StringFixed(1))
	}
	return result, nil
}

func (s *Service) awardSessionEnd(ctx context.Context, tx storage.Tx, session *internal.SleepSession, minutes int, now time.Time) (*AwardResult, error) {
	dayKey := DayKey(now, s.policy.Location)
	bank, err := tx.LockDailyBank(ctx, session.UserID, dayKey, now)
	if err != nil {
		return nil, err
	}
	award := decimal.Min(decimal.NewFromInt(int64(minutes)), s.remaining(bank)).Round(1)
	bank.ClaimedPoints = bank.ClaimedPoints.Add(award)

	sessionID := session.ID
	total, err := applyCredit(ctx, tx, bank, credit{
		userID:    session.UserID,
		amount:    award,
		kind:      internal.LedgerSleepReward,
		sessionID: &sessionID,
	}, now)
	if err != nil {
		return nil, err
	}
	return &AwardResult{
		Awarded:     award,
		TotalPoints: total,
		SessionID:   &sessionID,
		Bank:        s.bankStatus(bank),
	}, nil
}
