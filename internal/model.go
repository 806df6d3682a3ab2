package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Points render as JSON numbers; quoted strings still decode.
	decimal.MarshalJSONWithoutQuotes = true
}

type User struct {
	ID          string          `json:"id" db:"id"`
	DisplayName string          `json:"display_name,omitempty" db:"display_name"`
	Email       string          `json:"email,omitempty" db:"email"`
	TotalPoints decimal.Decimal `json:"total_points" db:"total_points"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type SessionStatus string

const (
	SessionRunning SessionStatus = "running"
	SessionEnded   SessionStatus = "ended"
)

type SleepSession struct {
	ID                string        `json:"id" db:"id"`
	UserID            string        `json:"user_id" db:"user_id"`
	StartedAt         time.Time     `json:"started_at" db:"started_at"`
	EndedAt           *time.Time    `json:"ended_at" db:"ended_at"`
	Status            SessionStatus `json:"status" db:"status"`
	TotalSleepMinutes *int          `json:"total_sleep_minutes" db:"total_sleep_minutes"`
	SleepScore        *int          `json:"sleep_score" db:"sleep_score"`
	Mood              *string       `json:"mood" db:"mood"`
	Memo              *string       `json:"memo" db:"memo"`
	WhiteNoiseType    *string       `json:"white_noise_type" db:"white_noise_type"`
	WhiteNoiseVolume  *int          `json:"white_noise_volume" db:"white_noise_volume"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

func (s *SleepSession) Running() bool {
	return s.Status == SessionRunning && s.EndedAt == nil
}

// DailyPointBank aggregates the points a user was awarded during one
// noon-anchored day, per award channel.
type DailyPointBank struct {
	ID                        string          `json:"id" db:"id"`
	UserID                    string          `json:"user_id" db:"user_id"`
	DayKey                    string          `json:"day_key" db:"day_key"`
	ClaimedPoints             decimal.Decimal `json:"claimed_points" db:"claimed_points"`
	IntermediateClaimedCount  int             `json:"intermediate_claimed_count" db:"intermediate_claimed_count"`
	IntermediateClaimedPoints decimal.Decimal `json:"intermediate_claimed_points" db:"intermediate_claimed_points"`
	CreatedAt                 time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at" db:"updated_at"`
}

func (b *DailyPointBank) Total() decimal.Decimal {
	return b.ClaimedPoints.Add(b.IntermediateClaimedPoints)
}

type IntermediateClaim struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	SessionID     string          `json:"session_id" db:"session_id"`
	Sequence      int             `json:"sequence" db:"claim_sequence"`
	PointsAwarded decimal.Decimal `json:"points_awarded" db:"points_awarded"`
	ClaimedAt     time.Time       `json:"claimed_at" db:"claimed_at"`
}

type LedgerType string

const (
	LedgerSleepReward       LedgerType = "sleep_reward"
	LedgerTimerClaim        LedgerType = "sleep_timer_claim"
	LedgerIntermediateClaim LedgerType = "sleep_intermediate_claim"
)

// LedgerSourceSleep tags every entry written by the sleep reward engine.
const LedgerSourceSleep = "sleep"

// PointLedgerEntry is one row of the append-only balance history.
type PointLedgerEntry struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"user_id" db:"user_id"`
	Change       decimal.Decimal `json:"change" db:"change"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Type         LedgerType      `json:"type" db:"type"`
	Source       string          `json:"source" db:"source"`
	SessionID    *string         `json:"session_id,omitempty" db:"session_id"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
