package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrDuplicate = errors.New("storage: duplicate key")
)

// Store is the transactional persistence boundary. All reward bookkeeping
// for one request happens inside a single WithinTx call; returning an error
// from fn rolls every write back.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	EnsureUser(ctx context.Context, user *internal.User) error
	Ping(ctx context.Context) error
	Close() error
}

type Tx interface {
	UserRepository
	SessionRepository
	BankRepository
	ClaimRepository
	LedgerRepository
}

type UserRepository interface {
	GetUser(ctx context.Context, userID string) (*internal.User, error)
	// LockUser reads the user row and holds it until the transaction ends.
	LockUser(ctx context.Context, userID string) (*internal.User, error)
	SetUserPoints(ctx context.Context, userID string, total decimal.Decimal) error
}

type SessionRepository interface {
	ActiveSession(ctx context.Context, userID string) (*internal.SleepSession, error)
	GetSession(ctx context.Context, userID, sessionID string) (*internal.SleepSession, error)
	// CreateSession returns ErrDuplicate when the user already has a running session.
	CreateSession(ctx context.Context, s *internal.SleepSession) error
	UpdateSession(ctx context.Context, s *internal.SleepSession) error
}

type BankRepository interface {
	// LockDailyBank returns the (user, dayKey) bank row, creating a zeroed
	// one first if needed, and holds it until the transaction ends.
	LockDailyBank(ctx context.Context, userID, dayKey string, now time.Time) (*internal.DailyPointBank, error)
	GetDailyBank(ctx context.Context, userID, dayKey string) (*internal.DailyPointBank, error)
	UpdateDailyBank(ctx context.Context, b *internal.DailyPointBank) error
}

type ClaimRepository interface {
	// InsertIntermediateClaim returns ErrDuplicate when (session, sequence) is taken.
	InsertIntermediateClaim(ctx context.Context, c *internal.IntermediateClaim) error
	ListSessionClaims(ctx context.Context, sessionID string) ([]internal.IntermediateClaim, error)
}

type LedgerRepository interface {
	AppendLedgerEntry(ctx context.Context, e *internal.PointLedgerEntry) error
	ListLedgerEntries(ctx context.Context, userID string, limit, offset int) ([]internal.PointLedgerEntry, int, error)
}
