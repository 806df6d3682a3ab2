package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLStorage implements Store on top of database/sql. Queries are written
// with ? placeholders and rebound for the driver.
type SQLStorage struct {
	db      *sqlx.DB
	dialect Dialect
	logger  internal.Logger
}

// NewSQLStorage wraps an open handle. It does not run migrations.
func NewSQLStorage(db *sqlx.DB, dialect Dialect, logger internal.Logger) *SQLStorage {
	return &SQLStorage{db: db, dialect: dialect, logger: logger}
}

func (p *SQLStorage) DB() *sqlx.DB { return p.db }

func (p *SQLStorage) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *SQLStorage) Close() error {
	return p.db.Close()
}

func (p *SQLStorage) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		p.logger.Errorf("storage: begin tx: %v", err)
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&sqlTx{tx: tx, dialect: p.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Errorf("storage: rollback: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		p.logger.Errorf("storage: commit: %v", err)
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func (p *SQLStorage) EnsureUser(ctx context.Context, user *internal.User) error {
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, p.db.Rebind(`INSERT INTO users (id, display_name, email, total_points, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`),
		user.ID, user.DisplayName, user.Email, user.TotalPoints.Round(1), createdAt.UTC())
	if err != nil {
		p.logger.Errorf("storage: ensure user %s: %v", user.ID, err)
		return fmt.Errorf("storage: ensure user: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx      *sqlx.Tx
	dialect Dialect
}

// lock appends the row-lock clause. SQLite transactions are opened with
// an immediate write lock instead.
func (t *sqlTx) lock(query string) string {
	if t.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	return t.tx.Rebind(query)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		// Without extended result codes only the primary code is reported.
		return code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- UserRepository ---
const userColumns = `id, display_name, email, total_points, created_at`

func (t *sqlTx) GetUser(ctx context.Context, userID string) (*internal.User, error) {
	var u internal.User
	err := t.tx.GetContext(ctx, &u, t.tx.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (t *sqlTx) LockUser(ctx context.Context, userID string) (*internal.User, error) {
	var u internal.User
	err := t.tx.GetContext(ctx, &u, t.lock(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (t *sqlTx) SetUserPoints(ctx context.Context, userID string, total decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE users SET total_points = ? WHERE id = ?`), total.Round(1), userID)
	if err != nil {
		return fmt.Errorf("storage: set user points: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- SessionRepository ---
const sessionColumns = `id, user_id, started_at, ended_at, status, total_sleep_minutes, sleep_score, mood, memo, white_noise_type, white_noise_volume, created_at`

func (t *sqlTx) ActiveSession(ctx context.Context, userID string) (*internal.SleepSession, error) {
	var s internal.SleepSession
	err := t.tx.GetContext(ctx, &s, t.lock(`SELECT `+sessionColumns+` FROM sleep_sessions
		WHERE user_id = ? AND status = 'running' AND ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`), userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (t *sqlTx) GetSession(ctx context.Context, userID, sessionID string) (*internal.SleepSession, error) {
	var s internal.SleepSession
	err := t.tx.GetContext(ctx, &s, t.lock(`SELECT `+sessionColumns+` FROM sleep_sessions WHERE id = ? AND user_id = ?`), sessionID, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (t *sqlTx) CreateSession(ctx context.Context, s *internal.SleepSession) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO sleep_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.UserID, s.StartedAt.UTC(), utcPtr(s.EndedAt), string(s.Status), s.TotalSleepMinutes, s.SleepScore,
		s.Mood, s.Memo, s.WhiteNoiseType, s.WhiteNoiseVolume, s.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateSession(ctx context.Context, s *internal.SleepSession) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE sleep_sessions SET
		ended_at = ?, status = ?, total_sleep_minutes = ?, sleep_score = ?,
		mood = ?, memo = ?, white_noise_type = ?, white_noise_volume = ?
		WHERE id = ? AND user_id = ?`),
		utcPtr(s.EndedAt), string(s.Status), s.TotalSleepMinutes, s.SleepScore,
		s.Mood, s.Memo, s.WhiteNoiseType, s.WhiteNoiseVolume, s.ID, s.UserID)
	if err != nil {
		return fmt.Errorf("storage: update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- BankRepository ---
const bankColumns = `id, user_id, day_key, claimed_points, intermediate_claimed_count, intermediate_claimed_points, created_at, updated_at`

func (t *sqlTx) LockDailyBank(ctx context.Context, userID, dayKey string, now time.Time) (*internal.DailyPointBank, error) {
	// A concurrent first insert for the same key is absorbed by ON CONFLICT;
	// the locking read below then returns whichever row won.
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO daily_point_banks (`+bankColumns+`)
		VALUES (?, ?, ?, 0, 0, 0, ?, ?) ON CONFLICT (user_id, day_key) DO NOTHING`),
		uuid.NewString(), userID, dayKey, now.UTC(), now.UTC())
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("storage: upsert daily bank: %w", err)
	}

	var b internal.DailyPointBank
	if err := t.tx.GetContext(ctx, &b, t.lock(`SELECT `+bankColumns+` FROM daily_point_banks WHERE user_id = ? AND day_key = ?`), userID, dayKey); err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (t *sqlTx) GetDailyBank(ctx context.Context, userID, dayKey string) (*internal.DailyPointBank, error) {
	var b internal.DailyPointBank
	err := t.tx.GetContext(ctx, &b, t.tx.Rebind(`SELECT `+bankColumns+` FROM daily_point_banks WHERE user_id = ? AND day_key = ?`), userID, dayKey)
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (t *sqlTx) UpdateDailyBank(ctx context.Context, b *internal.DailyPointBank) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE daily_point_banks SET
		claimed_points = ?, intermediate_claimed_count = ?, intermediate_claimed_points = ?, updated_at = ?
		WHERE user_id = ? AND day_key = ?`),
		b.ClaimedPoints.Round(1), b.IntermediateClaimedCount, b.IntermediateClaimedPoints.Round(1), b.UpdatedAt.UTC(),
		b.UserID, b.DayKey)
	if err != nil {
		return fmt.Errorf("storage: update daily bank: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- ClaimRepository ---
func (t *sqlTx) InsertIntermediateClaim(ctx context.Context, c *internal.IntermediateClaim) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO sleep_intermediate_claims
		(id, user_id, session_id, claim_sequence, points_awarded, claimed_at) VALUES (?, ?, ?, ?, ?, ?)`),
		c.ID, c.UserID, c.SessionID, c.Sequence, c.PointsAwarded.Round(1), c.ClaimedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("storage: insert intermediate claim: %w", err)
	}
	return nil
}

func (t *sqlTx) ListSessionClaims(ctx context.Context, sessionID string) ([]internal.IntermediateClaim, error) {
	claims := []internal.IntermediateClaim{}
	err := t.tx.SelectContext(ctx, &claims, t.tx.Rebind(`SELECT id, user_id, session_id, claim_sequence, points_awarded, claimed_at
		FROM sleep_intermediate_claims WHERE session_id = ? ORDER BY claim_sequence`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: list session claims: %w", err)
	}
	return claims, nil
}

// --- LedgerRepository ---
func (t *sqlTx) AppendLedgerEntry(ctx context.Context, e *internal.PointLedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`INSERT INTO user_point_logs
		(id, user_id, change, balance_after, type, source, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		e.ID, e.UserID, e.Change.Round(1), e.BalanceAfter.Round(1), string(e.Type), e.Source, e.SessionID, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage: append ledger entry: %w", err)
	}
	return nil
}

func (t *sqlTx) ListLedgerEntries(ctx context.Context, userID string, limit, offset int) ([]internal.PointLedgerEntry, int, error) {
	var total int
	if err := t.tx.GetContext(ctx, &total, t.tx.Rebind(`SELECT COUNT(*) FROM user_point_logs WHERE user_id = ?`), userID); err != nil {
		return nil, 0, fmt.Errorf("storage: count ledger entries: %w", err)
	}
	entries := []internal.PointLedgerEntry{}
	err := t.tx.SelectContext(ctx, &entries, t.tx.Rebind(`SELECT id, user_id, change, balance_after, type, source, session_id, created_at
		FROM user_point_logs WHERE user_id = ? ORDER BY entry_no DESC LIMIT ? OFFSET ?`), userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("storage: list ledger entries: %w", err)
	}
	return entries, total, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// --- Compile-time assertions ---
var _ Store = (*SQLStorage)(nil)
var _ Tx = (*sqlTx)(nil)
