package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

// FileStorage keeps all state in memory and persists a JSON snapshot to
// dataFile through a debounced save worker. Transactions run one at a time
// against a copy of the state that only replaces the live state on success.
type FileStorage struct {
	state        *fileState
	mu           sync.Mutex
	dataFile     string
	saveChan     chan struct{}
	shutdownChan chan struct{}
	closeOnce    sync.Once
	saveDelay    time.Duration
	logger       internal.Logger
}

type fileState struct {
	Users    map[string]*internal.User           `json:"users"`
	Sessions map[string]*internal.SleepSession   `json:"sessions"`
	Banks    map[string]*internal.DailyPointBank `json:"banks"` // userID|dayKey -> bank
	Claims   []*internal.IntermediateClaim       `json:"claims"`
	Ledger   []*internal.PointLedgerEntry        `json:"ledger"`
}

func newFileState() *fileState {
	return &fileState{
		Users:    make(map[string]*internal.User),
		Sessions: make(map[string]*internal.SleepSession),
		Banks:    make(map[string]*internal.DailyPointBank),
	}
}

// clone copies the containers. Rows are never mutated in place, so sharing
// the row pointers between the copies is safe.
func (st *fileState) clone() *fileState {
	return &fileState{
		Users:    maps.Clone(st.Users),
		Sessions: maps.Clone(st.Sessions),
		Banks:    maps.Clone(st.Banks),
		Claims:   slices.Clone(st.Claims),
		Ledger:   slices.Clone(st.Ledger),
	}
}

// NewFileStorage loads dataFile if it exists. An empty path keeps the
// store purely in memory.
func NewFileStorage(dataFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		state:        newFileState(),
		dataFile:     dataFile,
		saveChan:     make(chan struct{}, 1),
		shutdownChan: make(chan struct{}),
		saveDelay:    500 * time.Millisecond,
		logger:       logger,
	}
	if dataFile == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(dataFile), 0755); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		logger.Errorf("storage: failed to load %s: %v", dataFile, err)
		return nil, err
	}
	go s.saveWorker()
	return s, nil
}

func NewMemoryStorage(logger internal.Logger) *FileStorage {
	s, _ := NewFileStorage("", logger)
	return s
}

func (s *FileStorage) load() error {
	file, err := os.Open(s.dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	st := newFileState()
	if err := json.NewDecoder(file).Decode(st); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if st.Users == nil {
		st.Users = make(map[string]*internal.User)
	}
	if st.Sessions == nil {
		st.Sessions = make(map[string]*internal.SleepSession)
	}
	if st.Banks == nil {
		st.Banks = make(map[string]*internal.DailyPointBank)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func (s *FileStorage) save() error {
	if s.dataFile == "" {
		return nil
	}
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	return atomicWriteFileJSON(s.dataFile, st)
}

func (s *FileStorage) saveWorker() {
	timer := time.NewTimer(s.saveDelay)
	defer timer.Stop()

	for {
		select {
		case <-s.saveChan:
			timer.Reset(s.saveDelay)
		case <-timer.C:
			if err := s.save(); err != nil {
				s.logger.Errorf("storage: error saving %s: %v", s.dataFile, err)
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *FileStorage) Close() error {
	if s.dataFile == "" {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownChan)
		// Save pending data synchronously on shutdown
		err = s.save()
	})
	return err
}

func (s *FileStorage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *FileStorage) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(&fileTx{st: work}); err != nil {
		return err
	}
	s.state = work
	if s.dataFile != "" {
		select {
		case s.saveChan <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *FileStorage) EnsureUser(ctx context.Context, user *internal.User) error {
	return s.WithinTx(ctx, func(tx Tx) error {
		ft := tx.(*fileTx)
		if _, ok := ft.st.Users[user.ID]; ok {
			return nil
		}
		u := *user
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		ft.st.Users[u.ID] = &u
		return nil
	})
}

type fileTx struct {
	st *fileState
}

func bankKey(userID, dayKey string) string {
	return userID + "|" + dayKey
}

// --- UserRepository ---
func (t *fileTx) GetUser(ctx context.Context, userID string) (*internal.User, error) {
	return t.LockUser(ctx, userID)
}

func (t *fileTx) LockUser(_ context.Context, userID string) (*internal.User, error) {
	u, ok := t.st.Users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *fileTx) SetUserPoints(_ context.Context, userID string, total decimal.Decimal) error {
	u, ok := t.st.Users[userID]
	if !ok {
		return ErrNotFound
	}
	cp := *u
	cp.TotalPoints = total
	t.st.Users[userID] = &cp
	return nil
}

// --- SessionRepository ---
func (t *fileTx) ActiveSession(_ context.Context, userID string) (*internal.SleepSession, error) {
	var latest *internal.SleepSession
	for _, s := range t.st.Sessions {
		if s.UserID != userID || !s.Running() {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (t *fileTx) GetSession(_ context.Context, userID, sessionID string) (*internal.SleepSession, error) {
	s, ok := t.st.Sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (t *fileTx) CreateSession(ctx context.Context, s *internal.SleepSession) error {
	if _, ok := t.st.Sessions[s.ID]; ok {
		return ErrDuplicate
	}
	if s.Status == internal.SessionRunning {
		if _, err := t.ActiveSession(ctx, s.UserID); err == nil {
			return ErrDuplicate
		}
	}
	cp := *s
	t.st.Sessions[s.ID] = &cp
	return nil
}

func (t *fileTx) UpdateSession(_ context.Context, s *internal.SleepSession) error {
	existing, ok := t.st.Sessions[s.ID]
	if !ok || existing.UserID != s.UserID {
		return ErrNotFound
	}
	cp := *s
	t.st.Sessions[s.ID] = &cp
	return nil
}

// --- BankRepository ---
func (t *fileTx) LockDailyBank(_ context.Context, userID, dayKey string, now time.Time) (*internal.DailyPointBank, error) {
	key := bankKey(userID, dayKey)
	b, ok := t.st.Banks[key]
	if !ok {
		b = &internal.DailyPointBank{
			ID:                        uuid.NewString(),
			UserID:                    userID,
			DayKey:                    dayKey,
			ClaimedPoints:             decimal.Zero,
			IntermediateClaimedPoints: decimal.Zero,
			CreatedAt:                 now,
			UpdatedAt:                 now,
		}
		t.st.Banks[key] = b
	}
	cp := *b
	return &cp, nil
}

func (t *fileTx) GetDailyBank(_ context.Context, userID, dayKey string) (*internal.DailyPointBank, error) {
	b, ok := t.st.Banks[bankKey(userID, dayKey)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *fileTx) UpdateDailyBank(_ context.Context, b *internal.DailyPointBank) error {
	key := bankKey(b.UserID, b.DayKey)
	if _, ok := t.st.Banks[key]; !ok {
		return ErrNotFound
	}
	cp := *b
	t.st.Banks[key] = &cp
	return nil
}

// --- ClaimRepository ---
func (t *fileTx) InsertIntermediateClaim(_ context.Context, c *internal.IntermediateClaim) error {
	for _, existing := range t.st.Claims {
		if existing.SessionID == c.SessionID && existing.Sequence == c.Sequence {
			return ErrDuplicate
		}
	}
	cp := *c
	t.st.Claims = append(t.st.Claims, &cp)
	return nil
}

func (t *fileTx) ListSessionClaims(_ context.Context, sessionID string) ([]internal.IntermediateClaim, error) {
	claims := []internal.IntermediateClaim{}
	for _, c := range t.st.Claims {
		if c.SessionID == sessionID {
			claims = append(claims, *c)
		}
	}
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].Sequence < claims[j].Sequence
	})
	return claims, nil
}

// --- LedgerRepository ---
func (t *fileTx) AppendLedgerEntry(_ context.Context, e *internal.PointLedgerEntry) error {
	cp := *e
	t.st.Ledger = append(t.st.Ledger, &cp)
	return nil
}

func (t *fileTx) ListLedgerEntries(_ context.Context, userID string, limit, offset int) ([]internal.PointLedgerEntry, int, error) {
	entries := []internal.PointLedgerEntry{}
	// Ledger is append-only, so walking it backwards yields newest first.
	for i := len(t.st.Ledger) - 1; i >= 0; i-- {
		if t.st.Ledger[i].UserID == userID {
			entries = append(entries, *t.st.Ledger[i])
		}
	}
	total := len(entries)
	if offset >= total {
		return []internal.PointLedgerEntry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return entries[offset:end], total, nil
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)
var _ Tx = (*fileTx)(nil)
