package service

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

var validate = validator.New()

// Award channels, used as metric labels.
const (
	ChannelSessionEnd   = "session_end"
	ChannelTimer        = "timer"
	ChannelIntermediate = "intermediate"
)

// AwardRecorder observes award outcomes. The metrics package provides the
// production implementation.
type AwardRecorder interface {
	RecordAward(channel string, points float64)
	RecordRejection(channel, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAward(string, float64)      {}
func (nopRecorder) RecordRejection(string, string) {}

// Service implements session tracking and the three reward channels on top
// of a transactional Store.
type Service struct {
	store    storage.Store
	policy   Policy
	logger   internal.Logger
	nowFn    func() time.Time
	recorder AwardRecorder
}

type Option func(*Service)

func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.nowFn = fn }
}

func WithRecorder(r AwardRecorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

func New(store storage.Store, policy Policy, logger internal.Logger, opts ...Option) *Service {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	s := &Service{
		store:    store,
		policy:   policy,
		logger:   logger,
		nowFn:    time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) now() time.Time {
	return s.nowFn().UTC()
}
