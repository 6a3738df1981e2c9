// Package coach turns a user's workout history into behaviour metrics, plan adjustments, transformation
// predictions and weekly reports.
package coach

import (
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/metrics"
	"github.com/myrjola/petrcoach/internal/sqlite"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

// Service is the entry point of the coaching engine. It is safe for concurrent use.
type Service struct {
	repo                *repository
	logger              *slog.Logger
	clock               timewindow.Resolver
	narrator            Narrator
	narrativeDailyLimit int
	metrics             *metrics.Manager
}

// Option configures a Service.
type Option func(*Service)

// WithNarrator enables narratives written by n. Without it weekly reports use the fallback sentence.
func WithNarrator(n Narrator) Option {
	return func(s *Service) {
		s.narrator = n
	}
}

// WithNarrativeDailyLimit caps narrator calls per user per UTC day. Zero disables the cap.
func WithNarrativeDailyLimit(limit int) Option {
	return func(s *Service) {
		s.narrativeDailyLimit = limit
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.clock = timewindow.NewResolver(now)
	}
}

// WithMetrics reports narrative counts to m.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a new coaching service.
func NewService(db *sqlite.Database, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:                newRepository(db, logger),
		logger:              logger,
		clock:               timewindow.NewResolver(nil),
		narrator:            nil,
		narrativeDailyLimit: 0,
		metrics:             nil,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
