// Package sweeper reclaims capacity from holds whose expiry has passed.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/models"

	"github.com/robfig/cron/v3"
)

var ErrAlreadyRunning = errors.New("sweep already running")

const defaultPublishTimeout = 5 * time.Second

type Purger interface {
	PurgeExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.ReservationEvent) error
}

type Observer interface {
	ObserveSweep(purged int, d time.Duration, err error)
}

type Sweeper struct {
	log       *slog.Logger
	purger    Purger
	publisher Publisher
	observer  Observer
	now       func() time.Time
	interval  time.Duration

	// bounds each expiry message independently of the sweep deadline
	publishTimeout time.Duration

	cron    *cron.Cron
	running atomic.Bool
}

type Option func(*Sweeper)

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Sweeper) {
		s.publisher = p
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		s.publishTimeout = d
	}
}

func WithObserver(o Observer) Option {
	return func(s *Sweeper) {
		s.observer = o
	}
}

func New(log *slog.Logger, purger Purger, interval time.Duration, opts ...Option) *Sweeper {
	log = log.With(slog.String("component", "sweeper"))

	s := &Sweeper{
		log:            log,
		purger:         purger,
		now:            func() time.Time { return time.Now().UTC() },
		interval:       interval,
		publishTimeout: defaultPublishTimeout,
		cron: cron.New(
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log})),
			cron.WithLogger(cronLogger{log: log}),
		),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start schedules a sweep every interval. Overlapping ticks are skipped.
func (s *Sweeper) Start() error {
	const op = "sweeper.Start"

	if s.interval <= 0 {
		return fmt.Errorf("%s: interval must be positive, got %s", op, s.interval)
	}

	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()

		// errors are logged inside; the next tick retries
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cron.Start()

	s.log.Info("sweeper started", slog.String("interval", s.interval.String()))

	return nil
}

// Stop prevents new sweeps and waits for a running one until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("sweeper stop timed out")
	}
}

// RunOnce deletes every hold expired at the current time in one ledger call
// and returns how many were reclaimed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	const op = "sweeper.RunOnce"

	if !s.running.CompareAndSwap(false, true) {
		return 0, fmt.Errorf("%s: %w", op, ErrAlreadyRunning)
	}
	defer s.running.Store(false)

	start := time.Now()
	now := s.now()

	purged, err := s.purger.PurgeExpiredHolds(ctx, now)
	if s.observer != nil {
		s.observer.ObserveSweep(len(purged), time.Since(start), err)
	}
	if err != nil {
		s.log.Error("failed to purge expired holds", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if len(purged) > 0 {
		s.log.Info("purged expired holds", slog.Int("count", len(purged)))
	}

	s.publishExpired(ctx, purged, now)

	return len(purged), nil
}

// publishExpired announces rows that are already deleted, so it must not be
// cut short by the sweep deadline.
func (s *Sweeper) publishExpired(ctx context.Context, purged []models.Reservation, now time.Time) {
	if s.publisher == nil {
		return
	}

	base := context.WithoutCancel(ctx)

	for _, r := range purged {
		ev := models.NewReservationEvent(models.LifecycleExpired, r, now)

		pubCtx, cancel := context.WithTimeout(base, s.publishTimeout)
		err := s.publisher.Publish(pubCtx, ev)
		cancel()

		if err != nil {
			s.log.Warn("failed to publish expiry",
				slog.String("reservation_id", r.ID.String()),
				sl.Err(err),
			)
		}
	}
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{sl.Err(err)}, keysAndValues...)...)
}
