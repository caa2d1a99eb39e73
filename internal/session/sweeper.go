// internal/session/sweeper.go
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweeper every ten minutes. The expression includes
// a seconds field.
const DefaultSchedule = "0 */10 * * * *"

// Sweeper removes expired sessions on a cron schedule
type Sweeper struct {
	store  *Store
	ttl    time.Duration
	logger *slog.Logger
	cron   *cron.Cron
}

// NewSweeper creates a sweeper that deletes sessions idle for longer than ttl.
// An empty schedule uses DefaultSchedule.
func NewSweeper(store *Store, ttl time.Duration, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	c := cron.New(cron.WithSeconds())
	s := &Sweeper{
		store:  store,
		ttl:    ttl,
		logger: logger,
		cron:   c,
	}

	if _, err := c.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parsing cleanup schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled. Running sweeps
// finish before Run returns.
func (s *Sweeper) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// Sweep runs one cleanup pass and returns the number of sessions removed.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.store.Cleanup(ctx, s.ttl)
	if err != nil {
		s.logger.Error("session cleanup failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("expired sessions removed", "count", n, "ttl", s.ttl.String())
	}
	return n
}
