package match_management

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 10 * time.Second

// Sweeper periodically expires handshakes whose confirmation window passed,
// so the deadline holds even when no client polls.
type Sweeper struct {
	coordinator *Coordinator
	schedule    string
	logger      *zap.Logger
	cron        *cron.Cron
}

func NewSweeper(coordinator *Coordinator, schedule string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		coordinator: coordinator,
		schedule:    schedule,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start schedules the sweep.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("expiry sweep started", zap.String("schedule", s.schedule))
	return nil
}

// RunOnce performs a single sweep and returns how many handshakes it expired.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.coordinator.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("expired overdue handshakes", zap.Int("count", n))
	}
	return n
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("expiry sweep stopped")
	}
}
