package authinfra

import (
	"context"
	"time"

	"github.com/xtown/projecthub/pkg/logx"
)

// Sweeper is a background task the cleanup service runs periodically.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupService periodically removes expired refresh tokens and OTP
// codes.
type CleanupService struct {
	sweepers map[string]Sweeper
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewCleanupService creates a cleanup service. Sweepers are named for
// logging.
func NewCleanupService(interval time.Duration, sweepers map[string]Sweeper) *CleanupService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupService{
		sweepers: sweepers,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to end it.
func (s *CleanupService) Start() {
	go s.run()
}

// Stop ends the sweep loop and waits for a running sweep to finish.
func (s *CleanupService) Stop() {
	close(s.stop)
	<-s.done
}

func (s *CleanupService) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// One sweep at startup clears anything left over from downtime.
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *CleanupService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	for name, sweeper := range s.sweepers {
		removed, err := sweeper.CleanupExpired(ctx)
		if err != nil {
			logx.WithError(err).WithField("sweeper", name).Error("cleanup sweep failed")
			continue
		}
		if removed > 0 {
			logx.WithFields(logx.Fields{"sweeper": name, "removed": removed}).
				Info("cleanup sweep completed")
		}
	}
}
