package manager

import (
	"time"

	"go.uber.org/zap"
)

// Sweeper runs the periodic maintenance pass that reclaims empty rooms.
// It implements the server.Service interface.
type Sweeper struct {
	mgr      *Manager
	interval time.Duration
	logger   *zap.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper that maintains mgr every interval.
//
// Precondition: mgr and logger must be non-nil; interval must be positive.
func NewSweeper(mgr *Manager, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		mgr:      mgr,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start blocks running maintenance passes until Stop is called.
func (s *Sweeper) Start() error {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			before := s.mgr.Len()
			s.mgr.Maintain()
			if reclaimed := before - s.mgr.Len(); reclaimed > 0 {
				s.logger.Info("maintenance pass reclaimed rooms",
					zap.Int("reclaimed", reclaimed),
				)
			}
		case <-s.stop:
			return nil
		}
	}
}

// Stop ends the maintenance loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
