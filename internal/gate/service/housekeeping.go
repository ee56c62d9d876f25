package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tokengate/internal/gate/store"
)

// HousekeepingService periodically deletes expired refresh records. Expired
// records are already rejected on use; this only bounds table growth.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService returns a stopped service. A non-positive interval
// defaults to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately and then every Interval until Stop.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes refresh records that have expired and returns how many.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	n, err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, time.Now())
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
		return 0
	}

	s.Logger.Info("housekeeping cleanup completed", "refresh_tokens_deleted", n)
	return n
}
