package ownership_refresh

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

const (
	DefaultSchedule = "@every 30s"
	refreshTimeout  = 25 * time.Second
)

// Refresher re-reads ownership for one account and network
type Refresher interface {
	ListOwned(ctx context.Context, account, networkID string, forceRefresh bool) ([]entities.Asset, error)
}

// Worker periodically force-refreshes the active account's ownership so
// that transfers made elsewhere show up without user action.
type Worker struct {
	refresher Refresher
	schedule  string
	cron      *cron.Cron
	logger    *zap.Logger

	mu      sync.RWMutex
	account string
	network string
}

func NewWorker(refresher Refresher, schedule string, logger *zap.Logger) *Worker {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Worker{
		refresher: refresher,
		schedule:  schedule,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:    logger,
	}
}

// SetTarget changes what the next run refreshes. An empty account or
// network pauses refreshing.
func (w *Worker) SetTarget(account, networkID string) {
	w.mu.Lock()
	w.account, w.network = account, networkID
	w.mu.Unlock()
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if err := w.RefreshNow(ctx); err != nil {
			w.logger.Warn("Ownership refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("Ownership refresh worker started", zap.String("schedule", w.schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("Ownership refresh worker stopped")
}

// RefreshNow runs one refresh of the current target
func (w *Worker) RefreshNow(ctx context.Context) error {
	w.mu.RLock()
	account, network := w.account, w.network
	w.mu.RUnlock()

	if account == "" || network == "" {
		return nil
	}

	assets, err := w.refresher.ListOwned(ctx, account, network, true)
	if err != nil {
		return err
	}
	w.logger.Debug("Ownership refreshed",
		zap.String("account", account),
		zap.String("network", network),
		zap.Int("assets", len(assets)))
	return nil
}
