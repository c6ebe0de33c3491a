// Package ownership discovers which tokens an account holds by probing a
// bounded token ID range, and caches the result per (account, network).
package ownership

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/pkg/metrics"
	"github.com/nft-bridge/bridge_client/pkg/tracing"
)

const (
	DefaultMaxProbe     = 100
	DefaultProbeTimeout = 30 * time.Second
)

// Config bounds the probe
type Config struct {
	MaxProbe        int
	Concurrency     int
	ProbeTimeout    time.Duration
	FreshnessWindow time.Duration
}

// Service is the ownership discovery cache
type Service struct {
	config  Config
	readers ReaderProvider
	store   Store
	logger  *zap.Logger
	tracer  trace.Tracer
	flight  singleflight.Group
	now     func() time.Time

	mu        sync.RWMutex
	observers map[int]Observer
	nextObsID int

	// generations count invalidations per lowercased account. A probe only
	// writes back if no invalidation happened since it started.
	genMu       sync.RWMutex
	generations map[string]uint64
}

// NewService creates an ownership service
func NewService(config Config, readers ReaderProvider, store Store, logger *zap.Logger) *Service {
	if config.MaxProbe <= 0 {
		config.MaxProbe = DefaultMaxProbe
	}
	if config.Concurrency <= 0 || config.Concurrency > config.MaxProbe {
		config.Concurrency = config.MaxProbe
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = DefaultProbeTimeout
	}
	if config.FreshnessWindow <= 0 {
		config.FreshnessWindow = entities.DefaultFreshnessWindow
	}
	return &Service{
		config:      config,
		readers:     readers,
		store:       store,
		logger:      logger,
		tracer:      tracing.GetTracer("ownership"),
		now:         time.Now,
		observers:   make(map[int]Observer),
		generations: make(map[string]uint64),
	}
}

// Subscribe registers an observer of probe progress. The returned func
// removes it.
func (s *Service) Subscribe(obs Observer) func() {
	s.mu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// ListOwned returns the assets account holds on networkID. A fresh cached
// entry is returned without reading the chain unless forceRefresh is set.
func (s *Service) ListOwned(ctx context.Context, account, networkID string, forceRefresh bool) ([]entities.Asset, error) {
	if account == "" {
		return nil, domainerrors.ValidationError("account", "account is required")
	}

	if !forceRefresh {
		entry, err := s.store.Get(ctx, account, networkID)
		if err != nil {
			s.logger.Warn("Ownership cache read failed, probing",
				zap.String("account", account),
				zap.String("network", networkID),
				zap.Error(err))
		}
		if entry.IsFresh(s.now(), s.config.FreshnessWindow) {
			metrics.OwnershipCacheTotal.WithLabelValues("hit").Inc()
			return entry.Assets, nil
		}
		if entry != nil {
			metrics.OwnershipCacheTotal.WithLabelValues("stale").Inc()
		} else {
			metrics.OwnershipCacheTotal.WithLabelValues("miss").Inc()
		}
	} else {
		metrics.OwnershipCacheTotal.WithLabelValues("forced").Inc()
	}

	return s.refresh(ctx, account, networkID)
}

// Cached returns the stored entry without probing, and whether it is fresh
func (s *Service) Cached(ctx context.Context, account, networkID string) (*entities.OwnershipCacheEntry, bool, error) {
	entry, err := s.store.Get(ctx, account, networkID)
	if err != nil {
		return nil, false, err
	}
	return entry, entry.IsFresh(s.now(), s.config.FreshnessWindow), nil
}

// Owns reports whether account holds tokenID on networkID. Stale entries
// are refreshed first.
func (s *Service) Owns(ctx context.Context, account, networkID string, tokenID uint64) (bool, error) {
	assets, err := s.ListOwned(ctx, account, networkID, false)
	if err != nil {
		return false, err
	}
	for _, a := range assets {
		if a.TokenID == tokenID {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateAccount drops every cached entry of account. Probes already
// running for the account finish but are not written back.
func (s *Service) InvalidateAccount(ctx context.Context, account string) error {
	s.genMu.Lock()
	s.generations[strings.ToLower(account)]++
	s.genMu.Unlock()

	if err := s.store.DeleteAccount(ctx, account); err != nil {
		return fmt.Errorf("invalidate ownership of %s: %w", account, err)
	}
	return nil
}

// OnNetworkChanged invalidates all of account's entries when the active
// network switches.
func (s *Service) OnNetworkChanged(ctx context.Context, account, networkID string) error {
	s.logger.Info("Network changed, invalidating ownership cache",
		zap.String("account", account),
		zap.String("network", networkID))
	return s.InvalidateAccount(ctx, account)
}

func (s *Service) generation(account string) uint64 {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	return s.generations[strings.ToLower(account)]
}

// refresh runs one probe per key at a time. Callers joining an in-flight
// probe share its result; a caller giving up does not cancel the probe. The
// key carries the account generation so nobody joins a probe started before
// the last invalidation.
func (s *Service) refresh(ctx context.Context, account, networkID string) ([]entities.Asset, error) {
	gen := s.generation(account)
	key := fmt.Sprintf("%s:%s:%d", strings.ToLower(account), networkID, gen)
	ch := s.flight.DoChan(key, func() (interface{}, error) {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ProbeTimeout)
		defer cancel()

		assets, err := s.probe(probeCtx, account, networkID)
		if err != nil {
			return nil, err
		}
		entry := &entities.OwnershipCacheEntry{
			Account:   account,
			NetworkID: networkID,
			Assets:    assets,
			FetchedAt: s.now(),
		}
		// the probe context may already be past its deadline
		if err := s.storeIfCurrent(context.WithoutCancel(probeCtx), entry, gen); err != nil {
			s.logger.Warn("Failed to persist ownership entry",
				zap.String("account", account),
				zap.String("network", networkID),
				zap.Error(err))
		}
		return assets, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]entities.Asset), nil
	}
}

// storeIfCurrent writes entry unless the account was invalidated after gen
// was read. The read lock is held across Put so an invalidation either
// deletes the written entry or bumps the generation before the check.
func (s *Service) storeIfCurrent(ctx context.Context, entry *entities.OwnershipCacheEntry, gen uint64) error {
	s.genMu.RLock()
	defer s.genMu.RUnlock()
	if s.generations[strings.ToLower(entry.Account)] != gen {
		s.logger.Debug("Ownership invalidated during probe, discarding result",
			zap.String("account", entry.Account),
			zap.String("network", entry.NetworkID))
		return nil
	}
	return s.store.Put(ctx, entry)
}

func (s *Service) probe(ctx context.Context, account, networkID string) ([]entities.Asset, error) {
	reader, err := s.readers.Reader(networkID)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "ownership.probe", trace.WithAttributes(
		attribute.String("network", networkID),
		attribute.Int("max_probe", s.config.MaxProbe),
	))
	defer span.End()

	start := s.now()
	results := make(chan entities.Asset)
	var (
		answered int
		failed   int
		lastErr  error
		countMu  sync.Mutex
	)

	go func() {
		var g errgroup.Group
		g.SetLimit(s.config.Concurrency)
		for id := 1; id <= s.config.MaxProbe; id++ {
			if ctx.Err() != nil {
				break
			}
			tokenID := uint64(id)
			g.Go(func() error {
				asset, err := reader.ReadAsset(ctx, tokenID)

				countMu.Lock()
				switch {
				case err == nil || domainerrors.IsNotFound(err):
					answered++
				default:
					failed++
					lastErr = err
				}
				countMu.Unlock()

				if err != nil {
					if !domainerrors.IsNotFound(err) {
						s.logger.Debug("Ownership probe failed",
							zap.String("network", networkID),
							zap.Uint64("token_id", tokenID),
							zap.Error(err))
					}
					return nil
				}
				if !asset.OwnedBy(account) {
					return nil
				}
				select {
				case results <- asset:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	found := make([]entities.Asset, 0)
	deadlineHit := false
collect:
	for {
		select {
		case asset, ok := <-results:
			if !ok {
				break collect
			}
			found = insertSorted(found, asset)
			s.publish(Update{Account: account, NetworkID: networkID, Assets: found})
		case <-ctx.Done():
			deadlineHit = true
			break collect
		}
	}

	countMu.Lock()
	nAnswered, nFailed, probeErr := answered, failed, lastErr
	countMu.Unlock()

	if !deadlineHit && nAnswered == 0 && nFailed > 0 {
		tracing.RecordError(span, probeErr)
		return nil, domainerrors.TransportError(fmt.Sprintf("probe %s", networkID), probeErr)
	}
	if deadlineHit {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		s.logger.Warn("Ownership probe deadline reached, returning partial set",
			zap.String("network", networkID),
			zap.Int("found", len(found)))
	}

	s.publish(Update{Account: account, NetworkID: networkID, Assets: found, Complete: true})
	metrics.ProbeDuration.WithLabelValues(networkID).Observe(s.now().Sub(start).Seconds())
	span.SetAttributes(attribute.Int("found", len(found)), attribute.Int("failed", nFailed))
	s.logger.Debug("Ownership probe finished",
		zap.String("account", account),
		zap.String("network", networkID),
		zap.Int("found", len(found)),
		zap.Int("failed", nFailed))
	return found, nil
}

// insertSorted returns a new slice with asset placed by token ID
func insertSorted(assets []entities.Asset, asset entities.Asset) []entities.Asset {
	out := make([]entities.Asset, 0, len(assets)+1)
	out = append(out, assets...)
	out = append(out, asset)
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

func (s *Service) publish(u Update) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, obs := range s.observers {
		obs(u)
	}
}
