// Package session tracks the wallet context a presentation layer reports
// and fans account and network switches out to the components that key
// their state on them.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nft-bridge/bridge_client/pkg/logger"
	"github.com/nft-bridge/bridge_client/pkg/security"
)

// OwnershipCache is invalidated when the active network switches
type OwnershipCache interface {
	OnNetworkChanged(ctx context.Context, account, networkID string) error
}

// NetworkListener follows the active network
type NetworkListener interface {
	OnNetworkChanged(networkID string) error
}

// RefreshTarget is retargeted on every switch. An empty network pauses it.
type RefreshTarget interface {
	SetTarget(account, networkID string)
}

// Service holds the active account and network
type Service struct {
	cache     OwnershipCache
	listener  NetworkListener
	refresher RefreshTarget
	logger    *logger.Logger

	mu      sync.RWMutex
	account string
	network string
}

// NewService creates a session service. refresher may be nil.
func NewService(cache OwnershipCache, listener NetworkListener, refresher RefreshTarget, log *logger.Logger) *Service {
	return &Service{
		cache:     cache,
		listener:  listener,
		refresher: refresher,
		logger:    log,
	}
}

// Current returns the active account and network
func (s *Service) Current() (account, networkID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.network
}

// OnNetworkChanged switches the active network. The account's cached
// ownership is dropped on every network and the orchestrator relabels. An
// unsupported network is recorded but pauses background refresh.
func (s *Service) OnNetworkChanged(ctx context.Context, networkID string) error {
	s.mu.Lock()
	prev := s.network
	s.network = networkID
	account := s.account
	s.mu.Unlock()

	s.logger.Info("Active network changed", "from", prev, "to", networkID, "account", security.MaskAddress(account))

	var cacheErr error
	if account != "" {
		cacheErr = s.cache.OnNetworkChanged(ctx, account, networkID)
		if cacheErr != nil {
			s.logger.Warn("Failed to invalidate ownership cache", "account", security.MaskAddress(account), "error", cacheErr)
		}
	}

	listenerErr := s.listener.OnNetworkChanged(networkID)
	if s.refresher != nil {
		if listenerErr != nil {
			s.refresher.SetTarget(account, "")
		} else {
			s.refresher.SetTarget(account, networkID)
		}
	}
	return errors.Join(cacheErr, listenerErr)
}

// OnAccountChanged switches the active account. An empty account means the
// wallet disconnected.
func (s *Service) OnAccountChanged(ctx context.Context, account string) error {
	s.mu.Lock()
	prev := s.account
	s.account = account
	network := s.network
	s.mu.Unlock()

	if strings.EqualFold(prev, account) {
		return nil
	}
	s.logger.Info("Active account changed", "from", security.MaskAddress(prev), "to", security.MaskAddress(account), "network", network)

	if s.refresher != nil {
		s.refresher.SetTarget(account, network)
	}
	return ctx.Err()
}
