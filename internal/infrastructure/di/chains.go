package di

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/internal/domain/services/ownership"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/chain"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/config"
)

// ChainRegistry holds one chain client per configured network. It serves
// the orchestrator as a ChainProvider and the ownership service as a
// ReaderProvider.
type ChainRegistry struct {
	clients map[string]chain.ChainClient
}

// NewChainRegistry wraps already built clients
func NewChainRegistry(clients map[string]chain.ChainClient) *ChainRegistry {
	return &ChainRegistry{clients: clients}
}

// DialChains connects to every network that belongs to a pair
func DialChains(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ChainRegistry, error) {
	registry := &ChainRegistry{clients: make(map[string]chain.ChainClient)}
	for _, pair := range cfg.NetworkPairs() {
		for _, id := range []string{pair.Primary, pair.Secondary} {
			network := cfg.Networks[id]
			dialCtx, cancel := context.WithTimeout(ctx, cfg.Chain.DialTimeout)
			client, err := chain.Dial(dialCtx, chain.Config{
				Network:             network,
				ConfirmationTimeout: cfg.Chain.ConfirmationTimeout,
				ReceiptPollInterval: cfg.Chain.ReceiptPollInterval,
			}, cfg.Signer.PrivateKey, logger)
			cancel()
			if err != nil {
				registry.Close()
				return nil, fmt.Errorf("connect to %s: %w", id, err)
			}
			registry.clients[id] = client
		}
	}
	return registry, nil
}

func (r *ChainRegistry) Client(networkID string) (chain.ChainClient, error) {
	c, ok := r.clients[networkID]
	if !ok {
		return nil, domainerrors.UnsupportedNetworkError(networkID)
	}
	return c, nil
}

func (r *ChainRegistry) Reader(networkID string) (ownership.AssetReader, error) {
	return r.Client(networkID)
}

// Networks returns the networks with a client, sorted by ID
func (r *ChainRegistry) Networks() []entities.Network {
	out := make([]entities.Network, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c.Network())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Health asks every node that reports its head for the latest block
func (r *ChainRegistry) Health(ctx context.Context) error {
	var errs []error
	for id, c := range r.clients {
		heads, ok := c.(chain.HeadReader)
		if !ok {
			continue
		}
		if _, err := heads.BlockNumber(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases node connections of dialed clients
func (r *ChainRegistry) Close() {
	for _, c := range r.clients {
		if closer, ok := c.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
