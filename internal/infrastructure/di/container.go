package di

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	"github.com/nft-bridge/bridge_client/internal/domain/services/bridge"
	"github.com/nft-bridge/bridge_client/internal/domain/services/direction"
	"github.com/nft-bridge/bridge_client/internal/domain/services/ownership"
	"github.com/nft-bridge/bridge_client/internal/domain/services/session"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/relay"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/config"
	"github.com/nft-bridge/bridge_client/internal/workers/ownership_refresh"
	"github.com/nft-bridge/bridge_client/pkg/logger"
	"github.com/nft-bridge/bridge_client/pkg/tracing"
)

// Dependencies overrides parts of the graph. Nil fields are built from
// config.
type Dependencies struct {
	Chains  *ChainRegistry
	Relay   relay.RelayClient
	Store   ownership.Store
	Journal bridge.TransferRepository
}

// Container holds the wired bridge client
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	ZapLog *zap.Logger

	Resolver       *direction.Resolver
	Chains         *ChainRegistry
	Relay          relay.RelayClient
	OwnershipStore ownership.Store
	Journal        bridge.TransferRepository

	Ownership     *ownership.Service
	Orchestrator  *bridge.Orchestrator
	Session       *session.Service
	RefreshWorker *ownership_refresh.Worker

	closers []func(context.Context) error
}

// NewContainer builds every component from cfg. On error, anything opened
// so far is closed.
func NewContainer(ctx context.Context, cfg *config.Config, log *logger.Logger, deps Dependencies) (c *Container, err error) {
	zapLog := log.Zap()
	c = &Container{Config: cfg, Logger: log, ZapLog: zapLog}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
			c = nil
		}
	}()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing, zapLog)
	if err != nil {
		return c, fmt.Errorf("init tracing: %w", err)
	}
	c.closers = append(c.closers, shutdownTracer)

	c.Resolver, err = direction.NewResolver(cfg.Networks, cfg.NetworkPairs())
	if err != nil {
		return c, fmt.Errorf("build network resolver: %w", err)
	}

	c.Chains = deps.Chains
	if c.Chains == nil {
		c.Chains, err = DialChains(ctx, cfg, zapLog)
		if err != nil {
			return c, err
		}
		chains := c.Chains
		c.closers = append(c.closers, func(context.Context) error {
			chains.Close()
			return nil
		})
	}

	c.Relay = deps.Relay
	if c.Relay == nil {
		c.Relay = buildRelayClient(cfg, zapLog)
	}

	c.OwnershipStore = deps.Store
	if c.OwnershipStore == nil {
		store, redisClient, err := buildOwnershipStore(cfg, zapLog)
		if err != nil {
			return c, err
		}
		if redisClient != nil {
			c.closers = append(c.closers, func(context.Context) error { return redisClient.Close() })
		}
		c.OwnershipStore = store
	}

	c.Journal = deps.Journal
	if c.Journal == nil {
		repo, closeDB, err := buildTransferJournal(ctx, cfg, zapLog)
		if err != nil {
			return c, fmt.Errorf("open transfer journal: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return closeDB() })
		if repo != nil {
			c.Journal = repo
		}
	}

	c.Ownership = ownership.NewService(ownershipConfig(cfg), c.Chains, c.OwnershipStore, zapLog)
	c.Orchestrator, err = bridge.NewOrchestrator(orchestratorConfig(cfg), c.Resolver, c.Chains, c.Relay,
		c.Ownership, c.Journal, zapLog)
	if err != nil {
		return c, fmt.Errorf("build orchestrator: %w", err)
	}
	c.RefreshWorker = ownership_refresh.NewWorker(c.Ownership, cfg.Discovery.RefreshSchedule, zapLog)
	c.Session = session.NewService(c.Ownership, c.Orchestrator, c.RefreshWorker, log)

	if err := c.Session.OnNetworkChanged(ctx, cfg.DefaultNetwork); err != nil {
		return c, fmt.Errorf("activate default network: %w", err)
	}

	log.Info("Bridge client initialized",
		"networks", len(cfg.Networks),
		"pairs", len(cfg.Pairs),
		"default_network", cfg.DefaultNetwork,
		"store", cfg.Discovery.Store,
		"journal", c.Journal != nil)
	return c, nil
}

// Start launches background workers
func (c *Container) Start() error {
	if err := c.RefreshWorker.Start(); err != nil {
		return fmt.Errorf("start ownership refresh: %w", err)
	}
	c.closers = append(c.closers, func(context.Context) error {
		c.RefreshWorker.Stop()
		return nil
	})
	return nil
}

// HealthCheck reports node reachability of every dialed network
func (c *Container) HealthCheck(ctx context.Context) error {
	if err := c.Chains.Health(ctx); err != nil {
		return fmt.Errorf("chain health: %w", err)
	}
	return nil
}

// Networks returns the bridgeable networks
func (c *Container) Networks() []entities.Network {
	return c.Resolver.Networks()
}

// Close cancels a running transfer and releases resources in reverse order
// of acquisition
func (c *Container) Close(ctx context.Context) error {
	if c.Orchestrator != nil {
		c.Orchestrator.Cancel()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return errors.Join(errs...)
}
