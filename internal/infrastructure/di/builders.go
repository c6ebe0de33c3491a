package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/services/bridge"
	"github.com/nft-bridge/bridge_client/internal/domain/services/ownership"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/relay"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/cache"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/config"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/database"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/repositories"
)

func buildRelayClient(cfg *config.Config, logger *zap.Logger) *relay.Client {
	methods := relay.Methods{
		SubmitProof:    cfg.Relay.Methods.SubmitProof,
		MonitorForward: cfg.Relay.Methods.MonitorForward,
		MonitorReverse: cfg.Relay.Methods.MonitorReverse,
		ReleaseForward: cfg.Relay.Methods.ReleaseForward,
		ReleaseReverse: cfg.Relay.Methods.ReleaseReverse,
	}
	return relay.NewClient(relay.Config{
		BaseURL:           cfg.Relay.BaseURL,
		Timeout:           cfg.Relay.Timeout,
		RequestsPerSecond: cfg.Relay.RequestsPerSecond,
		AuthSecret:        cfg.Relay.AuthSecret,
		AuthIssuer:        cfg.Relay.AuthIssuer,
		Methods:           methods,
	}, logger)
}

// buildOwnershipStore picks the cache backend. The Redis client is returned
// so the container can close it.
func buildOwnershipStore(cfg *config.Config, logger *zap.Logger) (ownership.Store, cache.RedisClient, error) {
	switch cfg.Discovery.Store {
	case "redis":
		redisClient, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		return cache.NewRedisOwnershipStore(redisClient, cache.DefaultEntryTTL, logger), redisClient, nil
	default:
		return cache.NewMemoryOwnershipStore(cache.DefaultEntryTTL), nil, nil
	}
}

// buildTransferJournal connects and migrates the journal database when it
// is enabled
func buildTransferJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories.TransferRepository, func() error, error) {
	if !cfg.Database.Enabled {
		return nil, func() error { return nil }, nil
	}

	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Transfer journal ready")
	return repositories.NewTransferRepository(db), db.Close, nil
}

func orchestratorConfig(cfg *config.Config) bridge.Config {
	return bridge.Config{
		PollInterval:     cfg.Orchestrator.PollInterval,
		ProofRetry:       cfg.Orchestrator.ProofRetryPolicy(),
		RequireOwnership: cfg.Orchestrator.RequireOwnership,
	}
}

func ownershipConfig(cfg *config.Config) ownership.Config {
	return ownership.Config{
		MaxProbe:        cfg.Discovery.MaxProbe,
		Concurrency:     cfg.Discovery.Concurrency,
		ProbeTimeout:    cfg.Discovery.ProbeTimeout,
		FreshnessWindow: cfg.Discovery.FreshnessWindow,
	}
}
