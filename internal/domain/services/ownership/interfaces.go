package ownership

import (
	"context"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// AssetReader reads one token's metadata from a network
type AssetReader interface {
	ReadAsset(ctx context.Context, tokenID uint64) (entities.Asset, error)
}

// ReaderProvider resolves the reader bound to a network
type ReaderProvider interface {
	Reader(networkID string) (AssetReader, error)
}

// Store persists discovered ownership per (account, network). Get returns
// nil without error on a miss.
type Store interface {
	Get(ctx context.Context, account, networkID string) (*entities.OwnershipCacheEntry, error)
	Put(ctx context.Context, entry *entities.OwnershipCacheEntry) error
	DeleteAccount(ctx context.Context, account string) error
}

// Update is a snapshot of a probe in progress. Complete is set on the last
// update of a probe.
type Update struct {
	Account   string
	NetworkID string
	Assets    []entities.Asset
	Complete  bool
}

// Observer receives probe snapshots. It is called from the probing
// goroutine and must not block.
type Observer func(Update)
