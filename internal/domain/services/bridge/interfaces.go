package bridge

import (
	"context"

	"github.com/google/uuid"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/chain"
)

// ChainProvider returns the chain client bound to a network
type ChainProvider interface {
	Client(networkID string) (chain.ChainClient, error)
}

// OwnershipChecker answers whether an account holds a token before it is
// locked
type OwnershipChecker interface {
	Owns(ctx context.Context, account, networkID string, tokenID uint64) (bool, error)
}

// TransferRepository journals transfer state. Every stage change is written
// so that a held transfer can be restored later.
type TransferRepository interface {
	Create(ctx context.Context, transfer *entities.TransferState) error
	Update(ctx context.Context, transfer *entities.TransferState) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.TransferState, error)
	ListUnfinished(ctx context.Context) ([]*entities.TransferState, error)
}
