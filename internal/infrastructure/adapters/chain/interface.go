package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// ChainClient is the per-network view of the bridge contract
type ChainClient interface {
	// Lock burns the token on this network for release on destinationNetwork
	Lock(ctx context.Context, tokenID uint64, destinationNetwork, destinationAddress string) (txHash string, err error)

	// WaitForConfirmation blocks until the transaction is mined and returns its block number
	WaitForConfirmation(ctx context.Context, txHash string) (blockNumber uint64, err error)

	// ReadAsset reads token metadata. A missing token yields a NotFound error.
	ReadAsset(ctx context.Context, tokenID uint64) (entities.Asset, error)

	// Network returns the network this client is bound to
	Network() entities.Network
}

// ReceiptReader is the part of a node API used to follow a transaction
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, txHash common.Hash) (tx *types.Transaction, isPending bool, err error)
}

// HeadReader reports the latest block of a node
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Backend is everything the client needs from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	ReceiptReader
	HeadReader
}

// Ensure Client implements ChainClient interface
var _ ChainClient = (*Client)(nil)
