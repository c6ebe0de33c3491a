package relay

import (
	"context"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// RelayClient defines the relay operations a transfer drives. Monitor and
// release calls are keyed by direction; the client maps a direction to the
// relay's direction-specific entry point.
type RelayClient interface {
	// SubmitProof hands the confirmed source block number to the relay
	SubmitProof(ctx context.Context, blockNumber uint64) error

	// TriggerMonitor asks the relay to scan the proven block and release
	TriggerMonitor(ctx context.Context, direction entities.Direction) error

	// QueryRelease returns the destination release hash once the relay has
	// one. ready is false while the relay has nothing stored yet.
	QueryRelease(ctx context.Context, direction entities.Direction) (txHash string, ready bool, err error)
}

// Ensure Client implements RelayClient interface
var _ RelayClient = (*Client)(nil)
