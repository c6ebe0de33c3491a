package bridgeclient

import (
	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/internal/domain/services/bridge"
	"github.com/nft-bridge/bridge_client/internal/domain/services/ownership"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/chain"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/relay"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/config"
)

// Types shared with callers
type (
	Config          = config.Config
	Network         = entities.Network
	Asset           = entities.Asset
	Direction       = entities.Direction
	TransferStage   = entities.TransferStage
	TransferRequest = entities.TransferRequest
	TransferState   = entities.TransferState
	Progress        = bridge.Progress
	OwnershipUpdate = ownership.Update
	ChainClient     = chain.ChainClient
	RelayClient     = relay.RelayClient
	OwnershipStore  = ownership.Store
)

// Transfer stages
const (
	StageIdle             = entities.StageIdle
	StageLocking          = entities.StageLocking
	StageLocked           = entities.StageLocked
	StageProofSubmitted   = entities.StageProofSubmitted
	StageMonitorTriggered = entities.StageMonitorTriggered
	StagePolling          = entities.StagePolling
	StageReleased         = entities.StageReleased
	StageFailed           = entities.StageFailed
)

// Error kinds, for errors.Is
var (
	ErrUserRejected       = domainerrors.ErrUserRejected
	ErrInsufficientFunds  = domainerrors.ErrInsufficientFunds
	ErrOwnership          = domainerrors.ErrOwnership
	ErrExecutionReverted  = domainerrors.ErrExecutionReverted
	ErrTimeout            = domainerrors.ErrTimeout
	ErrTransactionDropped = domainerrors.ErrTransactionDropped
	ErrRelayBusy          = domainerrors.ErrRelayBusy
	ErrRelay              = domainerrors.ErrRelay
	ErrUnsupportedNetwork = domainerrors.ErrUnsupportedNetwork
	ErrAlreadyInProgress  = domainerrors.ErrAlreadyInProgress
	ErrTransport          = domainerrors.ErrTransport
	ErrNotFound           = domainerrors.ErrNotFound
	ErrInvalidInput       = domainerrors.ErrInvalidInput
)

// KindOf returns the error code carried by err, e.g. "RELAY_BUSY"
func KindOf(err error) string {
	return domainerrors.KindOf(err)
}

// LoadConfig reads configuration from .env, config.yaml and the environment
func LoadConfig() (*Config, error) {
	return config.Load()
}
