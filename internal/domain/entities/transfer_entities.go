package entities

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// TransferRequest asks to move one asset to the partner network
type TransferRequest struct {
	TokenID            uint64 `json:"token_id" db:"token_id"`
	SourceNetwork      string `json:"source_network" db:"source_network"`
	DestinationNetwork string `json:"destination_network" db:"destination_network"`
	DestinationAddress string `json:"destination_address" db:"destination_address"`
	Sender             string `json:"sender,omitempty" db:"sender"`
}

// ValidDestinationAddress requires a 0x-prefixed 20-byte hex address
func ValidDestinationAddress(addr string) bool {
	return len(addr) == 42 && strings.HasPrefix(addr, "0x") && common.IsHexAddress(addr)
}

// TransferState is the observable state of one bridge transfer
type TransferState struct {
	ID uuid.UUID `json:"id" db:"id"`
	TransferRequest
	Stage             TransferStage `json:"stage" db:"stage"`
	Direction         Direction     `json:"direction" db:"direction"`
	Step              int           `json:"step" db:"step"`
	SourceTxHash      string        `json:"source_tx_hash,omitempty" db:"source_tx_hash"`
	SourceBlockNumber *uint64       `json:"source_block_number,omitempty" db:"source_block_number"`
	DestinationTxHash string        `json:"destination_tx_hash,omitempty" db:"destination_tx_hash"`
	ErrorCode         string        `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage      string        `json:"error_message,omitempty" db:"error_message"`
	StartedAt         time.Time     `json:"started_at" db:"started_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// NewIdleState returns the state of an orchestrator with no transfer
func NewIdleState() TransferState {
	return TransferState{Stage: StageIdle}
}

// Partial reports a failure after the source lock went through: the asset
// may be locked on the source chain without a release on the destination.
func (s TransferState) Partial() bool {
	return s.Stage == StageFailed && s.SourceTxHash != ""
}

// Clone returns a copy safe to hand to another goroutine
func (s TransferState) Clone() TransferState {
	if s.SourceBlockNumber != nil {
		n := *s.SourceBlockNumber
		s.SourceBlockNumber = &n
	}
	return s
}
