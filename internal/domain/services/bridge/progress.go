package bridge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// Progress is emitted on every stage change of a transfer
type Progress struct {
	TransferID        uuid.UUID
	Stage             entities.TransferStage
	Direction         entities.Direction
	Step              int
	TotalSteps        int
	Status            string
	SourceTxHash      string
	DestinationTxHash string
	ExplorerURL       string
	Err               error
}

// StepLabels returns the five user facing step labels for a transfer from
// source to destination. Unnamed networks get generic labels.
func StepLabels(source, destination entities.Network) []string {
	src, dst := source.Name(), destination.Name()
	if src == "" {
		src = "source network"
	}
	preparing := "Preparing NFT for destination network"
	released := "NFT released on destination"
	if dst != "" {
		preparing = fmt.Sprintf("Preparing NFT for %s release", dst)
		released = fmt.Sprintf("NFT released on %s", dst)
	}
	return []string{
		fmt.Sprintf("Locking NFT on %s", src),
		"Getting block number",
		"Updating relay block number",
		preparing,
		released,
	}
}

// statusFor returns the status line of a stage
func statusFor(stage entities.TransferStage, step int, labels []string, errMsg string) string {
	switch stage {
	case entities.StageIdle:
		return "Ready to transfer"
	case entities.StageFailed:
		if errMsg == "" {
			return "Transfer failed"
		}
		return "Transfer failed: " + errMsg
	}
	if step < 1 || step > len(labels) {
		return string(stage)
	}
	return labels[step-1]
}
