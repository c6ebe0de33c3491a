package entities

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransferStageTransitions(t *testing.T) {
	happyPath := []TransferStage{StageIdle, StageLocking, StageLocked, StageProofSubmitted, StageMonitorTriggered, StagePolling, StagePolling, StageReleased}
	for i := 1; i < len(happyPath); i++ {
		assert.NoError(t, happyPath[i-1].ValidateTransition(happyPath[i]), "%s -> %s", happyPath[i-1], happyPath[i])
	}

	t.Run("every working stage can fail", func(t *testing.T) {
		for _, s := range []TransferStage{StageLocking, StageLocked, StageProofSubmitted, StageMonitorTriggered, StagePolling} {
			assert.True(t, s.CanTransitionTo(StageFailed), s)
		}
	})

	t.Run("no skipping", func(t *testing.T) {
		assert.Error(t, StageLocking.ValidateTransition(StageProofSubmitted))
		assert.Error(t, StageLocked.ValidateTransition(StagePolling))
		assert.Error(t, StageReleased.ValidateTransition(StageFailed))
		assert.Error(t, StageIdle.ValidateTransition(TransferStage("bogus")))
	})

	t.Run("terminal and held", func(t *testing.T) {
		assert.True(t, StageReleased.IsTerminal())
		assert.True(t, StageFailed.IsTerminal())
		assert.False(t, StagePolling.IsTerminal())
		assert.True(t, StageLocked.IsHeld())
		assert.False(t, StageIdle.IsHeld())
		assert.False(t, StageFailed.IsHeld())
	})
}

func TestStageStepsAreMonotonic(t *testing.T) {
	order := []TransferStage{StageIdle, StageLocking, StageLocked, StageProofSubmitted, StageMonitorTriggered, StagePolling, StageReleased}
	for i := 1; i < len(order); i++ {
		assert.GreaterOrEqual(t, order[i].Step(), order[i-1].Step())
	}
	assert.Equal(t, TotalSteps, StageReleased.Step())
}

func TestValidDestinationAddress(t *testing.T) {
	assert.True(t, ValidDestinationAddress("0x027315bad2c06b0ab2a4f31c6b4b162f798a3b31"))
	assert.False(t, ValidDestinationAddress("027315bad2c06b0ab2a4f31c6b4b162f798a3b31"))
	assert.False(t, ValidDestinationAddress("0x027315bad2c06b0ab2a4f31c6b4b162f798a3b"))
	assert.False(t, ValidDestinationAddress("0xzz7315bad2c06b0ab2a4f31c6b4b162f798a3b31"))
}

func TestAsset(t *testing.T) {
	price, _ := new(big.Int).SetString("1500000000000000000", 10)
	a := Asset{TokenID: 2, CurrentOwner: "0xAbCdEf0000000000000000000000000000000001", Price: price}

	assert.True(t, a.OwnedBy("0xabcdef0000000000000000000000000000000001"))
	assert.False(t, a.OwnedBy(""))
	assert.Equal(t, "1.5", a.DisplayPrice(18))
	assert.Equal(t, "", Asset{}.DisplayPrice(18))
}

func TestOwnershipCacheEntry(t *testing.T) {
	now := time.Now()
	entry := &OwnershipCacheEntry{FetchedAt: now.Add(-time.Minute)}
	assert.True(t, entry.IsFresh(now, DefaultFreshnessWindow))
	assert.False(t, entry.IsFresh(now.Add(2*time.Minute), DefaultFreshnessWindow))

	var missing *OwnershipCacheEntry
	assert.False(t, missing.IsFresh(now, DefaultFreshnessWindow))

	assert.Equal(t, "nfts:0xabc:sepolia", OwnershipCacheKey("0xABC", "sepolia"))
}

func TestNetwork(t *testing.T) {
	n := Network{ID: "sepolia", ChainID: 11155111, ExplorerURL: "https://sepolia.etherscan.io/"}
	assert.Equal(t, "0xaa36a7", n.ChainIDHex())
	assert.Equal(t, "sepolia", n.Name())
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0x1", n.ExplorerTxURL("0x1"))
	assert.Equal(t, DirectionReverse, DirectionForward.Opposite())
}

func TestTransferStatePartial(t *testing.T) {
	block := uint64(10)
	s := TransferState{Stage: StageFailed, SourceTxHash: "0xabc", SourceBlockNumber: &block}
	assert.True(t, s.Partial())

	c := s.Clone()
	*c.SourceBlockNumber = 11
	assert.Equal(t, uint64(10), *s.SourceBlockNumber)

	assert.False(t, TransferState{Stage: StageFailed}.Partial())
}
