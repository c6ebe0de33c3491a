package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
)

var testNetwork = entities.Network{
	ID:              "sepolia",
	ChainID:         11155111,
	ContractAddress: "0x800e11fb1f4c9b33eab0dd7aae19c2ae741be30c",
}

const destination = "0x027315bad2c06b0ab2a4f31c6b4b162f798a3b31"

// fakeReceipts replays a scripted sequence of receipt lookups
type fakeReceipts struct {
	mu        sync.Mutex
	receipts  []*types.Receipt
	errs      []error
	calls     int
	txByHash  error
	byHashHit int
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.receipts) && f.receipts[i] != nil {
		return f.receipts[i], nil
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return nil, ethereum.NotFound
}

func (f *fakeReceipts) TransactionByHash(ctx context.Context, _ common.Hash) (*types.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byHashHit++
	if f.txByHash != nil {
		return nil, false, f.txByHash
	}
	return types.NewTx(&types.LegacyTx{}), true, nil
}

// fakeCaller answers contract calls with fixed output
type fakeCaller struct {
	output []byte
	err    error
}

func (f *fakeCaller) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.output, f.err
}

// fakeTransactor accepts transactions on an EIP-1559 chain
type fakeTransactor struct {
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
}

func (f *fakeTransactor) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(100), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeTransactor) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeTransactor) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeTransactor) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeTransactor) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeTransactor) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return 120_000, nil
}

func (f *fakeTransactor) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newTestClient(t *testing.T, caller *fakeCaller, transactor *fakeTransactor, receipts ReceiptReader, withSigner bool) *Client {
	t.Helper()
	cfg := Config{Network: testNetwork, ConfirmationTimeout: 50 * time.Millisecond, ReceiptPollInterval: 5 * time.Millisecond}

	c, err := newClient(cfg, caller, transactor, receipts, nil, zap.NewNop())
	require.NoError(t, err)
	if withSigner {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		c.signer, err = signerFromKey(key, testNetwork.ChainID)
		require.NoError(t, err)
	}
	return c
}

func packMetadata(t *testing.T, md assetMetadata) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(bridgeABI))
	require.NoError(t, err)
	out, err := parsed.Methods[methodGetMetadata].Outputs.Pack(md)
	require.NoError(t, err)
	return out
}

func TestWaitForConfirmation(t *testing.T) {
	t.Run("returns block number once mined", func(t *testing.T) {
		receipts := &fakeReceipts{receipts: []*types.Receipt{nil, nil, {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(4242)}}}
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, receipts, false)

		block, err := c.WaitForConfirmation(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Equal(t, uint64(4242), block)
		assert.Equal(t, 3, receipts.calls)
	})

	t.Run("failed receipt is execution reverted", func(t *testing.T) {
		receipts := &fakeReceipts{receipts: []*types.Receipt{{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(1)}}}
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, receipts, false)

		_, err := c.WaitForConfirmation(context.Background(), "0xabc")
		assert.ErrorIs(t, err, domainerrors.ErrExecutionReverted)
	})

	t.Run("pending past the ceiling times out", func(t *testing.T) {
		receipts := &fakeReceipts{}
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, receipts, false)

		_, err := c.WaitForConfirmation(context.Background(), "0xabc")
		assert.ErrorIs(t, err, domainerrors.ErrTimeout)
		assert.Equal(t, 1, receipts.byHashHit)
	})

	t.Run("unknown hash past the ceiling is dropped", func(t *testing.T) {
		receipts := &fakeReceipts{txByHash: ethereum.NotFound}
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, receipts, false)

		_, err := c.WaitForConfirmation(context.Background(), "0xabc")
		assert.ErrorIs(t, err, domainerrors.ErrTransactionDropped)
	})

	t.Run("transient lookup errors keep polling", func(t *testing.T) {
		receipts := &fakeReceipts{
			errs:     []error{errors.New("connection reset")},
			receipts: []*types.Receipt{nil, {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}},
		}
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, receipts, false)

		block, err := c.WaitForConfirmation(context.Background(), "0xabc")
		require.NoError(t, err)
		assert.Equal(t, uint64(9), block)
	})

	t.Run("caller cancellation wins", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &fakeReceipts{}, false)

		_, err := c.WaitForConfirmation(ctx, "0xabc")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReadAsset(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	t.Run("decodes metadata", func(t *testing.T) {
		out := packMetadata(t, assetMetadata{
			Name:         "Bridge Cat",
			Description:  "crosses chains",
			Image:        "ipfs://cat",
			Price:        big.NewInt(1_000_000_000_000_000_000),
			ForSale:      true,
			CurrentOwner: owner,
			CreatedAt:    big.NewInt(1_700_000_000),
		})
		c := newTestClient(t, &fakeCaller{output: out}, &fakeTransactor{}, &fakeReceipts{}, false)

		asset, err := c.ReadAsset(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), asset.TokenID)
		assert.Equal(t, "sepolia", asset.NetworkID)
		assert.Equal(t, "Bridge Cat", asset.Name)
		assert.True(t, asset.ForSale)
		assert.Equal(t, "1", asset.DisplayPrice(18))
		assert.True(t, asset.OwnedBy(strings.ToLower(owner.Hex())))
		assert.Equal(t, int64(1_700_000_000), asset.CreatedAt.Unix())
	})

	t.Run("zero price is unset", func(t *testing.T) {
		out := packMetadata(t, assetMetadata{Price: big.NewInt(0), CurrentOwner: owner, CreatedAt: big.NewInt(0)})
		c := newTestClient(t, &fakeCaller{output: out}, &fakeTransactor{}, &fakeReceipts{}, false)

		asset, err := c.ReadAsset(context.Background(), 3)
		require.NoError(t, err)
		assert.Nil(t, asset.Price)
		assert.True(t, asset.CreatedAt.IsZero())
	})

	t.Run("revert is not found", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{err: errors.New("execution reverted: missing revert data")}, &fakeTransactor{}, &fakeReceipts{}, false)

		_, err := c.ReadAsset(context.Background(), 99)
		assert.True(t, domainerrors.IsNotFound(err))
	})

	t.Run("zero owner is not found", func(t *testing.T) {
		out := packMetadata(t, assetMetadata{Price: big.NewInt(0), CreatedAt: big.NewInt(0)})
		c := newTestClient(t, &fakeCaller{output: out}, &fakeTransactor{}, &fakeReceipts{}, false)

		_, err := c.ReadAsset(context.Background(), 99)
		assert.True(t, domainerrors.IsNotFound(err))
	})

	t.Run("node failure is a transport error", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{err: errors.New("dial tcp: connection refused")}, &fakeTransactor{}, &fakeReceipts{}, false)

		_, err := c.ReadAsset(context.Background(), 1)
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})
}

func TestLock(t *testing.T) {
	t.Run("sends burn transaction", func(t *testing.T) {
		transactor := &fakeTransactor{}
		c := newTestClient(t, &fakeCaller{}, transactor, &fakeReceipts{}, true)

		hash, err := c.Lock(context.Background(), 5, "holesky", destination)
		require.NoError(t, err)
		require.Len(t, transactor.sent, 1)
		assert.Equal(t, transactor.sent[0].Hash().Hex(), hash)
		assert.Equal(t, uint64(7), transactor.sent[0].Nonce())
		assert.Equal(t, common.HexToAddress(testNetwork.ContractAddress), *transactor.sent[0].To())
	})

	t.Run("ownership revert", func(t *testing.T) {
		transactor := &fakeTransactor{estimateErr: errors.New("execution reverted: Not owner")}
		c := newTestClient(t, &fakeCaller{}, transactor, &fakeReceipts{}, true)

		_, err := c.Lock(context.Background(), 5, "holesky", destination)
		assert.ErrorIs(t, err, domainerrors.ErrOwnership)
		assert.Empty(t, transactor.sent)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		transactor := &fakeTransactor{sendErr: errors.New("insufficient funds for gas * price + value")}
		c := newTestClient(t, &fakeCaller{}, transactor, &fakeReceipts{}, true)

		_, err := c.Lock(context.Background(), 5, "holesky", destination)
		assert.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
	})

	t.Run("rejects malformed destination", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &fakeReceipts{}, true)

		_, err := c.Lock(context.Background(), 5, "holesky", "0x1234")
		assert.True(t, domainerrors.IsInvalidInput(err))
	})

	t.Run("requires a signer", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &fakeReceipts{}, false)

		_, err := c.Lock(context.Background(), 5, "holesky", destination)
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})
}

func TestClassifyLockError(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"ACTION_REJECTED", domainerrors.ErrUserRejected},
		{"MetaMask Tx Signature: User denied transaction signature.", domainerrors.ErrUserRejected},
		{"user rejected transaction", domainerrors.ErrUserRejected},
		{"insufficient funds for intrinsic transaction cost", domainerrors.ErrInsufficientFunds},
		{"execution reverted: Not owner", domainerrors.ErrOwnership},
		{"execution reverted: paused", domainerrors.ErrExecutionReverted},
		{"nonce too low", domainerrors.ErrTransport},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyLockError(1, errors.New(tc.msg)), tc.want)
		})
	}
}

// headReceipts is a receipt reader that also reports the chain head
type headReceipts struct {
	fakeReceipts
	head uint64
	err  error
}

func (h *headReceipts) BlockNumber(context.Context) (uint64, error) {
	return h.head, h.err
}

func TestBlockNumber(t *testing.T) {
	t.Run("reports head", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &headReceipts{head: 1_234_567}, false)
		n, err := c.BlockNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1_234_567), n)
	})

	t.Run("node error is transport", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &headReceipts{err: errors.New("connection refused")}, false)
		_, err := c.BlockNumber(context.Background())
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})

	t.Run("no head reader", func(t *testing.T) {
		c := newTestClient(t, &fakeCaller{}, &fakeTransactor{}, &fakeReceipts{}, false)
		_, err := c.BlockNumber(context.Background())
		assert.ErrorIs(t, err, domainerrors.ErrTransport)
	})
}

func TestNewClientRejectsBadContract(t *testing.T) {
	n := testNetwork
	n.ContractAddress = "nope"
	_, err := newClient(Config{Network: n}, &fakeCaller{}, &fakeTransactor{}, &fakeReceipts{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestNewKeyedSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	opts, err := NewKeyedSigner(hexKey, 17000)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), opts.From)

	_, err = NewKeyedSigner("zz", 17000)
	assert.Error(t, err)
}
