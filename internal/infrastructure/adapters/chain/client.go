// Package chain binds the bridge NFT contract on one EVM network.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/pkg/security"
)

const (
	defaultConfirmationTimeout = 5 * time.Minute
	defaultReceiptPollInterval = 2 * time.Second
)

// Config represents chain client configuration
type Config struct {
	Network             entities.Network
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
	// GasLimit pins the lock gas limit; zero estimates it
	GasLimit uint64
}

// Client reads and writes the bridge contract on a single network
type Client struct {
	config   Config
	contract *bind.BoundContract
	receipts ReceiptReader
	heads    HeadReader
	signer   *bind.TransactOpts
	logger   *zap.Logger
	closer   func()
}

// Dial connects to the network's RPC endpoint. signerKey is a hex private
// key; when empty the client can read but not lock.
func Dial(ctx context.Context, config Config, signerKey string, logger *zap.Logger) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, config.Network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s at %s: %w", config.Network.ID, security.MaskEndpoint(config.Network.RPCURL), err)
	}

	var signer *bind.TransactOpts
	if signerKey != "" {
		signer, err = NewKeyedSigner(signerKey, config.Network.ChainID)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}
	client, err := NewClient(config, backend, signer, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	client.closer = backend.Close
	client.logger.Info("Connected to network node",
		zap.String("endpoint", security.MaskEndpoint(config.Network.RPCURL)),
		zap.Bool("signer", signer != nil))
	return client, nil
}

// Close releases the node connection opened by Dial
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// NewKeyedSigner builds transaction options from a hex private key
func NewKeyedSigner(hexKey string, chainID uint64) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return signerFromKey(key, chainID)
}

func signerFromKey(key *ecdsa.PrivateKey, chainID uint64) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, new(big.Int).SetUint64(chainID))
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	return opts, nil
}

// NewClient creates a client over an existing backend
func NewClient(config Config, backend Backend, signer *bind.TransactOpts, logger *zap.Logger) (*Client, error) {
	return newClient(config, backend, backend, backend, signer, logger)
}

func newClient(config Config, caller bind.ContractCaller, transactor bind.ContractTransactor, receipts ReceiptReader, signer *bind.TransactOpts, logger *zap.Logger) (*Client, error) {
	if config.ConfirmationTimeout == 0 {
		config.ConfirmationTimeout = defaultConfirmationTimeout
	}
	if config.ReceiptPollInterval == 0 {
		config.ReceiptPollInterval = defaultReceiptPollInterval
	}
	if !common.IsHexAddress(config.Network.ContractAddress) {
		return nil, fmt.Errorf("network %s: invalid contract address %q", config.Network.ID, config.Network.ContractAddress)
	}

	parsed, err := abi.JSON(strings.NewReader(bridgeABI))
	if err != nil {
		return nil, fmt.Errorf("parse bridge abi: %w", err)
	}
	address := common.HexToAddress(config.Network.ContractAddress)

	client := &Client{
		config:   config,
		contract: bind.NewBoundContract(address, parsed, caller, transactor, nil),
		receipts: receipts,
		signer:   signer,
		logger:   logger.With(zap.String("network", config.Network.ID)),
	}
	if heads, ok := receipts.(HeadReader); ok {
		client.heads = heads
	}
	return client, nil
}

// Network returns the network this client is bound to
func (c *Client) Network() entities.Network {
	return c.config.Network
}

// BlockNumber returns the node's latest block
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if c.heads == nil {
		return 0, domainerrors.TransportError("block number "+c.config.Network.ID, errors.New("node does not report its head"))
	}
	n, err := c.heads.BlockNumber(ctx)
	if err != nil {
		return 0, domainerrors.TransportError("block number "+c.config.Network.ID, err)
	}
	return n, nil
}

// Sender returns the address lock transactions are sent from
func (c *Client) Sender() (common.Address, bool) {
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.From, true
}

// Lock burns tokenID for release to destinationAddress on destinationNetwork
func (c *Client) Lock(ctx context.Context, tokenID uint64, destinationNetwork, destinationAddress string) (string, error) {
	if !entities.ValidDestinationAddress(destinationAddress) {
		return "", domainerrors.ValidationError("destination_address", fmt.Sprintf("invalid destination address %q", destinationAddress))
	}
	if c.signer == nil {
		return "", domainerrors.TransportError("lock", errors.New("no signer configured"))
	}

	opts := *c.signer
	opts.Context = ctx
	opts.GasLimit = c.config.GasLimit

	tx, err := c.contract.Transact(&opts, methodBurn, new(big.Int).SetUint64(tokenID), destinationNetwork, destinationAddress)
	if err != nil {
		classified := classifyLockError(tokenID, err)
		c.logger.Warn("Lock transaction failed",
			zap.Uint64("token_id", tokenID),
			zap.String("code", domainerrors.KindOf(classified)),
			zap.Error(err))
		return "", classified
	}

	c.logger.Info("Lock transaction sent",
		zap.Uint64("token_id", tokenID),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("destination_network", destinationNetwork))
	return tx.Hash().Hex(), nil
}

// WaitForConfirmation polls for the receipt until mined or the ceiling
// passes. After the ceiling a hash unknown to the node is reported as
// dropped, anything else as a timeout.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash string) (uint64, error) {
	hash := common.HexToHash(txHash)

	waitCtx, cancel := context.WithTimeout(ctx, c.config.ConfirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(c.config.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipts.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil && receipt.BlockNumber != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return 0, domainerrors.ExecutionRevertedError(fmt.Errorf("transaction %s failed in block %s", txHash, receipt.BlockNumber))
			}
			c.logger.Info("Transaction confirmed",
				zap.String("tx_hash", txHash),
				zap.Uint64("block_number", receipt.BlockNumber.Uint64()))
			return receipt.BlockNumber.Uint64(), nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			c.logger.Debug("Receipt lookup failed, retrying", zap.String("tx_hash", txHash), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return 0, c.afterCeiling(ctx, hash, txHash)
		case <-ticker.C:
		}
	}
}

func (c *Client) afterCeiling(ctx context.Context, hash common.Hash, txHash string) error {
	_, _, err := c.receipts.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		c.logger.Warn("Transaction dropped", zap.String("tx_hash", txHash))
		return domainerrors.TransactionDroppedError(txHash)
	}
	c.logger.Warn("Transaction not confirmed before timeout",
		zap.String("tx_hash", txHash),
		zap.Duration("timeout", c.config.ConfirmationTimeout))
	return domainerrors.TimeoutError(txHash, err)
}

// ReadAsset reads the metadata of tokenID
func (c *Client) ReadAsset(ctx context.Context, tokenID uint64) (entities.Asset, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetMetadata, new(big.Int).SetUint64(tokenID))
	if err != nil {
		if ctx.Err() != nil {
			return entities.Asset{}, ctx.Err()
		}
		if isMissingToken(err) {
			return entities.Asset{}, domainerrors.NotFoundError(fmt.Sprintf("token %d", tokenID))
		}
		return entities.Asset{}, domainerrors.TransportError("read asset", err)
	}
	if len(out) == 0 {
		return entities.Asset{}, domainerrors.NotFoundError(fmt.Sprintf("token %d", tokenID))
	}

	md := *abi.ConvertType(out[0], new(assetMetadata)).(*assetMetadata)
	if md.CurrentOwner == (common.Address{}) {
		return entities.Asset{}, domainerrors.NotFoundError(fmt.Sprintf("token %d", tokenID))
	}

	asset := entities.Asset{
		NetworkID:    c.config.Network.ID,
		TokenID:      tokenID,
		Name:         md.Name,
		Description:  md.Description,
		Image:        md.Image,
		ForSale:      md.ForSale,
		CurrentOwner: md.CurrentOwner.Hex(),
	}
	if md.Price != nil && md.Price.Sign() > 0 {
		asset.Price = new(big.Int).Set(md.Price)
	}
	if md.CreatedAt != nil && md.CreatedAt.Sign() > 0 {
		asset.CreatedAt = time.Unix(md.CreatedAt.Int64(), 0).UTC()
	}
	return asset, nil
}
