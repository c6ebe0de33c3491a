// Package bridgeclient is the entry point of the NFT bridge client. A
// presentation layer reports wallet account and network switches, lists the
// account's assets and drives transfers to the partner network.
package bridgeclient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/adapters/chain"
	"github.com/nft-bridge/bridge_client/internal/infrastructure/di"
	"github.com/nft-bridge/bridge_client/pkg/logger"
)

type options struct {
	logger *logger.Logger
	deps   di.Dependencies
	chains map[string]chain.ChainClient
	start  bool
}

// Option customizes New
type Option func(*options)

// WithLogger replaces the logger built from config
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChainClients supplies one client per network instead of dialing the
// configured RPC endpoints, e.g. clients bound to a wallet's transactor.
func WithChainClients(clients map[string]ChainClient) Option {
	return func(o *options) { o.chains = clients }
}

// WithRelayClient replaces the HTTP relay client
func WithRelayClient(r RelayClient) Option {
	return func(o *options) { o.deps.Relay = r }
}

// WithOwnershipStore replaces the configured ownership cache backend
func WithOwnershipStore(s OwnershipStore) Option {
	return func(o *options) { o.deps.Store = s }
}

// WithoutBackgroundRefresh keeps the periodic ownership refresh stopped
func WithoutBackgroundRefresh() Option {
	return func(o *options) { o.start = false }
}

// Client is a bridge client bound to one wallet session
type Client struct {
	container *di.Container
}

// New builds a client from cfg and starts background refresh
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	o := options{start: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.New(cfg.LogLevel, cfg.Environment)
	}
	if o.chains != nil {
		o.deps.Chains = di.NewChainRegistry(o.chains)
	}

	container, err := di.NewContainer(ctx, cfg, o.logger, o.deps)
	if err != nil {
		return nil, err
	}
	if o.start {
		if err := container.Start(); err != nil {
			_ = container.Close(ctx)
			return nil, err
		}
	}
	return &Client{container: container}, nil
}

// Close cancels a running transfer and releases connections
func (c *Client) Close(ctx context.Context) error {
	return c.container.Close(ctx)
}

// HealthCheck fails when a network node cannot report its latest block
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.container.HealthCheck(ctx)
}

// Networks returns the bridgeable networks
func (c *Client) Networks() []Network {
	return c.container.Networks()
}

// ActiveAccount returns the account and network last reported
func (c *Client) ActiveAccount() (account, networkID string) {
	return c.container.Session.Current()
}

// OnAccountChanged reports a wallet account switch. Empty means
// disconnected.
func (c *Client) OnAccountChanged(ctx context.Context, account string) error {
	return c.container.Session.OnAccountChanged(ctx, account)
}

// OnNetworkChanged reports a wallet network switch
func (c *Client) OnNetworkChanged(ctx context.Context, networkID string) error {
	return c.container.Session.OnNetworkChanged(ctx, networkID)
}

// ListOwned returns the active account's assets on the active network
func (c *Client) ListOwned(ctx context.Context, forceRefresh bool) ([]Asset, error) {
	account, network := c.container.Session.Current()
	if account == "" {
		return nil, domainerrors.ValidationError("account", "no wallet account connected")
	}
	return c.container.Ownership.ListOwned(ctx, account, network, forceRefresh)
}

// ListOwnedOn returns account's assets on networkID
func (c *Client) ListOwnedOn(ctx context.Context, account, networkID string, forceRefresh bool) ([]Asset, error) {
	return c.container.Ownership.ListOwned(ctx, account, networkID, forceRefresh)
}

// ReadAsset reads one token's metadata on the active network
func (c *Client) ReadAsset(ctx context.Context, tokenID uint64) (Asset, error) {
	_, network := c.container.Session.Current()
	client, err := c.container.Chains.Client(network)
	if err != nil {
		return Asset{}, err
	}
	return client.ReadAsset(ctx, tokenID)
}

// OnOwnershipUpdate registers a callback for incremental discovery results.
// The returned func unregisters it.
func (c *Client) OnOwnershipUpdate(fn func(OwnershipUpdate)) func() {
	return c.container.Ownership.Subscribe(fn)
}

// Transfer moves tokenID from the active network to its partner and blocks
// until the transfer is released, fails, is held or ctx is done.
func (c *Client) Transfer(ctx context.Context, tokenID uint64, destinationAddress string) (TransferState, error) {
	account, network := c.container.Session.Current()
	return c.container.Orchestrator.Transfer(ctx, entities.TransferRequest{
		TokenID:            tokenID,
		SourceNetwork:      network,
		DestinationAddress: destinationAddress,
		Sender:             account,
	})
}

// TransferRequest runs a fully specified request
func (c *Client) TransferRequest(ctx context.Context, req TransferRequest) (TransferState, error) {
	return c.container.Orchestrator.Transfer(ctx, req)
}

// Resume continues a held transfer
func (c *Client) Resume(ctx context.Context) (TransferState, error) {
	return c.container.Orchestrator.Resume(ctx)
}

// Restore loads a journaled transfer for Resume
func (c *Client) Restore(ctx context.Context, id uuid.UUID) (TransferState, error) {
	return c.container.Orchestrator.Restore(ctx, id)
}

// PendingTransfers lists journaled transfers that never finished
func (c *Client) PendingTransfers(ctx context.Context) ([]*TransferState, error) {
	if c.container.Journal == nil {
		return nil, nil
	}
	return c.container.Journal.ListUnfinished(ctx)
}

// Cancel stops the running transfer where it stands
func (c *Client) Cancel() {
	c.container.Orchestrator.Cancel()
}

// Reset discards a held or finished transfer
func (c *Client) Reset() error {
	return c.container.Orchestrator.Reset()
}

// State returns the current transfer
func (c *Client) State() TransferState {
	return c.container.Orchestrator.State()
}

// StepLabels returns the progress step labels for the active network
func (c *Client) StepLabels() []string {
	return c.container.Orchestrator.Labels()
}

// Subscribe returns a channel of transfer progress
func (c *Client) Subscribe() <-chan Progress {
	return c.container.Orchestrator.Subscribe()
}

// Unsubscribe closes a channel returned by Subscribe
func (c *Client) Unsubscribe(ch <-chan Progress) {
	c.container.Orchestrator.Unsubscribe(ch)
}

// SetProgressHandler installs a synchronous progress callback
func (c *Client) SetProgressHandler(fn func(Progress)) {
	c.container.Orchestrator.SetProgressHandler(fn)
}

// ExplorerTxURL links txHash on networkID's block explorer
func (c *Client) ExplorerTxURL(networkID, txHash string) (string, error) {
	n, ok := c.container.Resolver.Lookup(networkID)
	if !ok {
		return "", fmt.Errorf("explorer link: %w", domainerrors.UnsupportedNetworkError(networkID))
	}
	return n.ExplorerTxURL(txHash), nil
}
