package entities

import (
	"fmt"
	"strings"
)

// Direction is the orientation of a transfer inside a network pair. Forward
// means the source is the pair's primary network.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Opposite returns the direction of the return trip
func (d Direction) Opposite() Direction {
	if d == DirectionForward {
		return DirectionReverse
	}
	return DirectionForward
}

// Network describes one EVM network the bridge contract is deployed on
type Network struct {
	ID              string `mapstructure:"id" json:"id"`
	DisplayName     string `mapstructure:"display_name" json:"display_name"`
	ChainID         uint64 `mapstructure:"chain_id" json:"chain_id"`
	RPCURL          string `mapstructure:"rpc_url" json:"rpc_url"`
	ContractAddress string `mapstructure:"contract_address" json:"contract_address"`
	ExplorerURL     string `mapstructure:"explorer_url" json:"explorer_url"`
	// Decimals of the native currency prices are quoted in
	Decimals int32 `mapstructure:"decimals" json:"decimals"`
}

// Name returns the display name, falling back to the ID
func (n Network) Name() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.ID
}

// ExplorerTxURL links a transaction hash on the network's block explorer
func (n Network) ExplorerTxURL(txHash string) string {
	if n.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(n.ExplorerURL, "/"), txHash)
}

// ChainIDHex renders the chain ID the way wallets report it, e.g. 0xaa36a7
func (n Network) ChainIDHex() string {
	return fmt.Sprintf("0x%x", n.ChainID)
}

// NetworkPair is an unordered bridge pair with a designated primary member
type NetworkPair struct {
	Primary   string
	Secondary string
}
