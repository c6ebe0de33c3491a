package entities

import (
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a non-fungible token identified by (NetworkID, TokenID)
type Asset struct {
	NetworkID    string    `json:"network_id"`
	TokenID      uint64    `json:"token_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Price        *big.Int  `json:"price,omitempty"` // minor units, nil when unset
	ForSale      bool      `json:"for_sale"`
	CurrentOwner string    `json:"current_owner"`
	CreatedAt    time.Time `json:"created_at"`
}

// OwnedBy compares owners case-insensitively since hex addresses may come
// back checksummed or lowercased.
func (a Asset) OwnedBy(account string) bool {
	return account != "" && strings.EqualFold(a.CurrentOwner, account)
}

// DisplayPrice renders the price in major units, e.g. wei as ether
func (a Asset) DisplayPrice(decimals int32) string {
	if a.Price == nil {
		return ""
	}
	return decimal.NewFromBigInt(a.Price, -decimals).String()
}
