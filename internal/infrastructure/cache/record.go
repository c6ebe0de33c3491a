package cache

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// ownershipRecord is the persisted form of an ownership entry. Numeric
// fields are decimal strings so 256-bit prices survive any JSON reader.
type ownershipRecord struct {
	Account   string        `json:"account"`
	NetworkID string        `json:"network_id"`
	Assets    []assetRecord `json:"assets"`
	FetchedAt string        `json:"fetched_at"`
}

type assetRecord struct {
	TokenID      string `json:"token_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Image        string `json:"image"`
	Price        string `json:"price,omitempty"`
	ForSale      bool   `json:"for_sale"`
	CurrentOwner string `json:"current_owner"`
	CreatedAt    string `json:"created_at"`
}

func toRecord(e *entities.OwnershipCacheEntry) ownershipRecord {
	rec := ownershipRecord{
		Account:   e.Account,
		NetworkID: e.NetworkID,
		Assets:    make([]assetRecord, 0, len(e.Assets)),
		FetchedAt: strconv.FormatInt(e.FetchedAt.UnixMilli(), 10),
	}
	for _, a := range e.Assets {
		ar := assetRecord{
			TokenID:      strconv.FormatUint(a.TokenID, 10),
			Name:         a.Name,
			Description:  a.Description,
			Image:        a.Image,
			ForSale:      a.ForSale,
			CurrentOwner: a.CurrentOwner,
			CreatedAt:    strconv.FormatInt(a.CreatedAt.Unix(), 10),
		}
		if a.Price != nil {
			ar.Price = a.Price.String()
		}
		rec.Assets = append(rec.Assets, ar)
	}
	return rec
}

func fromRecord(rec ownershipRecord) (*entities.OwnershipCacheEntry, error) {
	fetched, err := strconv.ParseInt(rec.FetchedAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fetched_at %q: %w", rec.FetchedAt, err)
	}
	entry := &entities.OwnershipCacheEntry{
		Account:   rec.Account,
		NetworkID: rec.NetworkID,
		Assets:    make([]entities.Asset, 0, len(rec.Assets)),
		FetchedAt: time.UnixMilli(fetched),
	}
	for _, ar := range rec.Assets {
		tokenID, err := strconv.ParseUint(ar.TokenID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("token_id %q: %w", ar.TokenID, err)
		}
		created, err := strconv.ParseInt(ar.CreatedAt, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("created_at %q: %w", ar.CreatedAt, err)
		}
		a := entities.Asset{
			NetworkID:    rec.NetworkID,
			TokenID:      tokenID,
			Name:         ar.Name,
			Description:  ar.Description,
			Image:        ar.Image,
			ForSale:      ar.ForSale,
			CurrentOwner: ar.CurrentOwner,
		}
		if created > 0 {
			a.CreatedAt = time.Unix(created, 0).UTC()
		}
		if ar.Price != "" {
			p, ok := new(big.Int).SetString(ar.Price, 10)
			if !ok {
				return nil, fmt.Errorf("price %q is not a decimal integer", ar.Price)
			}
			a.Price = p
		}
		entry.Assets = append(entry.Assets, a)
	}
	return entry, nil
}
