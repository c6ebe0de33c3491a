package entities

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFreshnessWindow is how long a discovered asset list is trusted
const DefaultFreshnessWindow = 2 * time.Minute

// OwnershipCacheEntry is the discovered asset list of one account on one network
type OwnershipCacheEntry struct {
	Account   string
	NetworkID string
	Assets    []Asset
	FetchedAt time.Time
}

// IsFresh reports whether the entry is younger than window at now
func (e *OwnershipCacheEntry) IsFresh(now time.Time, window time.Duration) bool {
	return e != nil && now.Sub(e.FetchedAt) < window
}

// OwnershipCacheKey is the persisted key of an (account, network) entry.
// Accounts are lowercased so checksummed and plain forms share an entry.
func OwnershipCacheKey(account, networkID string) string {
	return fmt.Sprintf("%s%s", OwnershipAccountPrefix(account), networkID)
}

// OwnershipAccountPrefix prefixes every key belonging to account
func OwnershipAccountPrefix(account string) string {
	return fmt.Sprintf("nfts:%s:", strings.ToLower(account))
}
