// Package direction pairs a network with its bridge partner and decides the
// transfer direction.
package direction

import (
	"fmt"
	"sort"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
)

// Resolution is the outcome of resolving an active network
type Resolution struct {
	Source      entities.Network
	Destination entities.Network
	Direction   entities.Direction
}

// Resolver maps networks to their partners. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	networks map[string]entities.Network
	partner  map[string]string
	primary  map[string]bool
}

// NewResolver validates that pairs are disjoint and reference known networks
func NewResolver(networks map[string]entities.Network, pairs []entities.NetworkPair) (*Resolver, error) {
	r := &Resolver{
		networks: make(map[string]entities.Network, len(networks)),
		partner:  make(map[string]string, len(pairs)*2),
		primary:  make(map[string]bool, len(pairs)),
	}
	for id, n := range networks {
		if n.ID == "" {
			n.ID = id
		}
		r.networks[id] = n
	}

	for _, p := range pairs {
		if p.Primary == p.Secondary {
			return nil, fmt.Errorf("network %q cannot be paired with itself", p.Primary)
		}
		for _, id := range []string{p.Primary, p.Secondary} {
			if _, ok := r.networks[id]; !ok {
				return nil, fmt.Errorf("network %q is not configured", id)
			}
			if _, dup := r.partner[id]; dup {
				return nil, fmt.Errorf("network %q belongs to more than one pair", id)
			}
		}
		r.partner[p.Primary] = p.Secondary
		r.partner[p.Secondary] = p.Primary
		r.primary[p.Primary] = true
	}
	return r, nil
}

// Resolve returns source, destination and direction for the active network
func (r *Resolver) Resolve(activeNetwork string) (Resolution, error) {
	dest, ok := r.partner[activeNetwork]
	if !ok {
		return Resolution{}, domainerrors.UnsupportedNetworkError(activeNetwork)
	}
	dir := entities.DirectionReverse
	if r.primary[activeNetwork] {
		dir = entities.DirectionForward
	}
	return Resolution{
		Source:      r.networks[activeNetwork],
		Destination: r.networks[dest],
		Direction:   dir,
	}, nil
}

// Lookup returns a configured network
func (r *Resolver) Lookup(id string) (entities.Network, bool) {
	n, ok := r.networks[id]
	return n, ok
}

// Supported reports whether the network belongs to a pair
func (r *Resolver) Supported(id string) bool {
	_, ok := r.partner[id]
	return ok
}

// Networks lists the paired networks sorted by ID
func (r *Resolver) Networks() []entities.Network {
	out := make([]entities.Network, 0, len(r.partner))
	for id := range r.partner {
		out = append(out, r.networks[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
