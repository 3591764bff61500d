// Package trunk caches the carrier's trunk inventory so call placement
// can reject unknown trunks without a carrier round-trip.
package trunk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/provider"
)

// ErrUnknownTrunk is returned when a lookup misses the cached inventory.
var ErrUnknownTrunk = errors.New("trunk: unknown trunk id")

// Registry holds a refreshable snapshot of the carrier's inbound and
// outbound trunks, keyed by trunk ID. Reads are lock-cheap; Refresh swaps
// the whole snapshot.
type Registry struct {
	sip provider.SIPAPI

	mu     sync.RWMutex
	trunks map[string]provider.Trunk
}

// NewRegistry creates an empty registry. Call Refresh before lookups.
func NewRegistry(sip provider.SIPAPI) *Registry {
	return &Registry{
		sip:    sip,
		trunks: make(map[string]provider.Trunk),
	}
}

// Refresh replaces the cached inventory with the carrier's current trunk
// listings. On error the previous snapshot is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	inbound, err := r.sip.ListInboundTrunks(ctx)
	if err != nil {
		return fmt.Errorf("list inbound trunks: %w", err)
	}
	outbound, err := r.sip.ListOutboundTrunks(ctx)
	if err != nil {
		return fmt.Errorf("list outbound trunks: %w", err)
	}

	next := make(map[string]provider.Trunk, len(inbound)+len(outbound))
	for _, t := range inbound {
		next[t.ID] = t
	}
	for _, t := range outbound {
		next[t.ID] = t
	}

	r.mu.Lock()
	r.trunks = next
	r.mu.Unlock()

	log.Debug().
		Str("component", "trunk").
		Int("inbound", len(inbound)).
		Int("outbound", len(outbound)).
		Msg("Trunk inventory refreshed")
	return nil
}

// Lookup returns the trunk with the given ID, or ErrUnknownTrunk.
func (r *Registry) Lookup(id string) (provider.Trunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trunks[id]
	if !ok {
		return provider.Trunk{}, fmt.Errorf("%w: %s", ErrUnknownTrunk, id)
	}
	return t, nil
}

// TrunkForNumber finds the inbound trunk serving a dialed number. Returns
// false when no trunk lists the number.
func (r *Registry) TrunkForNumber(number string) (provider.Trunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.trunks {
		if t.Direction != provider.TrunkInbound {
			continue
		}
		for _, n := range t.Numbers {
			if n == number {
				return t, true
			}
		}
	}
	return provider.Trunk{}, false
}

// List returns a snapshot of all cached trunks.
func (r *Registry) List() []provider.Trunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]provider.Trunk, 0, len(r.trunks))
	for _, t := range r.trunks {
		out = append(out, t)
	}
	return out
}
