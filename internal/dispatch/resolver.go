// Package dispatch resolves inbound calls to a session name and a target
// agent using ordered rule matching.
package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"voice-call-orchestrator/internal/provider"
)

var (
	// ErrNoRule means no dispatch rule matched the inbound trunk; the
	// call is rejected.
	ErrNoRule = errors.New("dispatch: no rule matches")
	// ErrNoAgent means the matched rule names no target agent. This is a
	// configuration error: routing the call anyway would strand the
	// caller in a session nobody attends.
	ErrNoAgent = errors.New("dispatch: rule has no target agent")
)

// Rule is one ordered routing rule. Exactly one of RoomName (direct
// dispatch, a shared persistent line) or RoomPrefix (individual dispatch,
// one session per caller) is set.
type Rule struct {
	ID         string
	TrunkIDs   []string
	RoomName   string
	RoomPrefix string
	AgentName  string
}

// AppliesTo reports whether the rule covers the given trunk. A rule with
// no trunk list covers every trunk.
func (r Rule) AppliesTo(trunkID string) bool {
	if len(r.TrunkIDs) == 0 {
		return true
	}
	for _, id := range r.TrunkIDs {
		if id == trunkID {
			return true
		}
	}
	return false
}

// RoomNameFor derives the session name for a caller. Direct rules route
// everyone into the fixed room; individual rules derive a per-caller name
// from the prefix and the caller's number.
func (r Rule) RoomNameFor(caller string) string {
	if r.RoomName != "" {
		return r.RoomName
	}
	return r.RoomPrefix + sanitize(caller)
}

// Resolver holds the ordered rule set, read-only at call time.
type Resolver struct {
	rules []Rule
}

// NewResolver creates a resolver over an ordered rule list.
func NewResolver(rules []Rule) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve finds the first rule applying to the inbound trunk. First match
// wins; a matching rule without an agent is rejected, not routed.
func (rs *Resolver) Resolve(trunkID, calledNumber string) (Rule, error) {
	for _, r := range rs.rules {
		if !r.AppliesTo(trunkID) {
			continue
		}
		if r.AgentName == "" {
			return Rule{}, fmt.Errorf("%w: rule %s (trunk %s, number %s)", ErrNoAgent, r.ID, trunkID, calledNumber)
		}
		return r, nil
	}
	return Rule{}, fmt.Errorf("%w: trunk %s, number %s", ErrNoRule, trunkID, calledNumber)
}

// RuleForRoom matches a live room name back to the rule that produced it.
// Used by the inbound watcher to recognize rooms the carrier dispatched.
func (rs *Resolver) RuleForRoom(room string) (Rule, bool) {
	for _, r := range rs.rules {
		if r.RoomName != "" && r.RoomName == room {
			return r, true
		}
		if r.RoomPrefix != "" && strings.HasPrefix(room, r.RoomPrefix) {
			return r, true
		}
	}
	return Rule{}, false
}

// Rules returns the ordered rule set.
func (rs *Resolver) Rules() []Rule {
	return rs.rules
}

// FromProvider converts carrier-listed dispatch rules into the resolver's
// rule type, preserving order.
func FromProvider(in []provider.DispatchRule) []Rule {
	rules := make([]Rule, 0, len(in))
	for _, r := range in {
		rules = append(rules, Rule{
			ID:         r.ID,
			TrunkIDs:   r.TrunkIDs,
			RoomName:   r.RoomName,
			RoomPrefix: r.RoomPrefix,
			AgentName:  r.AgentName,
		})
	}
	return rules
}

// sanitize strips characters that are not welcome in room names.
func sanitize(caller string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		case c == '+':
			return -1
		default:
			return '_'
		}
	}, caller)
}
