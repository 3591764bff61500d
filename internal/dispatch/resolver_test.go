package dispatch

import (
	"errors"
	"strings"
	"testing"

	"voice-call-orchestrator/internal/provider"
)

func TestResolver_FirstMatchWins(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", TrunkIDs: []string{"T1"}, RoomPrefix: "inbound-", AgentName: "inbound-agent"},
		{ID: "rule-2", TrunkIDs: []string{"T1"}, RoomName: "catch-all", AgentName: "fallback-agent"},
	})

	rule, err := rs.Resolve("T1", "+390620199287")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rule.ID != "rule-1" {
		t.Errorf("expected first matching rule, got %s", rule.ID)
	}
}

func TestResolver_PrefixRule_DerivesRoomAndAgent(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", TrunkIDs: []string{"T1"}, RoomPrefix: "call-", AgentName: "inbound-agent"},
	})

	rule, err := rs.Resolve("T1", "+390620199287")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	room := rule.RoomNameFor("+390620199287")
	if !strings.HasPrefix(room, "call-") {
		t.Errorf("expected room to begin with rule prefix, got %s", room)
	}
	if strings.Contains(room, "+") {
		t.Errorf("expected sanitized caller suffix, got %s", room)
	}
	if rule.AgentName != "inbound-agent" {
		t.Errorf("expected rule's agent identifier, got %s", rule.AgentName)
	}
}

func TestResolver_DirectRule_SharedRoom(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", TrunkIDs: []string{"T1"}, RoomName: "support-line", AgentName: "support-agent"},
	})

	rule, err := rs.Resolve("T1", "+15550001111")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := rule.RoomNameFor("+15550001111"); got != "support-line" {
		t.Errorf("direct rule should route all callers into the fixed room, got %s", got)
	}
	if got := rule.RoomNameFor("+15550002222"); got != "support-line" {
		t.Errorf("direct rule should route all callers into the fixed room, got %s", got)
	}
}

func TestResolver_NoMatch(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", TrunkIDs: []string{"T1"}, RoomPrefix: "call-", AgentName: "agent"},
	})

	_, err := rs.Resolve("T2", "+15550001111")
	if !errors.Is(err, ErrNoRule) {
		t.Errorf("expected ErrNoRule, got %v", err)
	}
}

func TestResolver_RuleWithoutAgent_Rejected(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", TrunkIDs: []string{"T1"}, RoomPrefix: "call-"},
	})

	_, err := rs.Resolve("T1", "+15550001111")
	if !errors.Is(err, ErrNoAgent) {
		t.Errorf("expected ErrNoAgent for misconfigured rule, got %v", err)
	}
}

func TestResolver_EmptyTrunkList_MatchesAllTrunks(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "rule-1", RoomPrefix: "any-", AgentName: "agent"},
	})

	for _, trunk := range []string{"T1", "T2", "T99"} {
		if _, err := rs.Resolve(trunk, "+15550001111"); err != nil {
			t.Errorf("expected rule with empty trunk list to match trunk %s, got %v", trunk, err)
		}
	}
}

func TestResolver_RuleForRoom(t *testing.T) {
	rs := NewResolver([]Rule{
		{ID: "direct", RoomName: "support-line", AgentName: "support-agent"},
		{ID: "individual", RoomPrefix: "call-", AgentName: "inbound-agent"},
	})

	tests := []struct {
		room   string
		wantID string
		found  bool
	}{
		{"support-line", "direct", true},
		{"call-390620199287", "individual", true},
		{"unrelated-room", "", false},
	}
	for _, tt := range tests {
		rule, ok := rs.RuleForRoom(tt.room)
		if ok != tt.found {
			t.Errorf("RuleForRoom(%s): found=%v, want %v", tt.room, ok, tt.found)
			continue
		}
		if ok && rule.ID != tt.wantID {
			t.Errorf("RuleForRoom(%s) = %s, want %s", tt.room, rule.ID, tt.wantID)
		}
	}
}

func TestFromProvider_PreservesOrder(t *testing.T) {
	rules := FromProvider([]provider.DispatchRule{
		{ID: "a", TrunkIDs: []string{"T1"}, RoomPrefix: "p-", AgentName: "agent-a"},
		{ID: "b", RoomName: "fixed", AgentName: "agent-b"},
	})
	if len(rules) != 2 || rules[0].ID != "a" || rules[1].ID != "b" {
		t.Errorf("expected ordered conversion, got %+v", rules)
	}
	if rules[0].RoomPrefix != "p-" || rules[1].RoomName != "fixed" {
		t.Errorf("expected rule kinds preserved, got %+v", rules)
	}
}
