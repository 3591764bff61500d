package presence

import (
	"context"
	"testing"
	"time"

	"voice-call-orchestrator/internal/provider"
	"voice-call-orchestrator/internal/provider/providertest"
)

func waitForEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestMonitor_JoinAndLeave(t *testing.T) {
	fake := providertest.New()
	if _, err := fake.CreateRoom(context.Background(), provider.CreateRoomOptions{Name: "room-1"}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(fake, 10*time.Millisecond)
	events := m.Watch(ctx, "room-1")

	fake.AddParticipant("room-1", provider.Participant{
		Identity: "sip-caller",
		Kind:     provider.KindSIP,
		State:    provider.StateActive,
	})
	ev := waitForEvent(t, events, ParticipantJoined)
	if ev.Participant.Identity != "sip-caller" {
		t.Errorf("expected sip-caller join, got %s", ev.Participant.Identity)
	}

	fake.RemoveParticipant("room-1", "sip-caller")
	ev = waitForEvent(t, events, ParticipantLeft)
	if ev.Participant.Identity != "sip-caller" {
		t.Errorf("expected sip-caller leave, got %s", ev.Participant.Identity)
	}
}

func TestMonitor_SessionClosed_ClosesChannel(t *testing.T) {
	fake := providertest.New()
	if _, err := fake.CreateRoom(context.Background(), provider.CreateRoomOptions{Name: "room-1"}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(fake, 10*time.Millisecond)
	events := m.Watch(ctx, "room-1")

	fake.CloseRoom("room-1")

	ev := waitForEvent(t, events, SessionClosed)
	if ev.Room != "room-1" {
		t.Errorf("expected room-1 closure, got %s", ev.Room)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected channel close after session_closed")
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for channel close")
	}
}

func TestMonitor_CancelStopsWatch(t *testing.T) {
	fake := providertest.New()
	if _, err := fake.CreateRoom(context.Background(), provider.CreateRoomOptions{Name: "room-1"}); err != nil {
		t.Fatalf("create room: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(fake, 10*time.Millisecond)
	events := m.Watch(ctx, "room-1")
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel close after cancel")
		}
	}
}

func TestMonitor_WatchMissingRoom(t *testing.T) {
	fake := providertest.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(fake, 10*time.Millisecond)
	events := m.Watch(ctx, "never-existed")

	ev := waitForEvent(t, events, SessionClosed)
	if ev.Room != "never-existed" {
		t.Errorf("unexpected room in closure event: %s", ev.Room)
	}
}

func TestIsCallActive(t *testing.T) {
	sip := provider.Participant{Identity: "sip-caller", Kind: provider.KindSIP, State: provider.StateActive}
	agent := provider.Participant{Identity: "voice-agent", Kind: provider.KindAgent, State: provider.StateActive}
	joiningAgent := provider.Participant{Identity: "voice-agent", Kind: provider.KindAgent, State: provider.StateJoining}

	tests := []struct {
		name  string
		parts []provider.Participant
		want  bool
	}{
		{"both active", []provider.Participant{sip, agent}, true},
		{"agent only", []provider.Participant{agent}, false},
		{"telephony only", []provider.Participant{sip}, false},
		{"agent still joining", []provider.Participant{sip, joiningAgent}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCallActive(tt.parts); got != tt.want {
				t.Errorf("IsCallActive = %v, want %v", got, tt.want)
			}
		})
	}
}
