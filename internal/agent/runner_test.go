package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	pipelinemock "voice-call-orchestrator/internal/pipeline/mock"
	"voice-call-orchestrator/internal/presence"
	"voice-call-orchestrator/internal/provider"
	"voice-call-orchestrator/internal/provider/providertest"
	"voice-call-orchestrator/internal/session"
)

type runnerHarness struct {
	fake      *providertest.Fake
	sessions  *session.Manager
	persister *countingPersister
	runner    *Runner
}

func newRunnerHarness(t *testing.T) *runnerHarness {
	t.Helper()
	fake := providertest.New()
	sessions := session.NewManager(fake)
	persister := &countingPersister{}
	runner := NewRunner(RunnerConfig{
		Identity:          "voice-agent",
		Name:              "Voice Assistant",
		Greeting:          "Hello",
		TransferTo:        "tel:+15559990000",
		Joiner:            fake,
		Sessions:          sessions,
		SIP:               fake,
		Monitor:           presence.NewMonitor(fake, 10*time.Millisecond),
		Factory:           pipelinemock.Factory(nil),
		Persister:         persister,
		TranscriptBackend: "file",
	})
	t.Cleanup(runner.Close)
	return &runnerHarness{fake: fake, sessions: sessions, persister: persister, runner: runner}
}

func (h *runnerHarness) createRoom(t *testing.T, name string) {
	t.Helper()
	if _, err := h.sessions.Create(context.Background(), session.CreateOptions{Name: name}); err != nil {
		t.Fatalf("create session: %v", err)
	}
}

func TestRunner_Dispatch_AttachesAgent(t *testing.T) {
	h := newRunnerHarness(t)
	h.createRoom(t, "room-1")

	attached, err := h.runner.Dispatch(context.Background(), "room-1", "voice-assistant", "tenant-1")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	select {
	case <-attached:
	case <-time.After(2 * time.Second):
		t.Fatal("agent never attached")
	}

	parts, err := h.sessions.Participants(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	var foundAgent bool
	for _, p := range parts {
		if p.Kind == provider.KindAgent && p.Identity == "voice-agent" {
			foundAgent = true
		}
	}
	if !foundAgent {
		t.Errorf("expected agent participant in session, got %+v", parts)
	}
}

func TestRunner_Dispatch_JoinFailure_NeverSignals(t *testing.T) {
	h := newRunnerHarness(t)
	h.createRoom(t, "room-1")
	h.fake.JoinErr = errors.New("token rejected")

	attached, err := h.runner.Dispatch(context.Background(), "room-1", "voice-assistant", "")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	select {
	case <-attached:
		t.Fatal("attach signaled despite join failure")
	case <-time.After(100 * time.Millisecond):
		// bounded wait on the caller side expires instead
	}
}

func TestRunner_SessionClosed_ShutsDownController(t *testing.T) {
	h := newRunnerHarness(t)
	h.createRoom(t, "room-1")

	attached, err := h.runner.Dispatch(context.Background(), "room-1", "voice-assistant", "")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	<-attached

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := h.runner.ControllerFor("room-1"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("controller never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	controller, _ := h.runner.ControllerFor("room-1")

	h.fake.CloseRoom("room-1")

	select {
	case <-controller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not shut down after session closure")
	}
	if got := h.persister.calls.Load(); got != 1 {
		t.Errorf("expected transcript persisted on closure, got %d", got)
	}
}

func TestRunner_CallerHangup_ShutsDownController(t *testing.T) {
	h := newRunnerHarness(t)
	h.createRoom(t, "room-1")
	h.fake.AddParticipant("room-1", provider.Participant{
		Identity: "sip-caller",
		Kind:     provider.KindSIP,
		State:    provider.StateActive,
	})

	attached, err := h.runner.Dispatch(context.Background(), "room-1", "voice-assistant", "")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	<-attached

	deadline := time.After(2 * time.Second)
	var controller *Controller
	for {
		if c, ok := h.runner.ControllerFor("room-1"); ok {
			controller = c
			break
		}
		select {
		case <-deadline:
			t.Fatal("controller never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Give the monitor a first snapshot containing the caller, then
	// hang up.
	time.Sleep(50 * time.Millisecond)
	h.fake.RemoveParticipant("room-1", "sip-caller")

	select {
	case <-controller.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not shut down after caller hangup")
	}
}

func TestRunner_DispatchAfterClose(t *testing.T) {
	h := newRunnerHarness(t)
	h.runner.Close()

	_, err := h.runner.Dispatch(context.Background(), "room-1", "voice-assistant", "")
	if !errors.Is(err, ErrRunnerStopped) {
		t.Errorf("expected ErrRunnerStopped, got %v", err)
	}
}
