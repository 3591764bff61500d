package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voice-call-orchestrator/internal/provider/providertest"
)

func TestManager_Create(t *testing.T) {
	fake := providertest.New()
	m := NewManager(fake)

	s, err := m.Create(context.Background(), CreateOptions{
		Name:            "outbound-call-1",
		MaxParticipants: 10,
		EmptyTimeout:    60 * time.Second,
		Metadata:        map[string]string{MetaAgentName: "voice-assistant", MetaUserID: "tenant-7"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if s.Name != "outbound-call-1" {
		t.Errorf("expected session name 'outbound-call-1', got %s", s.Name)
	}
	if s.Metadata[MetaAgentName] != "voice-assistant" {
		t.Errorf("expected agent_name metadata, got %v", s.Metadata)
	}
	if s.Metadata[MetaUserID] != "tenant-7" {
		t.Errorf("expected user_id metadata, got %v", s.Metadata)
	}
}

func TestManager_Create_NameCollision(t *testing.T) {
	fake := providertest.New()
	m := NewManager(fake)
	ctx := context.Background()

	if _, err := m.Create(ctx, CreateOptions{Name: "shared-line"}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := m.Create(ctx, CreateOptions{Name: "shared-line"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestManager_Destroy_Idempotent(t *testing.T) {
	fake := providertest.New()
	m := NewManager(fake)
	ctx := context.Background()

	if _, err := m.Create(ctx, CreateOptions{Name: "room-1"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := m.Destroy(ctx, "room-1"); err != nil {
		t.Fatalf("first destroy failed: %v", err)
	}
	// Second destroy hits a room the provider no longer knows.
	if err := m.Destroy(ctx, "room-1"); err != nil {
		t.Errorf("destroy of already-gone session should succeed, got %v", err)
	}
	// A room reclaimed by the provider behaves the same.
	if err := m.Destroy(ctx, "never-existed"); err != nil {
		t.Errorf("destroy of unknown session should succeed, got %v", err)
	}
}

func TestManager_ListActive(t *testing.T) {
	fake := providertest.New()
	m := NewManager(fake)
	ctx := context.Background()

	for _, name := range []string{"room-a", "room-b", "room-c"} {
		if _, err := m.Create(ctx, CreateOptions{Name: name}); err != nil {
			t.Fatalf("create %s failed: %v", name, err)
		}
	}
	fake.CloseRoom("room-b") // provider-side reclamation

	sessions, err := m.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("expected 2 active sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.Name == "room-b" {
			t.Error("reclaimed room should not appear in active snapshot")
		}
	}
}

func TestGenerateName_Format(t *testing.T) {
	name := GenerateName("outbound-call")
	if !strings.HasPrefix(name, "outbound-call-") {
		t.Errorf("expected prefix 'outbound-call-', got %s", name)
	}
	parts := strings.Split(name, "-")
	suffix := parts[len(parts)-1]
	if len(suffix) != 8 {
		t.Errorf("expected 8-char random suffix, got %q", suffix)
	}
}

func TestGenerateName_UniqueUnderConcurrency(t *testing.T) {
	const n = 200
	var (
		mu    sync.Mutex
		names = make(map[string]bool, n)
		wg    sync.WaitGroup
	)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			name := GenerateName("outbound-call")
			mu.Lock()
			defer mu.Unlock()
			if names[name] {
				t.Errorf("duplicate session name generated: %s", name)
			}
			names[name] = true
		}()
	}
	wg.Wait()

	if len(names) != n {
		t.Errorf("expected %d unique names, got %d", n, len(names))
	}
}
