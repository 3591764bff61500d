package transcript

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voice-call-orchestrator/internal/pipeline"
)

func sampleTurns() []pipeline.Turn {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []pipeline.Turn{
		{Role: pipeline.RoleAgent, Text: "Hello, this is the assistant", Timestamp: base},
		{Role: pipeline.RoleUser, Text: "Hi, I have a question", Confidence: 0.93, Timestamp: base.Add(3 * time.Second)},
		{Role: pipeline.RoleAgent, Text: "Go ahead", Timestamp: base.Add(5 * time.Second)},
	}
}

func TestFileStore_Persist(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	path, err := store.Persist(context.Background(), "outbound-call-1", sampleTurns())
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if path != filepath.Join(dir, "outbound-call-1.json") {
		t.Errorf("unexpected transcript path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	var doc struct {
		Session string          `json:"session"`
		Turns   []pipeline.Turn `json:"turns"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal transcript: %v", err)
	}
	if doc.Session != "outbound-call-1" {
		t.Errorf("expected session name in document, got %s", doc.Session)
	}
	if len(doc.Turns) != 3 {
		t.Errorf("expected 3 turns, got %d", len(doc.Turns))
	}
	if doc.Turns[1].Role != pipeline.RoleUser || doc.Turns[1].Confidence != 0.93 {
		t.Errorf("turn order or fields lost: %+v", doc.Turns[1])
	}
}

func TestFileStore_EmptyTranscript(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	path, err := store.Persist(context.Background(), "outbound-call-2", nil)
	if err != nil {
		t.Fatalf("Persist of empty transcript failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected document even for empty transcript: %v", err)
	}
}

func TestSQLiteStore_PersistAndLoad(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	ref, err := store.Persist(ctx, "outbound-call-1", sampleTurns())
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if ref != "sqlite:outbound-call-1" {
		t.Errorf("unexpected reference %s", ref)
	}

	turns, err := store.Load(ctx, "outbound-call-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	want := sampleTurns()
	for i, turn := range turns {
		if turn.Role != want[i].Role || turn.Text != want[i].Text {
			t.Errorf("turn %d mismatch: got %+v want %+v", i, turn, want[i])
		}
		if !turn.Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("turn %d timestamp mismatch: got %v want %v", i, turn.Timestamp, want[i].Timestamp)
		}
	}
}

func TestSQLiteStore_RepersistReplaces(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Persist(ctx, "room-1", sampleTurns()); err != nil {
		t.Fatalf("first Persist failed: %v", err)
	}
	short := sampleTurns()[:1]
	if _, err := store.Persist(ctx, "room-1", short); err != nil {
		t.Fatalf("second Persist failed: %v", err)
	}

	turns, err := store.Load(ctx, "room-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("expected re-persist to replace rows, got %d turns", len(turns))
	}
}

func TestSQLiteStore_LoadMissingSession(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	turns, err := store.Load(context.Background(), "never-happened")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected no turns for unknown session, got %d", len(turns))
	}
}
