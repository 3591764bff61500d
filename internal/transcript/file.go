package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/pipeline"
)

// FileStore writes one JSON document per session into a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if missing.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "transcripts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

type fileDocument struct {
	Session     string          `json:"session"`
	PersistedAt time.Time       `json:"persistedAt"`
	Turns       []pipeline.Turn `json:"turns"`
}

// Persist writes <dir>/<session>.json and returns its path. An existing
// file for the same session is overwritten; the session name is unique
// per call.
func (s *FileStore) Persist(ctx context.Context, sessionName string, turns []pipeline.Turn) (string, error) {
	doc := fileDocument{
		Session:     sessionName,
		PersistedAt: time.Now().UTC(),
		Turns:       turns,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	path := filepath.Join(s.dir, sessionName+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write transcript %s: %w", path, err)
	}

	log.Info().
		Str("component", "transcript").
		Str("room", sessionName).
		Str("path", path).
		Int("turns", len(turns)).
		Msg("Transcript persisted")
	return path, nil
}
