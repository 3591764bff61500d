// Package transcript persists completed call transcripts. Persistence
// runs on the call-end path; a store failure is logged and surfaced but
// never blocks session teardown.
package transcript

import (
	"context"

	"voice-call-orchestrator/internal/pipeline"
)

// Persister writes one finished transcript and returns its location
// (a file path, a database reference) for the lifecycle event.
type Persister interface {
	Persist(ctx context.Context, sessionName string, turns []pipeline.Turn) (string, error)
}
