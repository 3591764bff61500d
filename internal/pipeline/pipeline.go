// Package pipeline defines the boundary to the conversational media
// pipeline attached to a call. The orchestrator starts a pipeline per
// session, drains its turns into the transcript, and closes it when the
// call ends. Everything inside the pipeline (speech recognition, the
// language model, speech synthesis) is the implementation's business.
package pipeline

import (
	"context"
	"time"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// Turn is one completed utterance in the conversation.
type Turn struct {
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Info carries the per-session parameters a pipeline needs at start.
type Info struct {
	SessionName string
	AgentName   string
	UserID      string
	Greeting    string
}

// Pipeline is one live conversational session.
type Pipeline interface {
	// Start begins the session. It must be called exactly once.
	Start(ctx context.Context, info Info) error

	// Turns streams completed turns in order. The channel closes when
	// the pipeline ends, after Close or on internal failure.
	Turns() <-chan Turn

	// Close ends the session and releases resources. Idempotent.
	Close() error
}

// Factory builds a fresh pipeline for one session.
type Factory func(ctx context.Context) (Pipeline, error)
