// Package mock provides a scripted conversational pipeline for running
// the orchestrator without any AI providers configured.
package mock

import (
	"context"
	"sync"
	"time"

	"voice-call-orchestrator/internal/pipeline"
)

// DefaultScript is the conversation played when no script is given.
var DefaultScript = []pipeline.Turn{
	{Role: pipeline.RoleUser, Text: "Hello, who is this?", Confidence: 0.95},
	{Role: pipeline.RoleAgent, Text: "This is the automated assistant, how can I help?"},
	{Role: pipeline.RoleUser, Text: "I'm calling about my appointment", Confidence: 0.93},
	{Role: pipeline.RoleAgent, Text: "Sure, let me look that up for you."},
}

// Pipeline replays a scripted conversation at a fixed cadence.
type Pipeline struct {
	script   []pipeline.Turn
	interval time.Duration

	mu      sync.Mutex
	started bool
	closed  bool

	turns chan pipeline.Turn
	done  chan struct{}
	once  sync.Once
}

// New creates a scripted pipeline. A nil script plays DefaultScript.
func New(script []pipeline.Turn, interval time.Duration) *Pipeline {
	if script == nil {
		script = DefaultScript
	}
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &Pipeline{
		script:   script,
		interval: interval,
		turns:    make(chan pipeline.Turn, len(script)+1),
		done:     make(chan struct{}),
	}
}

// Factory returns a pipeline.Factory producing fresh scripted pipelines.
func Factory(script []pipeline.Turn) pipeline.Factory {
	return func(ctx context.Context) (pipeline.Pipeline, error) {
		return New(script, 0), nil
	}
}

// Start emits the greeting followed by the script, one turn per interval.
func (p *Pipeline) Start(ctx context.Context, info pipeline.Info) error {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	go func() {
		if info.Greeting != "" {
			p.emit(pipeline.Turn{Role: pipeline.RoleAgent, Text: info.Greeting, Timestamp: time.Now()})
		}
		for _, turn := range p.script {
			select {
			case <-time.After(p.interval):
			case <-p.done:
				return
			case <-ctx.Done():
				return
			}
			turn.Timestamp = time.Now()
			if !p.emit(turn) {
				return
			}
		}
	}()
	return nil
}

// emit never blocks: the channel is buffered to hold the whole script
// plus the greeting.
func (p *Pipeline) emit(t pipeline.Turn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.turns <- t
	return true
}

// Turns streams the scripted turns.
func (p *Pipeline) Turns() <-chan pipeline.Turn {
	return p.turns
}

// Close stops playback. Idempotent.
func (p *Pipeline) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.mu.Lock()
		p.closed = true
		close(p.turns)
		p.mu.Unlock()
	})
	return nil
}

// Started reports whether Start was called.
func (p *Pipeline) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
