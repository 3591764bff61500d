// Package mock provides a mock STT adapter for testing without cloud
// credentials. It simulates progressive partial transcripts and exactly
// one final transcript per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"voice-call-orchestrator/internal/pipeline/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances provides sample utterances for simulation.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I'm calling", "I'm calling about"},
		Final:      "I'm calling about my appointment",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Can I speak", "Can I speak to"},
		Final:      "Can I speak to a person",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you goodbye",
		Confidence: 0.98,
	},
}

// Adapter implements stt.Adapter with mock responses: one partial per
// audio frame, then a single final once the partials are exhausted.
type Adapter struct {
	cb           stt.Callback
	mu           sync.Mutex
	utterance    SimulatedUtterance
	partialIndex int
	finalSent    bool
	closed       bool
}

// utteranceCounter cycles through the default utterances.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a new mock STT adapter.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return &Adapter{utterance: DefaultUtterances[idx]}
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio simulates receiving audio and triggers progressive partial
// transcripts. When all partials are sent, the final fires, mimicking
// silence detection ending the utterance.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.cb == nil {
		return nil
	}

	if a.partialIndex < len(a.utterance.Partials) {
		partial := a.utterance.Partials[a.partialIndex]
		a.partialIndex++

		go func(text string) {
			time.Sleep(50 * time.Millisecond)
			a.mu.Lock()
			cb, closed := a.cb, a.closed
			a.mu.Unlock()
			if !closed && cb != nil {
				cb.OnPartial(text)
			}
		}(partial)
	} else if !a.finalSent {
		a.finalSent = true

		go func() {
			time.Sleep(100 * time.Millisecond)
			a.mu.Lock()
			cb, closed, utt := a.cb, a.closed, a.utterance
			a.mu.Unlock()
			if !closed && cb != nil {
				cb.OnFinal(utt.Final, utt.Confidence)
			}
		}()
	}

	return nil
}

// Close ends the mock session. If the stream ended before the utterance
// completed naturally, the final is delivered now.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	if !a.finalSent && a.cb != nil {
		a.finalSent = true
		cb, utt := a.cb, a.utterance
		go func() {
			time.Sleep(100 * time.Millisecond)
			cb.OnFinal(utt.Final, utt.Confidence)
		}()
	}

	return nil
}
