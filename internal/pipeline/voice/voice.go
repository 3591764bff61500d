// Package voice implements the conversational pipeline: caller speech is
// transcribed by an STT adapter, answered by a chat model, and spoken
// back through speech synthesis.
package voice

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"voice-call-orchestrator/internal/pipeline"
	"voice-call-orchestrator/internal/pipeline/stt"
)

// Config assembles a voice pipeline.
type Config struct {
	STT          stt.Adapter
	OpenAIAPIKey string
	LLMModel     string
	TTSModel     string
	TTSVoice     string
	SystemPrompt string

	// AudioOut receives synthesized speech. Nil discards it, which is
	// fine when playback is handled elsewhere.
	AudioOut io.Writer
}

// Pipeline implements pipeline.Pipeline and stt.Callback.
type Pipeline struct {
	sttAdapter stt.Adapter
	ai         *openai.Client
	llmModel   string
	ttsModel   string
	ttsVoice   string
	system     string
	audioOut   io.Writer

	mu      sync.Mutex
	history []openai.ChatCompletionMessage
	closed  bool
	info    pipeline.Info

	turns  chan pipeline.Turn
	done   chan struct{}
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a voice pipeline from the given config.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		sttAdapter: cfg.STT,
		ai:         openai.NewClient(cfg.OpenAIAPIKey),
		llmModel:   cfg.LLMModel,
		ttsModel:   cfg.TTSModel,
		ttsVoice:   cfg.TTSVoice,
		system:     cfg.SystemPrompt,
		audioOut:   cfg.AudioOut,
		turns:      make(chan pipeline.Turn, 32),
		done:       make(chan struct{}),
	}
}

// Start opens the STT stream and speaks the greeting.
func (p *Pipeline) Start(ctx context.Context, info pipeline.Info) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.mu.Lock()
	p.info = info
	if p.system != "" {
		p.history = append(p.history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.system,
		})
	}
	p.mu.Unlock()

	if err := p.sttAdapter.Start(p.ctx, p); err != nil {
		return fmt.Errorf("start stt: %w", err)
	}

	if info.Greeting != "" {
		p.speak(info.Greeting)
	}
	return nil
}

// SendAudio forwards caller audio into the STT stream.
func (p *Pipeline) SendAudio(ctx context.Context, audio []byte) error {
	return p.sttAdapter.SendAudio(ctx, audio)
}

// Turns streams completed turns.
func (p *Pipeline) Turns() <-chan pipeline.Turn {
	return p.turns
}

// Close tears down the STT stream and ends the turn stream. Idempotent.
func (p *Pipeline) Close() error {
	var err error
	p.once.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		err = p.sttAdapter.Close()
		p.mu.Lock()
		p.closed = true
		close(p.turns)
		p.mu.Unlock()
		close(p.done)
	})
	return err
}

// OnPartial implements stt.Callback. Partials are progress only.
func (p *Pipeline) OnPartial(text string) {
	log.Debug().
		Str("component", "voice").
		Str("room", p.info.SessionName).
		Str("text", text).
		Msg("Partial transcript")
}

// OnFinal implements stt.Callback: record the user turn and respond.
func (p *Pipeline) OnFinal(text string, confidence float64) {
	if !p.emit(pipeline.Turn{
		Role:       pipeline.RoleUser,
		Text:       text,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}) {
		return
	}

	p.mu.Lock()
	p.history = append(p.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	messages := append([]openai.ChatCompletionMessage(nil), p.history...)
	p.mu.Unlock()

	resp, err := p.ai.CreateChatCompletion(p.ctx, openai.ChatCompletionRequest{
		Model:    p.llmModel,
		Messages: messages,
	})
	if err != nil {
		log.Error().
			Str("component", "voice").
			Str("room", p.info.SessionName).
			Err(err).
			Msg("Chat completion failed")
		return
	}
	if len(resp.Choices) == 0 {
		return
	}
	p.speak(resp.Choices[0].Message.Content)
}

// OnError implements stt.Callback.
func (p *Pipeline) OnError(err error) {
	select {
	case <-p.done:
		return
	default:
	}
	log.Error().
		Str("component", "voice").
		Str("room", p.info.SessionName).
		Err(err).
		Msg("STT stream error")
}

// speak records an agent turn and synthesizes it.
func (p *Pipeline) speak(text string) {
	p.mu.Lock()
	p.history = append(p.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: text,
	})
	p.mu.Unlock()

	if !p.emit(pipeline.Turn{Role: pipeline.RoleAgent, Text: text, Timestamp: time.Now()}) {
		return
	}

	if p.audioOut == nil {
		return
	}
	audio, err := p.ai.CreateSpeech(p.ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(p.ttsModel),
		Input: text,
		Voice: openai.SpeechVoice(p.ttsVoice),
	})
	if err != nil {
		log.Error().
			Str("component", "voice").
			Str("room", p.info.SessionName).
			Err(err).
			Msg("Speech synthesis failed")
		return
	}
	defer audio.Close()
	if _, err := io.Copy(p.audioOut, audio); err != nil {
		log.Warn().
			Str("component", "voice").
			Str("room", p.info.SessionName).
			Err(err).
			Msg("Audio playback write failed")
	}
}

// emit sends a turn unless the pipeline is closed. The channel is
// buffered; a full buffer drops the turn rather than stalling the
// conversation.
func (p *Pipeline) emit(t pipeline.Turn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.turns <- t:
	default:
		log.Warn().
			Str("component", "voice").
			Str("room", p.info.SessionName).
			Msg("Turn buffer full, dropping turn")
	}
	return true
}
