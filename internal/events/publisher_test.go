package events

import (
	"context"
	"testing"

	"voice-call-orchestrator/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerLifecycle != nil {
				t.Error("expected nil lifecycle writer when disabled")
			}
			if p.writerTranscript != nil {
				t.Error("expected nil transcript writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:         false,
		Brokers:         []string{"localhost:9092"},
		TopicLifecycle:  "test.lifecycle",
		TopicTranscript: "test.transcripts",
		Principal:       "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicLifecycle != "test.lifecycle" {
		t.Errorf("expected topic lifecycle 'test.lifecycle', got %s", p.topicLifecycle)
	}
	if p.topicTranscript != "test.transcripts" {
		t.Errorf("expected topic transcript 'test.transcripts', got %s", p.topicTranscript)
	}
}

func TestPublisher_PublishLifecycle_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	event := models.CallPlaced{
		EventType:   models.EventCallPlaced,
		Room:        "outbound-call-1",
		PhoneNumber: "+15550001111",
	}
	if err := p.PublishLifecycle(context.Background(), "outbound-call-1", event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishTranscript_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	event := models.TranscriptPersisted{
		EventType: models.EventTranscriptPersisted,
		Room:      "outbound-call-1",
		Location:  "transcripts/outbound-call-1.json",
		Turns:     4,
	}
	if err := p.PublishTranscript(context.Background(), "outbound-call-1", event); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshaled
	event := make(chan int)
	if err := p.PublishLifecycle(context.Background(), "room", event); err == nil {
		t.Error("expected error for unmarshalable event")
	}
	if err := p.PublishTranscript(context.Background(), "room", event); err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{
		writerLifecycle:  nil,
		writerTranscript: nil,
	}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
