// Package config loads service configuration from the environment.
// Invalid values fall back to their defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all runtime configuration for the orchestrator.
type Configuration struct {
	Service       ServiceConfig
	LiveKit       LiveKitConfig
	SIP           SIPConfig
	Room          RoomConfig
	Agent         AgentConfig
	Presence      PresenceConfig
	Campaign      CampaignConfig
	Kafka         KafkaConfig
	Pipeline      PipelineConfig
	Transcript    TranscriptConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service instance.
type ServiceConfig struct {
	Principal string
	GRPCPort  string
	Env       string
}

// LiveKitConfig holds provider admin credentials.
type LiveKitConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// SIPConfig holds carrier-side call parameters.
type SIPConfig struct {
	OutboundTrunkID     string
	ParticipantIdentity string
	ParticipantName     string
	TransferTo          string
	AnswerTimeout       time.Duration
	AgentAttachTimeout  time.Duration
	KrispEnabled        bool
}

// RoomConfig holds defaults for session containers.
type RoomConfig struct {
	Prefix          string
	EmptyTimeout    time.Duration
	MaxParticipants int
}

// AgentConfig holds agent-leg defaults.
type AgentConfig struct {
	Name      string
	Identity  string
	Greeting  string
	QueueSize int
}

// PresenceConfig tunes the presence monitor. The polling interval is a
// responsiveness/load trade-off, surfaced here rather than hard-coded.
type PresenceConfig struct {
	PollInterval time.Duration
}

// CampaignConfig holds campaign sequencing defaults.
type CampaignConfig struct {
	Delay time.Duration
}

// KafkaConfig configures the lifecycle/transcript event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicLifecycle  string
	TopicTranscript string
	Principal       string
}

// PipelineConfig selects and tunes the conversational pipeline.
type PipelineConfig struct {
	Provider     string // mock, voice
	STTProvider  string // mock, google
	STTLanguage  string
	LLMModel     string
	TTSModel     string
	TTSVoice     string
	OpenAIAPIKey string
	SystemPrompt string
}

// TranscriptConfig selects the transcript persistence backend.
type TranscriptConfig struct {
	Backend string // file, sqlite
	Dir     string
	DBPath  string
}

// ObservabilityConfig configures logging and the metrics HTTP server.
type ObservabilityConfig struct {
	LogLevel string
	HTTPAddr string
}

// Load reads configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-call-orchestrator")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
			Env:       envOrDefault("ENV", "prod"),
		},
		LiveKit: LiveKitConfig{
			URL:       envOrDefault("LIVEKIT_URL", ""),
			APIKey:    envOrDefault("LIVEKIT_API_KEY", ""),
			APISecret: envOrDefault("LIVEKIT_API_SECRET", ""),
		},
		SIP: SIPConfig{
			OutboundTrunkID:     envOrDefault("SIP_OUTBOUND_TRUNK_ID", ""),
			ParticipantIdentity: envOrDefault("SIP_PARTICIPANT_IDENTITY", "sip-caller"),
			ParticipantName:     envOrDefault("SIP_PARTICIPANT_NAME", "Phone Caller"),
			TransferTo:          envOrDefault("SIP_TRANSFER_TO", ""),
			AnswerTimeout:       envOrDefaultDuration("SIP_ANSWER_TIMEOUT", 60*time.Second),
			AgentAttachTimeout:  envOrDefaultDuration("AGENT_ATTACH_TIMEOUT", 10*time.Second),
			KrispEnabled:        envOrDefaultBool("SIP_KRISP_ENABLED", true),
		},
		Room: RoomConfig{
			Prefix:          envOrDefault("ROOM_PREFIX", "outbound-call"),
			EmptyTimeout:    envOrDefaultDuration("ROOM_EMPTY_TIMEOUT", 60*time.Second),
			MaxParticipants: envOrDefaultInt("ROOM_MAX_PARTICIPANTS", 10),
		},
		Agent: AgentConfig{
			Name:      envOrDefault("AGENT_NAME", "voice-assistant"),
			Identity:  envOrDefault("AGENT_IDENTITY", "voice-agent"),
			Greeting:  envOrDefault("AGENT_GREETING", "Greet the caller and ask how you can help."),
			QueueSize: envOrDefaultInt("AGENT_QUEUE_SIZE", 32),
		},
		Presence: PresenceConfig{
			PollInterval: envOrDefaultDuration("PRESENCE_POLL_INTERVAL", 2*time.Second),
		},
		Campaign: CampaignConfig{
			Delay: envOrDefaultDuration("CAMPAIGN_DELAY", 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicLifecycle:  envOrDefault("KAFKA_TOPIC_LIFECYCLE", "call.lifecycle"),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "call.transcripts"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Pipeline: PipelineConfig{
			Provider:     envOrDefault("PIPELINE_PROVIDER", "mock"),
			STTProvider:  envOrDefault("STT_PROVIDER", "mock"),
			STTLanguage:  envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			LLMModel:     envOrDefault("LLM_MODEL", "gpt-4o-mini"),
			TTSModel:     envOrDefault("TTS_MODEL", "tts-1"),
			TTSVoice:     envOrDefault("TTS_VOICE", "alloy"),
			OpenAIAPIKey: envOrDefault("OPENAI_API_KEY", ""),
			SystemPrompt: envOrDefault("AGENT_SYSTEM_PROMPT", "You are a helpful voice assistant on a phone call. Keep answers short."),
		},
		Transcript: TranscriptConfig{
			Backend: envOrDefault("TRANSCRIPT_BACKEND", "file"),
			Dir:     envOrDefault("TRANSCRIPT_DIR", "transcripts"),
			DBPath:  envOrDefault("TRANSCRIPT_DB_PATH", "transcripts.db"),
		},
		Observability: ObservabilityConfig{
			LogLevel: envOrDefault("LOG_LEVEL", "info"),
			HTTPAddr: envOrDefault("OBSERVABILITY_HTTP_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
