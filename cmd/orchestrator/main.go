package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voice-call-orchestrator/internal/agent"
	"voice-call-orchestrator/internal/app"
	"voice-call-orchestrator/internal/call"
	"voice-call-orchestrator/internal/config"
	"voice-call-orchestrator/internal/dispatch"
	"voice-call-orchestrator/internal/events"
	"voice-call-orchestrator/internal/observability"
	"voice-call-orchestrator/internal/pipeline"
	pipelinemock "voice-call-orchestrator/internal/pipeline/mock"
	"voice-call-orchestrator/internal/pipeline/stt"
	sttgoogle "voice-call-orchestrator/internal/pipeline/stt/google"
	sttmock "voice-call-orchestrator/internal/pipeline/stt/mock"
	"voice-call-orchestrator/internal/pipeline/voice"
	"voice-call-orchestrator/internal/presence"
	"voice-call-orchestrator/internal/provider/livekit"
	"voice-call-orchestrator/internal/session"
	"voice-call-orchestrator/internal/transcript"
	"voice-call-orchestrator/internal/trunk"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicLifecycle:  cfg.Kafka.TopicLifecycle,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	lk := livekit.New(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	sessions := session.NewManager(lk)
	monitor := presence.NewMonitor(lk, cfg.Presence.PollInterval)

	trunks := trunk.NewRegistry(lk)
	if err := trunks.Refresh(ctx); err != nil {
		log.Fatal().Err(err).Msg("Trunk inventory refresh failed")
	}

	rules, err := lk.ListDispatchRules(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Dispatch rule listing failed")
	}
	resolver := dispatch.NewResolver(dispatch.FromProvider(rules))
	log.Info().
		Int("rules", len(rules)).
		Int("trunks", len(trunks.List())).
		Msg("Carrier configuration loaded")

	persister, closeStore, err := buildPersister(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Transcript store setup failed")
	}
	defer closeStore()

	runner := agent.NewRunner(agent.RunnerConfig{
		Identity:          cfg.Agent.Identity,
		Name:              cfg.Agent.Name,
		Greeting:          cfg.Agent.Greeting,
		TransferTo:        cfg.SIP.TransferTo,
		PlayDialtone:      true,
		QueueSize:         cfg.Agent.QueueSize,
		Joiner:            lk,
		Sessions:          sessions,
		SIP:               lk,
		Monitor:           monitor,
		Factory:           buildPipelineFactory(cfg),
		Persister:         persister,
		TranscriptBackend: cfg.Transcript.Backend,
		Publisher:         publisher,
	})
	defer runner.Close()

	inbound := call.NewInboundWatcher(sessions, resolver, runner, cfg.Presence.PollInterval)
	go inbound.Run(ctx)

	obs := observability.NewServer(cfg.Observability.HTTPAddr)
	obs.Start()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor()),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Reflection for debugging tools like grpcurl.
	reflection.Register(server)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Voice call orchestrator started")
		if err := server.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	cancel()
	runner.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Observability server shutdown failed")
	}

	server.GracefulStop()
	application.Shutdown()
}

// buildPersister selects the transcript backend.
func buildPersister(cfg *config.Configuration) (transcript.Persister, func(), error) {
	switch cfg.Transcript.Backend {
	case "sqlite":
		store, err := transcript.OpenSQLite(cfg.Transcript.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		store, err := transcript.NewFileStore(cfg.Transcript.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// buildPipelineFactory selects the conversational pipeline. The mock
// pipeline keeps the orchestrator runnable with no AI credentials.
func buildPipelineFactory(cfg *config.Configuration) pipeline.Factory {
	if cfg.Pipeline.Provider != "voice" {
		return pipelinemock.Factory(nil)
	}
	return func(ctx context.Context) (pipeline.Pipeline, error) {
		var adapter stt.Adapter
		switch cfg.Pipeline.STTProvider {
		case "google":
			a, err := sttgoogle.New(ctx, cfg.Pipeline.STTLanguage)
			if err != nil {
				return nil, err
			}
			adapter = a
		default:
			adapter = sttmock.New()
		}
		return voice.New(voice.Config{
			STT:          adapter,
			OpenAIAPIKey: cfg.Pipeline.OpenAIAPIKey,
			LLMModel:     cfg.Pipeline.LLMModel,
			TTSModel:     cfg.Pipeline.TTSModel,
			TTSVoice:     cfg.Pipeline.TTSVoice,
			SystemPrompt: cfg.Pipeline.SystemPrompt,
		}), nil
	}
}
