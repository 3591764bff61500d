// Command campaigncli places a single outbound call or runs a sequential
// campaign from the command line, using the same call path as the
// orchestrator service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/agent"
	"voice-call-orchestrator/internal/app"
	"voice-call-orchestrator/internal/call"
	"voice-call-orchestrator/internal/config"
	"voice-call-orchestrator/internal/events"
	pipelinemock "voice-call-orchestrator/internal/pipeline/mock"
	"voice-call-orchestrator/internal/presence"
	"voice-call-orchestrator/internal/provider/livekit"
	"voice-call-orchestrator/internal/session"
	"voice-call-orchestrator/internal/transcript"
	"voice-call-orchestrator/internal/trunk"
)

func main() {
	var (
		numbers = flag.String("numbers", "", "comma-separated E.164 numbers to dial")
		tenant  = flag.String("tenant", "", "tenant identifier stamped into session metadata")
		delay   = flag.Duration("delay", 0, "inter-call delay (overrides CAMPAIGN_DELAY)")
	)
	flag.Parse()

	cfg := config.Load()
	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application start failed")
	}

	list := splitNumbers(*numbers)
	if len(list) == 0 {
		log.Fatal().Msg("No numbers given, use -numbers")
	}
	campaignDelay := cfg.Campaign.Delay
	if *delay > 0 {
		campaignDelay = *delay
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Warn().Msg("Interrupted, stopping after current call")
		cancel()
	}()

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

	trunks := trunk.NewRegistry(lk)
	if err := trunks.Refresh(ctx); err != nil {
		log.Fatal().Err(err).Msg("Trunk inventory refresh failed")
	}

	persister, err := transcript.NewFileStore(cfg.Transcript.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Transcript store setup failed")
	}

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
		Monitor:           presence.NewMonitor(lk, cfg.Presence.PollInterval),
		Factory:           pipelinemock.Factory(nil),
		Persister:         persister,
		TranscriptBackend: "file",
		Publisher:         publisher,
	})
	defer runner.Close()

	initiator := call.NewInitiator(call.InitiatorConfig{
		TrunkID:             cfg.SIP.OutboundTrunkID,
		RoomPrefix:          cfg.Room.Prefix,
		EmptyTimeout:        cfg.Room.EmptyTimeout,
		MaxParticipants:     cfg.Room.MaxParticipants,
		AgentName:           cfg.Agent.Name,
		ParticipantIdentity: cfg.SIP.ParticipantIdentity,
		ParticipantName:     cfg.SIP.ParticipantName,
		KrispEnabled:        cfg.SIP.KrispEnabled,
		AnswerTimeout:       cfg.SIP.AnswerTimeout,
		AgentAttachTimeout:  cfg.SIP.AgentAttachTimeout,
	}, sessions, lk, trunks, runner, publisher)

	var results []call.Result
	if len(list) == 1 {
		results = []call.Result{initiator.PlaceCall(ctx, call.Request{PhoneNumber: list[0], TenantID: *tenant})}
	} else {
		results = call.NewCampaign(initiator, campaignDelay).Run(ctx, list, *tenant)
	}

	// Let live calls run to completion before tearing down.
	waitForIdle(ctx, runner, list, results)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		log.Error().Err(err).Msg("Result encoding failed")
	}

	for _, r := range results {
		if !r.Succeeded() {
			os.Exit(1)
		}
	}
}

// waitForIdle blocks until every successfully placed call has finished.
func waitForIdle(ctx context.Context, runner *agent.Runner, numbers []string, results []call.Result) {
	for _, r := range results {
		if !r.Succeeded() {
			continue
		}
		c, ok := runner.ControllerFor(r.RoomName)
		if !ok {
			continue
		}
		select {
		case <-c.Done():
		case <-ctx.Done():
			return
		case <-time.After(time.Hour):
			return
		}
	}
}

func splitNumbers(raw string) []string {
	var out []string
	for _, n := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
