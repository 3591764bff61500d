package call

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/events"
	"voice-call-orchestrator/internal/models"
	"voice-call-orchestrator/internal/observability/metrics"
	"voice-call-orchestrator/internal/provider"
	"voice-call-orchestrator/internal/session"
	"voice-call-orchestrator/internal/trunk"
)

// Dispatcher asks for an agent in a session. The returned channel
// closes once the agent has attached; the initiator bounds its wait.
type Dispatcher interface {
	Dispatch(ctx context.Context, room, agentName, tenantID string) (<-chan struct{}, error)
}

// InitiatorConfig carries the static call-placement parameters.
type InitiatorConfig struct {
	TrunkID    string
	RoomPrefix string

	EmptyTimeout    time.Duration
	MaxParticipants int

	AgentName string

	ParticipantIdentity string
	ParticipantName     string
	KrispEnabled        bool

	// AnswerTimeout bounds the bridge request; AgentAttachTimeout bounds
	// the wait for the agent before dialing.
	AnswerTimeout      time.Duration
	AgentAttachTimeout time.Duration
}

// Request is one outbound call. TrunkID and RoomName override the
// configured defaults when set.
type Request struct {
	PhoneNumber string
	TenantID    string
	TrunkID     string
	RoomName    string
}

// Initiator places outbound calls: create the session, get the agent in,
// then dial. Dialing before the agent is confirmed present would greet
// the callee with silence, so attachment always comes first.
type Initiator struct {
	cfg        InitiatorConfig
	sessions   *session.Manager
	sip        provider.SIPAPI
	trunks     *trunk.Registry
	dispatcher Dispatcher
	publisher  *events.Publisher
	metrics    *metrics.Metrics
}

// NewInitiator creates a call initiator.
func NewInitiator(cfg InitiatorConfig, sessions *session.Manager, sip provider.SIPAPI, trunks *trunk.Registry, dispatcher Dispatcher, publisher *events.Publisher) *Initiator {
	return &Initiator{
		cfg:        cfg,
		sessions:   sessions,
		sip:        sip,
		trunks:     trunks,
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics.DefaultMetrics,
	}
}

// PlaceCall runs one outbound call attempt end to end and always
// returns a Result. Resources acquired before a failure are released
// before returning.
func (i *Initiator) PlaceCall(ctx context.Context, req Request) Result {
	placedAt := time.Now()
	logger := log.With().
		Str("component", "call").
		Str("phoneNumber", req.PhoneNumber).
		Logger()

	i.metrics.CallsActive.Inc()
	defer i.metrics.CallsActive.Dec()

	trunkID := req.TrunkID
	if trunkID == "" {
		trunkID = i.cfg.TrunkID
	}

	// Reject unknown trunks before acquiring anything.
	if _, err := i.trunks.Lookup(trunkID); err != nil {
		return i.fail(logger, req, "", ReasonUnknownTrunk, err, placedAt)
	}

	roomName := req.RoomName
	if roomName == "" {
		roomName = session.GenerateName(i.cfg.RoomPrefix)
	}
	_, err := i.sessions.Create(ctx, session.CreateOptions{
		Name:            roomName,
		MaxParticipants: i.cfg.MaxParticipants,
		EmptyTimeout:    i.cfg.EmptyTimeout,
		Metadata: map[string]string{
			session.MetaAgentName: i.cfg.AgentName,
			session.MetaUserID:    req.TenantID,
		},
	})
	if err != nil {
		return i.fail(logger, req, "", ReasonSessionCreate, err, placedAt)
	}
	logger = logger.With().Str("room", roomName).Logger()

	i.publishLifecycle(roomName, models.CallPlaced{
		EventType:   models.EventCallPlaced,
		Room:        roomName,
		PhoneNumber: req.PhoneNumber,
		TrunkID:     trunkID,
		TenantID:    req.TenantID,
		Timestamp:   placedAt.UnixMilli(),
	})

	// The agent must be in the session before the callee hears ringing.
	attached, err := i.dispatcher.Dispatch(ctx, roomName, i.cfg.AgentName, req.TenantID)
	if err != nil {
		i.destroy(roomName)
		return i.fail(logger, req, roomName, ReasonDispatch, err, placedAt)
	}
	select {
	case <-attached:
	case <-time.After(i.cfg.AgentAttachTimeout):
		i.metrics.AgentAttachTimeouts.Inc()
		i.destroy(roomName)
		return i.fail(logger, req, roomName, ReasonAgentAttachTimeout,
			errors.New("agent did not attach within "+i.cfg.AgentAttachTimeout.String()), placedAt)
	case <-ctx.Done():
		i.destroy(roomName)
		return i.fail(logger, req, roomName, ReasonDispatch, ctx.Err(), placedAt)
	}

	bridgeCtx, cancel := context.WithTimeout(ctx, i.cfg.AnswerTimeout)
	defer cancel()

	dialStart := time.Now()
	info, err := i.sip.CreateParticipant(bridgeCtx, provider.BridgeRequest{
		TrunkID:             trunkID,
		PhoneNumber:         req.PhoneNumber,
		RoomName:            roomName,
		ParticipantIdentity: i.cfg.ParticipantIdentity,
		ParticipantName:     i.cfg.ParticipantName,
		KrispEnabled:        i.cfg.KrispEnabled,
		WaitUntilAnswered:   true,
	})
	if err != nil {
		reason := ReasonBridge
		if errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonAnswerTimeout
		}
		// Destroying the session makes presence supervision shut the
		// agent controller down.
		i.destroy(roomName)
		return i.fail(logger, req, roomName, reason, err, placedAt)
	}
	latency := time.Since(dialStart)

	i.metrics.RecordAnsweredCall(latency.Seconds())
	i.publishLifecycle(roomName, models.CallAnswered{
		EventType:   models.EventCallAnswered,
		Room:        roomName,
		PhoneNumber: req.PhoneNumber,
		CallID:      info.CallID,
		LatencyMs:   latency.Milliseconds(),
		Timestamp:   time.Now().UnixMilli(),
	})
	logger.Info().
		Str("callId", info.CallID).
		Dur("answerLatency", latency).
		Msg("Call answered")

	return Result{
		PhoneNumber:   req.PhoneNumber,
		RoomName:      roomName,
		CallID:        info.CallID,
		ParticipantID: info.ParticipantID,
		Status:        StatusSuccess,
		AnswerLatency: latency,
		PlacedAt:      placedAt,
	}
}

func (i *Initiator) fail(logger zerolog.Logger, req Request, room, reason string, err error, placedAt time.Time) Result {
	i.metrics.RecordFailedCall(reason)
	logger.Error().
		Str("reason", reason).
		Err(err).
		Msg("Call failed")
	if room != "" {
		i.publishLifecycle(room, models.CallFailed{
			EventType:   models.EventCallFailed,
			Room:        room,
			PhoneNumber: req.PhoneNumber,
			Error:       err.Error(),
			Timestamp:   time.Now().UnixMilli(),
		})
	}
	return Result{
		PhoneNumber: req.PhoneNumber,
		RoomName:    room,
		Status:      StatusFailed,
		Reason:      reason,
		Error:       err.Error(),
		PlacedAt:    placedAt,
	}
}

// destroy releases a session on the failure path with its own deadline,
// detached from the (possibly expired) call context.
func (i *Initiator) destroy(room string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.sessions.Destroy(ctx, room); err != nil {
		log.Error().
			Str("component", "call").
			Str("room", room).
			Err(err).
			Msg("Failed to release session after call failure")
	}
}

func (i *Initiator) publishLifecycle(room string, event any) {
	if i.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := i.publisher.PublishLifecycle(ctx, room, event); err != nil {
		log.Warn().
			Str("component", "call").
			Str("room", room).
			Err(err).
			Msg("Lifecycle event publish failed")
	}
}
