package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/events"
	"voice-call-orchestrator/internal/models"
	"voice-call-orchestrator/internal/observability/metrics"
	"voice-call-orchestrator/internal/pipeline"
	"voice-call-orchestrator/internal/provider"
	"voice-call-orchestrator/internal/session"
	"voice-call-orchestrator/internal/transcript"
)

// finalizeTimeout bounds teardown work (persist, publish, destroy) so a
// hung store cannot pin a controller forever.
const finalizeTimeout = 15 * time.Second

// ControllerConfig carries everything one controller needs.
type ControllerConfig struct {
	Room      string
	AgentName string
	UserID    string
	Greeting  string

	// TransferTo is the human destination (tel: or sip: URI).
	TransferTo   string
	PlayDialtone bool

	Sessions  *session.Manager
	SIP       provider.SIPAPI
	Factory   pipeline.Factory
	Persister transcript.Persister
	// TranscriptBackend labels persist metrics ("file", "sqlite").
	TranscriptBackend string
	Publisher         *events.Publisher
}

type cmdKind int

const (
	cmdTransfer cmdKind = iota
	cmdEnd
	cmdShutdown
)

type command struct {
	kind   cmdKind
	ctx    context.Context
	reason string
	reply  chan error
}

// Controller owns one agent session. All state transitions happen on
// the run loop goroutine; external calls are commands delivered over a
// channel and answered with a reply.
//
// State transitions:
//
//	CONNECTING → ACTIVE → TRANSFERRING → ENDING → CLOSED
//	                │                       ▲
//	                └── EndCall/Shutdown ───┘
//
// Finalization (transcript persist, event publish, session destroy)
// runs exactly once no matter which path reaches ENDING.
type Controller struct {
	cfg     ControllerConfig
	metrics *metrics.Metrics

	mu    sync.Mutex
	state State

	pipe  pipeline.Pipeline
	turns []pipeline.Turn
	leave provider.LeaveFunc

	cmds     chan command
	done     chan struct{}
	finalize sync.Once
}

// NewController creates a controller in CONNECTING state.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		cfg:     cfg,
		metrics: metrics.DefaultMetrics,
		state:   StateConnecting,
		cmds:    make(chan command),
		done:    make(chan struct{}),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		log.Debug().
			Str("component", "agent").
			Str("room", c.cfg.Room).
			Str("from", prev.String()).
			Str("to", s.String()).
			Msg("Agent state transition")
	}
}

// Start builds and starts the pipeline, then launches the run loop.
// A pipeline that fails to come up still goes through the full teardown
// path so the session is destroyed and a closure event is published.
func (c *Controller) Start(ctx context.Context, leave provider.LeaveFunc) error {
	c.mu.Lock()
	c.leave = leave
	c.mu.Unlock()

	pipe, err := c.cfg.Factory(ctx)
	if err == nil {
		err = pipe.Start(ctx, pipeline.Info{
			SessionName: c.cfg.Room,
			AgentName:   c.cfg.AgentName,
			UserID:      c.cfg.UserID,
			Greeting:    c.cfg.Greeting,
		})
		if err != nil {
			pipe.Close()
		}
	}
	if err != nil {
		c.doFinalize("pipeline failure")
		return fmt.Errorf("start pipeline for %s: %w", c.cfg.Room, err)
	}

	c.mu.Lock()
	c.pipe = pipe
	c.mu.Unlock()

	c.setState(StateActive)
	c.metrics.AgentSessionsActive.Inc()
	log.Info().
		Str("component", "agent").
		Str("room", c.cfg.Room).
		Str("agentName", c.cfg.AgentName).
		Msg("Agent session active")

	go c.run(ctx, pipe.Turns())
	return nil
}

// run is the single owner of the controller's state.
func (c *Controller) run(ctx context.Context, turns <-chan pipeline.Turn) {
	for {
		select {
		case turn, ok := <-turns:
			if !ok {
				turns = nil
				continue
			}
			c.mu.Lock()
			c.turns = append(c.turns, turn)
			c.mu.Unlock()

		case cmd := <-c.cmds:
			if c.handle(cmd) {
				return
			}

		case <-ctx.Done():
			c.doFinalize("context canceled")
			return
		}
	}
}

// handle executes one command. Returns true when the loop must exit.
func (c *Controller) handle(cmd command) bool {
	switch cmd.kind {
	case cmdTransfer:
		return c.handleTransfer(cmd)

	case cmdEnd:
		// Idempotent: ending an already-ended call succeeds.
		cmd.reply <- nil
		reason := cmd.reason
		if reason == "" {
			reason = "ended"
		}
		c.doFinalize(reason)
		return true

	case cmdShutdown:
		c.doFinalize(cmd.reason)
		return true
	}
	return false
}

func (c *Controller) handleTransfer(cmd command) bool {
	if c.State() != StateActive {
		cmd.reply <- fmt.Errorf("%w: state %s", ErrNotActive, c.State())
		return false
	}

	// The handoff needs a live telephony leg to move.
	parts, err := c.cfg.Sessions.Participants(cmd.ctx, c.cfg.Room)
	if err != nil {
		c.metrics.RecordTransfer("error")
		cmd.reply <- fmt.Errorf("list participants for transfer: %w", err)
		return false
	}
	var telephony *provider.Participant
	for i := range parts {
		if parts[i].Kind == provider.KindSIP && parts[i].State == provider.StateActive {
			telephony = &parts[i]
			break
		}
	}
	if telephony == nil {
		c.metrics.RecordTransfer("no_telephony_leg")
		cmd.reply <- ErrNoTelephonyLeg
		return false
	}

	c.setState(StateTransferring)
	err = c.cfg.SIP.TransferParticipant(cmd.ctx, provider.TransferRequest{
		RoomName:            c.cfg.Room,
		ParticipantIdentity: telephony.Identity,
		TransferTo:          c.cfg.TransferTo,
		PlayDialtone:        c.cfg.PlayDialtone,
	})
	if err != nil {
		// The leg stays in the session; the conversation continues.
		c.setState(StateActive)
		c.metrics.RecordTransfer("failed")
		cmd.reply <- fmt.Errorf("transfer %s to %s: %w", telephony.Identity, c.cfg.TransferTo, err)
		return false
	}

	c.metrics.RecordTransfer("success")
	log.Info().
		Str("component", "agent").
		Str("room", c.cfg.Room).
		Str("transferTo", c.cfg.TransferTo).
		Msg("Caller transferred to human")
	c.publishLifecycle(models.CallTransferred{
		EventType:  models.EventCallTransferred,
		Room:       c.cfg.Room,
		TransferTo: c.cfg.TransferTo,
		Reason:     cmd.reason,
		Timestamp:  time.Now().UnixMilli(),
	})

	cmd.reply <- nil
	c.doFinalize("transferred")
	return true
}

// TransferToHuman hands the caller off to the configured human
// destination, recording why. On success the session ends; on failure
// the call stays active. Returns ErrNotActive outside ACTIVE and
// ErrNoTelephonyLeg when there is nobody to hand off.
func (c *Controller) TransferToHuman(ctx context.Context, reason string) error {
	return c.send(ctx, command{kind: cmdTransfer, ctx: ctx, reason: reason, reply: make(chan error, 1)})
}

// EndCall ends the session. Idempotent: ending a finished call is a
// no-op success.
func (c *Controller) EndCall(ctx context.Context, reason string) error {
	return c.send(ctx, command{kind: cmdEnd, ctx: ctx, reason: reason, reply: make(chan error, 1)})
}

// Shutdown ends the session for an external reason (provider reclaimed
// the room, process stopping). Never blocks past teardown.
func (c *Controller) Shutdown(reason string) {
	select {
	case c.cmds <- command{kind: cmdShutdown, reason: reason, reply: make(chan error, 1)}:
	case <-c.done:
	}
}

// Done is closed when the controller reaches CLOSED.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Transcript returns a copy of the turns collected so far.
func (c *Controller) Transcript() []pipeline.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pipeline.Turn(nil), c.turns...)
}

func (c *Controller) send(ctx context.Context, cmd command) error {
	select {
	case c.cmds <- cmd:
	case <-c.done:
		if cmd.kind == cmdEnd {
			return nil
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// doFinalize runs the exactly-once teardown: close the pipeline, drain
// its remaining turns, persist the transcript, publish closure events,
// leave and destroy the session.
func (c *Controller) doFinalize(reason string) {
	c.finalize.Do(func() {
		c.setState(StateEnding)
		ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
		defer cancel()

		c.mu.Lock()
		pipe := c.pipe
		leave := c.leave
		c.mu.Unlock()

		if pipe != nil {
			pipe.Close()
			for turn := range pipe.Turns() {
				c.mu.Lock()
				c.turns = append(c.turns, turn)
				c.mu.Unlock()
			}
			c.metrics.AgentSessionsActive.Dec()
		}

		c.persistTranscript(ctx)

		c.publishLifecycle(models.SessionClosed{
			EventType: models.EventSessionClosed,
			Room:      c.cfg.Room,
			Reason:    reason,
			Timestamp: time.Now().UnixMilli(),
		})

		if leave != nil {
			leave()
		}
		if err := c.cfg.Sessions.Destroy(ctx, c.cfg.Room); err != nil {
			log.Error().
				Str("component", "agent").
				Str("room", c.cfg.Room).
				Err(err).
				Msg("Session destroy failed during teardown")
		}

		c.setState(StateClosed)
		close(c.done)
		log.Info().
			Str("component", "agent").
			Str("room", c.cfg.Room).
			Str("reason", reason).
			Msg("Agent session closed")
	})
}

func (c *Controller) persistTranscript(ctx context.Context) {
	if c.cfg.Persister == nil {
		return
	}
	turns := c.Transcript()
	location, err := c.cfg.Persister.Persist(ctx, c.cfg.Room, turns)
	c.metrics.RecordTranscript(c.cfg.TranscriptBackend, err)
	if err != nil {
		// Losing a transcript must not block teardown.
		log.Error().
			Str("component", "agent").
			Str("room", c.cfg.Room).
			Err(err).
			Msg("Transcript persist failed")
		return
	}
	c.publishTranscript(models.TranscriptPersisted{
		EventType: models.EventTranscriptPersisted,
		Room:      c.cfg.Room,
		Location:  location,
		Turns:     len(turns),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *Controller) publishLifecycle(event any) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishLifecycle(ctx, c.cfg.Room, event); err != nil {
		log.Warn().
			Str("component", "agent").
			Str("room", c.cfg.Room).
			Err(err).
			Msg("Lifecycle event publish failed")
	}
}

func (c *Controller) publishTranscript(event any) {
	if c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.cfg.Publisher.PublishTranscript(ctx, c.cfg.Room, event); err != nil {
		log.Warn().
			Str("component", "agent").
			Str("room", c.cfg.Room).
			Err(err).
			Msg("Transcript event publish failed")
	}
}
