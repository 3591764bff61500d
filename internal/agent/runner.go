package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/events"
	"voice-call-orchestrator/internal/pipeline"
	"voice-call-orchestrator/internal/presence"
	"voice-call-orchestrator/internal/provider"
	"voice-call-orchestrator/internal/session"
	"voice-call-orchestrator/internal/transcript"
)

var (
	// ErrQueueFull - the dispatch queue is at capacity; the caller should
	// fail the call rather than wait.
	ErrQueueFull = errors.New("agent: dispatch queue full")
	// ErrRunnerStopped - dispatch after Close.
	ErrRunnerStopped = errors.New("agent: runner stopped")
)

// RunnerConfig carries the runner's dependencies and per-agent defaults.
type RunnerConfig struct {
	// Identity and Name of the agent participant inside sessions.
	Identity string
	Name     string
	Greeting string

	TransferTo   string
	PlayDialtone bool

	// QueueSize bounds pending dispatches; Workers bounds concurrent
	// session joins.
	QueueSize int
	Workers   int

	Joiner    provider.AgentJoiner
	Sessions  *session.Manager
	SIP       provider.SIPAPI
	Monitor   *presence.Monitor
	Factory   pipeline.Factory
	Persister transcript.Persister

	TranscriptBackend string
	Publisher         *events.Publisher
}

type dispatchJob struct {
	room      string
	agentName string
	tenantID  string
	attached  chan struct{}
}

// Runner attaches agents to sessions. Dispatches land on a bounded
// queue; workers join the session, signal attachment, and hand the call
// to a per-session Controller.
type Runner struct {
	cfg  RunnerConfig
	jobs chan dispatchJob

	mu          sync.Mutex
	controllers map[string]*Controller
	stopped     bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRunner creates a runner and starts its workers.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	r := &Runner{
		cfg:         cfg,
		jobs:        make(chan dispatchJob, cfg.QueueSize),
		controllers: map[string]*Controller{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	return r
}

// Dispatch asks for an agent in the given session. The returned channel
// closes once the agent participant has joined; callers bound their own
// wait on it. Never blocks: a full queue returns ErrQueueFull.
func (r *Runner) Dispatch(ctx context.Context, room, agentName, tenantID string) (<-chan struct{}, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return nil, ErrRunnerStopped
	}

	job := dispatchJob{
		room:      room,
		agentName: agentName,
		tenantID:  tenantID,
		attached:  make(chan struct{}),
	}
	select {
	case r.jobs <- job:
		return job.attached, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, ErrQueueFull
	}
}

// ControllerFor returns the live controller for a session, if any.
func (r *Runner) ControllerFor(room string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[room]
	return c, ok
}

// Close stops accepting dispatches, shuts down every live session and
// waits for the workers to drain.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	controllers := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		controllers = append(controllers, c)
	}
	r.mu.Unlock()

	for _, c := range controllers {
		c.Shutdown("orchestrator stopping")
		<-c.Done()
	}

	r.cancel()
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.jobs:
			r.handle(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) handle(ctx context.Context, job dispatchJob) {
	logger := log.With().
		Str("component", "agent").
		Str("room", job.room).
		Str("agentName", job.agentName).
		Logger()

	leave, err := r.cfg.Joiner.Join(ctx, job.room, r.cfg.Identity, r.cfg.Name)
	if err != nil {
		// Leaving the attach channel open makes the caller's bounded
		// wait expire and fail the call.
		logger.Error().Err(err).Msg("Agent failed to join session")
		return
	}
	close(job.attached)
	logger.Info().Msg("Agent attached to session")

	controller := NewController(ControllerConfig{
		Room:              job.room,
		AgentName:         job.agentName,
		UserID:            job.tenantID,
		Greeting:          r.cfg.Greeting,
		TransferTo:        r.cfg.TransferTo,
		PlayDialtone:      r.cfg.PlayDialtone,
		Sessions:          r.cfg.Sessions,
		SIP:               r.cfg.SIP,
		Factory:           r.cfg.Factory,
		Persister:         r.cfg.Persister,
		TranscriptBackend: r.cfg.TranscriptBackend,
		Publisher:         r.cfg.Publisher,
	})

	r.mu.Lock()
	r.controllers[job.room] = controller
	r.mu.Unlock()

	if err := controller.Start(ctx, leave); err != nil {
		logger.Error().Err(err).Msg("Agent session failed to start")
		r.forget(job.room, controller)
		return
	}

	go r.supervise(ctx, job.room, controller)
}

// supervise watches presence for the session and ends the controller
// when the call is externally over: the provider reclaimed the session
// or the telephony leg hung up.
func (r *Runner) supervise(ctx context.Context, room string, controller *Controller) {
	defer r.forget(room, controller)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := r.cfg.Monitor.Watch(watchCtx, room)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch {
			case ev.Type == presence.SessionClosed:
				controller.Shutdown("session closed")
				return
			case ev.Type == presence.ParticipantLeft && ev.Participant.Kind == provider.KindSIP:
				controller.Shutdown("caller hung up")
				return
			}
		case <-controller.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) forget(room string, controller *Controller) {
	r.mu.Lock()
	if r.controllers[room] == controller {
		delete(r.controllers, room)
	}
	r.mu.Unlock()
}
