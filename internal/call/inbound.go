package call

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/dispatch"
	"voice-call-orchestrator/internal/session"
)

// InboundWatcher polls for sessions the carrier created (inbound calls
// landing through dispatch rules) and gets an agent into each. Sessions
// this orchestrator created are recognized by their metadata and left
// alone; carrier sessions matching no rule are destroyed so strays
// never sit open.
type InboundWatcher struct {
	sessions   *session.Manager
	resolver   *dispatch.Resolver
	dispatcher Dispatcher
	interval   time.Duration

	handled map[string]bool
}

// NewInboundWatcher creates a watcher polling at the given interval.
func NewInboundWatcher(sessions *session.Manager, resolver *dispatch.Resolver, dispatcher Dispatcher, interval time.Duration) *InboundWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &InboundWatcher{
		sessions:   sessions,
		resolver:   resolver,
		dispatcher: dispatcher,
		interval:   interval,
		handled:    map[string]bool{},
	}
}

// Run polls until ctx is canceled.
func (w *InboundWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *InboundWatcher) sweep(ctx context.Context) {
	sessions, err := w.sessions.ListActive(ctx)
	if err != nil {
		log.Warn().
			Str("component", "inbound").
			Err(err).
			Msg("Session listing failed")
		return
	}

	live := map[string]bool{}
	for _, s := range sessions {
		live[s.Name] = true
		if w.handled[s.Name] {
			continue
		}
		// Sessions we created carry the agent metadata; the outbound
		// path owns those.
		if s.Metadata[session.MetaAgentName] != "" {
			w.handled[s.Name] = true
			continue
		}

		rule, ok := w.resolver.RuleForRoom(s.Name)
		if !ok {
			log.Warn().
				Str("component", "inbound").
				Str("room", s.Name).
				Msg("Unroutable inbound session, destroying")
			if err := w.sessions.Destroy(ctx, s.Name); err != nil {
				log.Error().
					Str("component", "inbound").
					Str("room", s.Name).
					Err(err).
					Msg("Failed to destroy unroutable session")
				continue
			}
			w.handled[s.Name] = true
			continue
		}

		if _, err := w.dispatcher.Dispatch(ctx, s.Name, rule.AgentName, ""); err != nil {
			// Queue pressure: retry on the next sweep.
			log.Warn().
				Str("component", "inbound").
				Str("room", s.Name).
				Err(err).
				Msg("Agent dispatch for inbound session failed")
			continue
		}
		log.Info().
			Str("component", "inbound").
			Str("room", s.Name).
			Str("agentName", rule.AgentName).
			Str("rule", rule.ID).
			Msg("Inbound session routed to agent")
		w.handled[s.Name] = true
	}

	// Drop bookkeeping for sessions that ended.
	for name := range w.handled {
		if !live[name] {
			delete(w.handled, name)
		}
	}
}
