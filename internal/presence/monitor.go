// Package presence watches session membership by polling the provider
// and diffing consecutive participant snapshots.
//
// Polling trades latency for simplicity: joins and departures surface
// within one poll interval, which is acceptable for call supervision.
// A webhook path would cut that latency but requires an inbound HTTP
// surface; revisit if the interval ever becomes the bottleneck.
package presence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/observability/metrics"
	"voice-call-orchestrator/internal/provider"
)

// EventType classifies a membership change.
type EventType string

const (
	ParticipantJoined EventType = "participant_joined"
	ParticipantLeft   EventType = "participant_left"
	// SessionClosed is terminal: the provider reclaimed the session. The
	// event channel closes right after it is delivered.
	SessionClosed EventType = "session_closed"
)

// Event is one observed membership change.
type Event struct {
	Type        EventType
	Room        string
	Participant provider.Participant
}

// Monitor polls a room provider for participant changes.
type Monitor struct {
	rooms    provider.RoomAPI
	interval time.Duration
	metrics  *metrics.Metrics
}

// NewMonitor creates a monitor polling at the given interval.
func NewMonitor(rooms provider.RoomAPI, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{rooms: rooms, interval: interval, metrics: metrics.DefaultMetrics}
}

// Watch streams membership events for one session until the session is
// gone or ctx is canceled. The returned channel is closed in both cases;
// a SessionClosed event precedes the close when the session ended.
//
// Events are delivered with blocking sends: a slow consumer delays the
// next poll instead of dropping events.
func (m *Monitor) Watch(ctx context.Context, room string) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		known := map[string]provider.Participant{}
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			parts, err := m.rooms.ListParticipants(ctx, room)
			m.metrics.PresencePolls.Inc()
			if err != nil {
				if errors.Is(err, provider.ErrNotFound) {
					m.emit(ctx, events, Event{Type: SessionClosed, Room: room})
					return
				}
				if ctx.Err() != nil {
					return
				}
				// Transient listing failure: keep the last snapshot and
				// retry on the next tick.
				log.Warn().
					Str("component", "presence").
					Str("room", room).
					Err(err).
					Msg("Participant poll failed")
			} else {
				current := map[string]provider.Participant{}
				for _, p := range parts {
					current[p.Identity] = p
				}
				for id, p := range current {
					if _, ok := known[id]; !ok {
						if !m.emit(ctx, events, Event{Type: ParticipantJoined, Room: room, Participant: p}) {
							return
						}
					}
				}
				for id, p := range known {
					if _, ok := current[id]; !ok {
						if !m.emit(ctx, events, Event{Type: ParticipantLeft, Room: room, Participant: p}) {
							return
						}
					}
				}
				known = current
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return events
}

func (m *Monitor) emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	m.metrics.PresenceEvents.WithLabelValues(string(ev.Type)).Inc()
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsCallActive reports whether a session still carries a live call: an
// active telephony leg and an active agent at the same time.
func IsCallActive(parts []provider.Participant) bool {
	var telephony, agent bool
	for _, p := range parts {
		if p.State != provider.StateActive {
			continue
		}
		switch p.Kind {
		case provider.KindSIP:
			telephony = true
		case provider.KindAgent:
			agent = true
		}
	}
	return telephony && agent
}
