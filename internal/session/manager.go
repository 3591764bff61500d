// Package session manages the lifecycle of ephemeral call sessions
// ("rooms") on the media-room provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"voice-call-orchestrator/internal/observability/metrics"
	"voice-call-orchestrator/internal/provider"
)

// Metadata keys written into every session.
const (
	MetaAgentName = "agent_name"
	MetaUserID    = "user_id"
)

// ErrAlreadyExists is returned by Create when the requested name collides
// with a live session. Callers must guarantee uniqueness (GenerateName).
var ErrAlreadyExists = errors.New("session: name already in use")

// Session is the manager's view of a live room.
type Session struct {
	Name            string
	CreatedAt       time.Time
	NumParticipants int
	Metadata        map[string]string
}

// CreateOptions carries the parameters for one session create.
type CreateOptions struct {
	Name            string
	MaxParticipants int
	EmptyTimeout    time.Duration
	Metadata        map[string]string
}

// Manager creates and destroys sessions. Idle reclamation is enforced by
// the provider; the manager only propagates the configured empty-timeout.
type Manager struct {
	rooms   provider.RoomAPI
	metrics *metrics.Metrics
}

// NewManager creates a session manager on top of the room provider.
func NewManager(rooms provider.RoomAPI) *Manager {
	return &Manager{rooms: rooms, metrics: metrics.DefaultMetrics}
}

// Create creates a new session. Returns ErrAlreadyExists when the name is
// already held by a live session.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (Session, error) {
	room, err := m.rooms.CreateRoom(ctx, provider.CreateRoomOptions{
		Name:            opts.Name,
		EmptyTimeout:    opts.EmptyTimeout,
		MaxParticipants: opts.MaxParticipants,
		Metadata:        opts.Metadata,
	})
	if err != nil {
		m.metrics.SessionCreateFailures.Inc()
		if errors.Is(err, provider.ErrAlreadyExists) {
			return Session{}, fmt.Errorf("%w: %s", ErrAlreadyExists, opts.Name)
		}
		return Session{}, fmt.Errorf("create session %s: %w", opts.Name, err)
	}

	m.metrics.SessionsCreated.Inc()
	log.Info().
		Str("component", "session").
		Str("room", room.Name).
		Dur("emptyTimeout", opts.EmptyTimeout).
		Int("maxParticipants", opts.MaxParticipants).
		Msg("Session created")

	return Session{
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
		Metadata:  room.Metadata,
	}, nil
}

// Destroy removes a session. A session the provider has already reclaimed
// counts as destroyed.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	err := m.rooms.DeleteRoom(ctx, name)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			log.Debug().
				Str("component", "session").
				Str("room", name).
				Msg("Session already gone, treating destroy as success")
			return nil
		}
		return fmt.Errorf("destroy session %s: %w", name, err)
	}

	m.metrics.SessionsDestroyed.Inc()
	log.Info().
		Str("component", "session").
		Str("room", name).
		Msg("Session destroyed")
	return nil
}

// ListActive returns a point-in-time snapshot of live sessions from the
// provider. The source of truth lives there; this snapshot is eventually
// consistent and must not be treated as an invariant.
func (m *Manager) ListActive(ctx context.Context) ([]Session, error) {
	rooms, err := m.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]Session, 0, len(rooms))
	for _, r := range rooms {
		sessions = append(sessions, Session{
			Name:            r.Name,
			CreatedAt:       r.CreatedAt,
			NumParticipants: r.NumParticipants,
			Metadata:        r.Metadata,
		})
	}
	return sessions, nil
}

// Participants returns the current participant set of a session.
func (m *Manager) Participants(ctx context.Context, name string) ([]provider.Participant, error) {
	return m.rooms.ListParticipants(ctx, name)
}

// GenerateName builds a unique session name: <prefix>-<unix-ts>-<uuid8>.
// The random suffix keeps concurrent calls placed in the same second from
// colliding.
func GenerateName(prefix string) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), suffix)
}
