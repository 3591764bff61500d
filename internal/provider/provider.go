// Package provider defines the boundaries to the media-room provider and
// the SIP carrier. The orchestration core only talks to these interfaces;
// concrete clients live in subpackages.
package provider

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a room or participant no longer exists on
// the provider side. Callers treating destroy as idempotent check for it.
var ErrNotFound = errors.New("provider: not found")

// ErrAlreadyExists is returned by CreateRoom when a live room already
// holds the requested name.
var ErrAlreadyExists = errors.New("provider: room already exists")

// ParticipantKind classifies how an endpoint is attached to a room.
type ParticipantKind string

const (
	KindStandard ParticipantKind = "standard"
	KindSIP      ParticipantKind = "sip"
	KindAgent    ParticipantKind = "agent"
)

// ParticipantState is the connection state of a participant.
type ParticipantState string

const (
	StateJoining      ParticipantState = "joining"
	StateActive       ParticipantState = "active"
	StateDisconnected ParticipantState = "disconnected"
)

// Room describes a live session container on the provider.
type Room struct {
	Name            string
	SID             string
	CreatedAt       time.Time
	NumParticipants int
	Metadata        map[string]string
}

// Participant describes one endpoint attached to a room.
type Participant struct {
	Identity string
	Name     string
	Kind     ParticipantKind
	State    ParticipantState
}

// CreateRoomOptions carries the parameters for a room create call.
// EmptyTimeout is propagated to the provider, which reclaims rooms that
// stay empty longer than it.
type CreateRoomOptions struct {
	Name            string
	EmptyTimeout    time.Duration
	MaxParticipants int
	Metadata        map[string]string
}

// RoomAPI is the media-room provider boundary.
type RoomAPI interface {
	CreateRoom(ctx context.Context, opts CreateRoomOptions) (Room, error)
	DeleteRoom(ctx context.Context, name string) error
	ListRooms(ctx context.Context) ([]Room, error)
	ListParticipants(ctx context.Context, room string) ([]Participant, error)
}

// TrunkDirection distinguishes inbound from outbound telephony trunks.
type TrunkDirection string

const (
	TrunkInbound  TrunkDirection = "inbound"
	TrunkOutbound TrunkDirection = "outbound"
)

// Trunk is a carrier-side telephony path. Provisioned out of band and
// read-only to this service; all identifiers are opaque.
type Trunk struct {
	ID             string
	Name           string
	Direction      TrunkDirection
	Address        string
	Numbers        []string
	AllowedNumbers []string
	AuthUsername   string
	AuthPassword   string
}

// DispatchRule is the carrier-side routing rule description as listed by
// the provider. Exactly one of RoomName / RoomPrefix is set.
type DispatchRule struct {
	ID        string
	Name      string
	TrunkIDs  []string
	RoomName  string
	RoomPrefix string
	AgentName string
}

// BridgeRequest asks the carrier to bridge a phone number into a room.
type BridgeRequest struct {
	TrunkID             string
	PhoneNumber         string
	RoomName            string
	ParticipantIdentity string
	ParticipantName     string
	KrispEnabled        bool
	WaitUntilAnswered   bool
}

// BridgeInfo is returned once the carrier has set up the telephony leg.
type BridgeInfo struct {
	CallID              string
	ParticipantID       string
	ParticipantIdentity string
	RoomName            string
}

// TransferRequest moves an active telephony leg to another number.
type TransferRequest struct {
	RoomName            string
	ParticipantIdentity string
	TransferTo          string
	PlayDialtone        bool
}

// SIPAPI is the carrier/telephony boundary.
type SIPAPI interface {
	CreateParticipant(ctx context.Context, req BridgeRequest) (BridgeInfo, error)
	TransferParticipant(ctx context.Context, req TransferRequest) error
	ListInboundTrunks(ctx context.Context) ([]Trunk, error)
	ListOutboundTrunks(ctx context.Context) ([]Trunk, error)
	ListDispatchRules(ctx context.Context) ([]DispatchRule, error)
}

// LeaveFunc detaches a previously joined participant from its room.
type LeaveFunc func()

// AgentJoiner attaches the agent leg to a room explicitly. This replaces
// the pattern of an agent worker reacting to room-creation events: the
// orchestrator owns the attach and can therefore bound the wait for it.
type AgentJoiner interface {
	Join(ctx context.Context, room, identity, name string) (LeaveFunc, error)
}
