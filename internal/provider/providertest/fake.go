// Package providertest provides an in-memory provider implementation for
// tests: rooms, participants, SIP bridging and agent attachment behave
// like a well-behaved provider, and failures can be scripted per call.
package providertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"voice-call-orchestrator/internal/provider"
)

type fakeRoom struct {
	info         provider.Room
	participants map[string]provider.Participant
}

// Fake implements provider.RoomAPI, provider.SIPAPI and
// provider.AgentJoiner in memory.
type Fake struct {
	mu    sync.Mutex
	rooms map[string]*fakeRoom

	// Scripted behavior, all optional.
	CreateRoomErr  error
	BridgeErr      error
	TransferErr    error
	JoinErr        error
	BridgeDelay    time.Duration
	Trunks         []provider.Trunk
	DispatchRules  []provider.DispatchRule
	TransferCalls  []provider.TransferRequest
	BridgeRequests []provider.BridgeRequest
}

// New creates an empty fake provider.
func New() *Fake {
	return &Fake{rooms: map[string]*fakeRoom{}}
}

func (f *Fake) CreateRoom(ctx context.Context, opts provider.CreateRoomOptions) (provider.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateRoomErr != nil {
		return provider.Room{}, f.CreateRoomErr
	}
	if _, ok := f.rooms[opts.Name]; ok {
		return provider.Room{}, provider.ErrAlreadyExists
	}
	meta := map[string]string{}
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	room := provider.Room{
		Name:      opts.Name,
		SID:       "RM_" + opts.Name,
		CreatedAt: time.Now(),
		Metadata:  meta,
	}
	f.rooms[opts.Name] = &fakeRoom{info: room, participants: map[string]provider.Participant{}}
	return room, nil
}

func (f *Fake) DeleteRoom(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[name]; !ok {
		return provider.ErrNotFound
	}
	delete(f.rooms, name)
	return nil
}

func (f *Fake) ListRooms(ctx context.Context) ([]provider.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]provider.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		info := r.info
		info.NumParticipants = len(r.participants)
		rooms = append(rooms, info)
	}
	return rooms, nil
}

func (f *Fake) ListParticipants(ctx context.Context, room string) ([]provider.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[room]
	if !ok {
		return nil, provider.ErrNotFound
	}
	parts := make([]provider.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		parts = append(parts, p)
	}
	return parts, nil
}

// CreateParticipant simulates the carrier bridging a call. Numbers that
// do not carry a country code are rejected the way a carrier would.
func (f *Fake) CreateParticipant(ctx context.Context, req provider.BridgeRequest) (provider.BridgeInfo, error) {
	if f.BridgeDelay > 0 {
		select {
		case <-time.After(f.BridgeDelay):
		case <-ctx.Done():
			return provider.BridgeInfo{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.BridgeRequests = append(f.BridgeRequests, req)

	if f.BridgeErr != nil {
		return provider.BridgeInfo{}, f.BridgeErr
	}
	if !strings.HasPrefix(req.PhoneNumber, "+") {
		return provider.BridgeInfo{}, fmt.Errorf("sip: invalid number %q: missing country code", req.PhoneNumber)
	}
	r, ok := f.rooms[req.RoomName]
	if !ok {
		return provider.BridgeInfo{}, provider.ErrNotFound
	}
	r.participants[req.ParticipantIdentity] = provider.Participant{
		Identity: req.ParticipantIdentity,
		Name:     req.ParticipantName,
		Kind:     provider.KindSIP,
		State:    provider.StateActive,
	}
	return provider.BridgeInfo{
		CallID:              "SCL_" + req.RoomName,
		ParticipantID:       "PA_" + req.ParticipantIdentity,
		ParticipantIdentity: req.ParticipantIdentity,
		RoomName:            req.RoomName,
	}, nil
}

func (f *Fake) TransferParticipant(ctx context.Context, req provider.TransferRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransferCalls = append(f.TransferCalls, req)
	if f.TransferErr != nil {
		return f.TransferErr
	}
	if _, ok := f.rooms[req.RoomName]; !ok {
		return provider.ErrNotFound
	}
	return nil
}

func (f *Fake) ListInboundTrunks(ctx context.Context) ([]provider.Trunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var trunks []provider.Trunk
	for _, t := range f.Trunks {
		if t.Direction == provider.TrunkInbound {
			trunks = append(trunks, t)
		}
	}
	return trunks, nil
}

func (f *Fake) ListOutboundTrunks(ctx context.Context) ([]provider.Trunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var trunks []provider.Trunk
	for _, t := range f.Trunks {
		if t.Direction == provider.TrunkOutbound {
			trunks = append(trunks, t)
		}
	}
	return trunks, nil
}

func (f *Fake) ListDispatchRules(ctx context.Context) ([]provider.DispatchRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.DispatchRule(nil), f.DispatchRules...), nil
}

// Join attaches an agent participant to the room.
func (f *Fake) Join(ctx context.Context, room, identity, name string) (provider.LeaveFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.JoinErr != nil {
		return nil, f.JoinErr
	}
	r, ok := f.rooms[room]
	if !ok {
		return nil, provider.ErrNotFound
	}
	r.participants[identity] = provider.Participant{
		Identity: identity,
		Name:     name,
		Kind:     provider.KindAgent,
		State:    provider.StateActive,
	}
	return func() { f.RemoveParticipant(room, identity) }, nil
}

// AddParticipant injects a participant, e.g. a telephony leg joining an
// inbound room.
func (f *Fake) AddParticipant(room string, p provider.Participant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[room]; ok {
		r.participants[p.Identity] = p
	}
}

// RemoveParticipant simulates a participant leaving.
func (f *Fake) RemoveParticipant(room, identity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[room]; ok {
		delete(r.participants, identity)
	}
}

// CloseRoom simulates provider-side reclamation (idle timeout, carrier
// teardown after transfer).
func (f *Fake) CloseRoom(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, room)
}

// HasRoom reports whether a room is still live.
func (f *Fake) HasRoom(room string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[room]
	return ok
}
