// Package livekit implements the provider boundaries against a LiveKit
// deployment: rooms via the RoomService, telephony via the SIP service.
package livekit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"voice-call-orchestrator/internal/provider"
)

// Client implements provider.RoomAPI, provider.SIPAPI and
// provider.AgentJoiner against one LiveKit project.
type Client struct {
	rooms *lksdk.RoomServiceClient
	sip   *lksdk.SIPClient

	url       string
	apiKey    string
	apiSecret string
}

// New creates a LiveKit-backed provider client.
func New(url, apiKey, apiSecret string) *Client {
	return &Client{
		rooms:     lksdk.NewRoomServiceClient(url, apiKey, apiSecret),
		sip:       lksdk.NewSIPClient(url, apiKey, apiSecret),
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// CreateRoom creates a named room. LiveKit's create is upsert-like, so a
// name check runs first to honor the already-exists contract.
func (c *Client) CreateRoom(ctx context.Context, opts provider.CreateRoomOptions) (provider.Room, error) {
	existing, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{opts.Name}})
	if err != nil {
		return provider.Room{}, err
	}
	if len(existing.Rooms) > 0 {
		return provider.Room{}, provider.ErrAlreadyExists
	}

	var metadata string
	if len(opts.Metadata) > 0 {
		raw, err := json.Marshal(opts.Metadata)
		if err != nil {
			return provider.Room{}, err
		}
		metadata = string(raw)
	}

	room, err := c.rooms.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:            opts.Name,
		EmptyTimeout:    uint32(opts.EmptyTimeout / time.Second),
		MaxParticipants: uint32(opts.MaxParticipants),
		Metadata:        metadata,
	})
	if err != nil {
		return provider.Room{}, err
	}
	return fromRoom(room), nil
}

// DeleteRoom deletes a room; a room that is already gone maps to
// provider.ErrNotFound so callers can treat destroy as idempotent.
func (c *Client) DeleteRoom(ctx context.Context, name string) error {
	_, err := c.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: name})
	if err != nil && isNotFound(err) {
		return provider.ErrNotFound
	}
	return err
}

// ListRooms returns all live rooms.
func (c *Client) ListRooms(ctx context.Context) ([]provider.Room, error) {
	resp, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{})
	if err != nil {
		return nil, err
	}
	rooms := make([]provider.Room, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		rooms = append(rooms, fromRoom(r))
	}
	return rooms, nil
}

// ListParticipants returns the current participant set of a room.
func (c *Client) ListParticipants(ctx context.Context, room string) ([]provider.Participant, error) {
	resp, err := c.rooms.ListParticipants(ctx, &livekit.ListParticipantsRequest{Room: room})
	if err != nil {
		if isNotFound(err) {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	parts := make([]provider.Participant, 0, len(resp.Participants))
	for _, p := range resp.Participants {
		parts = append(parts, provider.Participant{
			Identity: p.Identity,
			Name:     p.Name,
			Kind:     fromKind(p.Kind),
			State:    fromState(p.State),
		})
	}
	return parts, nil
}

// CreateParticipant bridges a phone number into a room over a SIP trunk.
func (c *Client) CreateParticipant(ctx context.Context, req provider.BridgeRequest) (provider.BridgeInfo, error) {
	info, err := c.sip.CreateSIPParticipant(ctx, &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          req.TrunkID,
		SipCallTo:           req.PhoneNumber,
		RoomName:            req.RoomName,
		ParticipantIdentity: req.ParticipantIdentity,
		ParticipantName:     req.ParticipantName,
		KrispEnabled:        req.KrispEnabled,
		WaitUntilAnswered:   req.WaitUntilAnswered,
	})
	if err != nil {
		return provider.BridgeInfo{}, err
	}
	return provider.BridgeInfo{
		CallID:              info.SipCallId,
		ParticipantID:       info.ParticipantId,
		ParticipantIdentity: info.ParticipantIdentity,
		RoomName:            info.RoomName,
	}, nil
}

// TransferParticipant hands an active telephony leg off to another number.
func (c *Client) TransferParticipant(ctx context.Context, req provider.TransferRequest) error {
	_, err := c.sip.TransferSIPParticipant(ctx, &livekit.TransferSIPParticipantRequest{
		RoomName:            req.RoomName,
		ParticipantIdentity: req.ParticipantIdentity,
		TransferTo:          req.TransferTo,
		PlayDialtone:        req.PlayDialtone,
	})
	return err
}

// ListInboundTrunks lists configured inbound SIP trunks.
func (c *Client) ListInboundTrunks(ctx context.Context) ([]provider.Trunk, error) {
	resp, err := c.sip.ListSIPInboundTrunk(ctx, &livekit.ListSIPInboundTrunkRequest{})
	if err != nil {
		return nil, err
	}
	trunks := make([]provider.Trunk, 0, len(resp.Items))
	for _, t := range resp.Items {
		trunks = append(trunks, provider.Trunk{
			ID:             t.SipTrunkId,
			Name:           t.Name,
			Direction:      provider.TrunkInbound,
			Numbers:        t.Numbers,
			AllowedNumbers: t.AllowedNumbers,
			AuthUsername:   t.AuthUsername,
			AuthPassword:   t.AuthPassword,
		})
	}
	return trunks, nil
}

// ListOutboundTrunks lists configured outbound SIP trunks.
func (c *Client) ListOutboundTrunks(ctx context.Context) ([]provider.Trunk, error) {
	resp, err := c.sip.ListSIPOutboundTrunk(ctx, &livekit.ListSIPOutboundTrunkRequest{})
	if err != nil {
		return nil, err
	}
	trunks := make([]provider.Trunk, 0, len(resp.Items))
	for _, t := range resp.Items {
		trunks = append(trunks, provider.Trunk{
			ID:           t.SipTrunkId,
			Name:         t.Name,
			Direction:    provider.TrunkOutbound,
			Address:      t.Address,
			Numbers:      t.Numbers,
			AuthUsername: t.AuthUsername,
			AuthPassword: t.AuthPassword,
		})
	}
	return trunks, nil
}

// ListDispatchRules lists configured SIP dispatch rules.
func (c *Client) ListDispatchRules(ctx context.Context) ([]provider.DispatchRule, error) {
	resp, err := c.sip.ListSIPDispatchRule(ctx, &livekit.ListSIPDispatchRuleRequest{})
	if err != nil {
		return nil, err
	}
	rules := make([]provider.DispatchRule, 0, len(resp.Items))
	for _, r := range resp.Items {
		rule := provider.DispatchRule{
			ID:       r.SipDispatchRuleId,
			Name:     r.Name,
			TrunkIDs: r.TrunkIds,
		}
		if direct := r.GetRule().GetDispatchRuleDirect(); direct != nil {
			rule.RoomName = direct.RoomName
		}
		if individual := r.GetRule().GetDispatchRuleIndividual(); individual != nil {
			rule.RoomPrefix = individual.RoomPrefix
		}
		if rc := r.GetRoomConfig(); rc != nil && len(rc.Agents) > 0 {
			rule.AgentName = rc.Agents[0].AgentName
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Join attaches the agent leg to a room as a realtime participant.
func (c *Client) Join(ctx context.Context, room, identity, name string) (provider.LeaveFunc, error) {
	rm, err := lksdk.ConnectToRoom(c.url, lksdk.ConnectInfo{
		APIKey:              c.apiKey,
		APISecret:           c.apiSecret,
		RoomName:            room,
		ParticipantIdentity: identity,
		ParticipantName:     name,
	}, lksdk.NewRoomCallback())
	if err != nil {
		return nil, err
	}
	return rm.Disconnect, nil
}

func fromRoom(r *livekit.Room) provider.Room {
	meta := map[string]string{}
	if r.Metadata != "" {
		// Metadata is an opaque JSON object; a parse failure leaves it empty.
		_ = json.Unmarshal([]byte(r.Metadata), &meta)
	}
	return provider.Room{
		Name:            r.Name,
		SID:             r.Sid,
		CreatedAt:       time.Unix(r.CreationTime, 0),
		NumParticipants: int(r.NumParticipants),
		Metadata:        meta,
	}
}

func fromKind(k livekit.ParticipantInfo_Kind) provider.ParticipantKind {
	switch k {
	case livekit.ParticipantInfo_SIP:
		return provider.KindSIP
	case livekit.ParticipantInfo_AGENT:
		return provider.KindAgent
	default:
		return provider.KindStandard
	}
}

func fromState(s livekit.ParticipantInfo_State) provider.ParticipantState {
	switch s {
	case livekit.ParticipantInfo_ACTIVE:
		return provider.StateActive
	case livekit.ParticipantInfo_DISCONNECTED:
		return provider.StateDisconnected
	default:
		return provider.StateJoining
	}
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "not_found") || strings.Contains(msg, "does not exist")
}
