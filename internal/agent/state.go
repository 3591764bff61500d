// Package agent runs the in-call AI agent: one controller per session
// owns the agent's state machine, drives the conversational pipeline,
// and finalizes the call exactly once.
package agent

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of an agent session.
type State int

const (
	// StateConnecting - Agent is joining the session, pipeline not yet up.
	StateConnecting State = iota
	// StateActive - Agent is in the call, pipeline running.
	StateActive
	// StateTransferring - Handoff to a human is in flight.
	StateTransferring
	// StateEnding - Teardown started: pipeline closing, transcript pending.
	StateEnding
	// StateClosed - Terminal. Transcript persisted, events published.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateTransferring:
		return "TRANSFERRING"
	case StateEnding:
		return "ENDING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for commands rejected by the current state.
var (
	// ErrNotActive - the command needs an ACTIVE call (e.g. transfer
	// while still connecting or already ending).
	ErrNotActive = errors.New("agent session is not active")
	// ErrClosed - the session already finished.
	ErrClosed = errors.New("agent session is closed")
	// ErrNoTelephonyLeg - transfer requested but no telephony
	// participant is in the session to hand off.
	ErrNoTelephonyLeg = errors.New("no telephony participant to transfer")
)
