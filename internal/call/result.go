// Package call places outbound calls, runs sequential campaigns and
// watches for carrier-dispatched inbound sessions.
package call

import "time"

// Call outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Failure reasons carried in Result.Reason and the failure metric.
const (
	ReasonUnknownTrunk       = "unknown_trunk"
	ReasonSessionCreate      = "session_create"
	ReasonDispatch           = "dispatch"
	ReasonAgentAttachTimeout = "agent_attach_timeout"
	ReasonAnswerTimeout      = "answer_timeout"
	ReasonBridge             = "bridge"
)

// Result is the outcome of one outbound call attempt. Every attempt
// produces exactly one result, success or failure.
type Result struct {
	PhoneNumber   string        `json:"phoneNumber"`
	RoomName      string        `json:"roomName,omitempty"`
	CallID        string        `json:"callId,omitempty"`
	ParticipantID string        `json:"participantId,omitempty"`
	Status        string        `json:"status"`
	Reason        string        `json:"reason,omitempty"`
	Error         string        `json:"error,omitempty"`
	AnswerLatency time.Duration `json:"answerLatencyMs,omitempty"`
	PlacedAt      time.Time     `json:"placedAt"`
}

// Succeeded reports whether the call was answered.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}
