// Package models defines the data structures for call lifecycle events.
package models

// Event type values carried in the eventType field.
const (
	EventCallPlaced          = "call.placed"
	EventCallAnswered        = "call.answered"
	EventCallFailed          = "call.failed"
	EventCallTransferred     = "call.transferred"
	EventSessionClosed       = "session.closed"
	EventTranscriptPersisted = "transcript.persisted"
)

// CallPlaced is emitted when an outbound bridge request is issued.
type CallPlaced struct {
	EventType   string `json:"eventType"`
	Room        string `json:"room"`
	PhoneNumber string `json:"phoneNumber"`
	TrunkID     string `json:"trunkId"`
	TenantID    string `json:"tenantId,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// CallAnswered is emitted when the carrier confirms the call was answered.
type CallAnswered struct {
	EventType   string `json:"eventType"`
	Room        string `json:"room"`
	PhoneNumber string `json:"phoneNumber"`
	CallID      string `json:"callId"`
	LatencyMs   int64  `json:"latencyMs"`
	Timestamp   int64  `json:"timestamp"`
}

// CallFailed is emitted when a call attempt fails at any stage.
type CallFailed struct {
	EventType   string `json:"eventType"`
	Room        string `json:"room"`
	PhoneNumber string `json:"phoneNumber"`
	Error       string `json:"error"`
	Timestamp   int64  `json:"timestamp"`
}

// CallTransferred is emitted after a successful transfer-to-human.
type CallTransferred struct {
	EventType  string `json:"eventType"`
	Room       string `json:"room"`
	TransferTo string `json:"transferTo"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// SessionClosed is emitted when a session controller reaches its terminal
// state, whatever triggered the shutdown.
type SessionClosed struct {
	EventType string `json:"eventType"`
	Room      string `json:"room"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptPersisted is emitted once per session after the transcript
// has been written to durable storage.
type TranscriptPersisted struct {
	EventType string `json:"eventType"`
	Room      string `json:"room"`
	Location  string `json:"location"`
	Turns     int    `json:"turns"`
	Timestamp int64  `json:"timestamp"`
}
