package types

import "encoding/json"

// Inbound action events. Each message from a connection names one of these.
const (
	ActionRemoveParticipant = "remove_participant"
	ActionNominate          = "nominate"
	ActionRemoveNomination  = "remove_nomination"
	ActionStartVote         = "start_vote"
	ActionSubmitRankings    = "submit_rankings"
)

// Outbound events.
const (
	EventPollUpdated = "poll_updated"
	EventException   = "exception"
)

// ClientMessage is the envelope for messages sent by poll socket clients.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the envelope for messages sent to poll socket clients.
type ServerMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ExceptionPayload is sent to the originating connection only, on any
// failed action.
type ExceptionPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RemoveParticipantData is the payload of a remove_participant action.
type RemoveParticipantData struct {
	ID string `json:"id"`
}

// NominateData is the payload of a nominate action.
type NominateData struct {
	Text string `json:"text"`
}

// RemoveNominationData is the payload of a remove_nomination action.
type RemoveNominationData struct {
	ID string `json:"id"`
}

// SubmitRankingsData is the payload of a submit_rankings action.
type SubmitRankingsData struct {
	Rankings []string `json:"rankings"`
}
