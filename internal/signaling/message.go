// Package signaling carries SDP and ICE payloads between the negotiation
// controller and the remote endpoint. The wire format is a small JSON
// envelope over WebSocket; payload framing inside sdp/candidate is defined
// by the WebRTC standard and passed through opaquely.
package signaling

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
)

// Message is the JSON structure exchanged with the remote endpoint.
type Message struct {
	Type      MessageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
