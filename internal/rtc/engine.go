// Package rtc abstracts the platform WebRTC engine behind narrow interfaces
// so the negotiation controller can be exercised without real network or
// media stacks.
package rtc

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Config describes a single session's transport setup. It is immutable once
// the session is constructed; the relay-forcing policy mutates the copy the
// controller holds before the session is built.
type Config struct {
	ICEServers      []webrtc.ICEServer
	TransportPolicy webrtc.ICETransportPolicy

	// ICE liveness timeouts: disconnected, failed, keepalive.
	DisconnectedTimeout time.Duration
	FailedTimeout       time.Duration
	KeepaliveInterval   time.Duration
}

// Observer receives engine notifications for one session. Exactly one
// observer is bound at session construction; the engine never invokes it
// after Close returns an acknowledged teardown.
type Observer interface {
	// OnLocalCandidate delivers each locally gathered candidate. A nil
	// candidate signals end of gathering.
	OnLocalCandidate(candidate *webrtc.ICECandidate)
	OnNegotiationNeeded()
	OnConnectionStateChange(state webrtc.PeerConnectionState)
	OnICEConnectionStateChange(state webrtc.ICEConnectionState)
}

// Session is one live peer connection.
type Session interface {
	CreateOffer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track webrtc.TrackLocal) error
	SignalingState() webrtc.SignalingState
	Close() error
}

// Engine constructs sessions.
type Engine interface {
	NewSession(cfg Config, obs Observer) (Session, error)
}
