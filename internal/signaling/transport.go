package signaling

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// Handler receives inbound signaling messages. The transport invokes each
// method exactly once per message, in arrival order, from a single goroutine.
type Handler interface {
	HandleSDP(desc webrtc.SessionDescription)
	HandleICE(candidate webrtc.ICECandidateInit)
}

// Transport is a bidirectional signaling channel. SendSDP and SendICE
// enqueue without blocking the caller; delivery order matches call order.
type Transport interface {
	Connect(ctx context.Context) error
	SendSDP(desc webrtc.SessionDescription) error
	SendICE(candidate webrtc.ICECandidateInit) error
	SetHandler(h Handler)
	Close() error
}
