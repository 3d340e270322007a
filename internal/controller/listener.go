package controller

import "github.com/pion/webrtc/v4"

// Listener receives application-level events from the controller. The
// controller never returns failures from engine callbacks to a caller;
// every one is routed here so the application decides whether to Reset.
//
// At most one listener is active; SetListener replaces it at any time.
type Listener interface {
	Status(msg string)
	Debug(msg string)
	Failure(err error)
	StateChanged(state webrtc.PeerConnectionState)
}

// NopListener discards all events. Embed it to implement a partial listener.
type NopListener struct{}

func (NopListener) Status(string)                           {}
func (NopListener) Debug(string)                            {}
func (NopListener) Failure(error)                           {}
func (NopListener) StateChanged(webrtc.PeerConnectionState) {}
