package history

import (
	"github.com/pion/webrtc/v4"
)

// Recorder adapts a Ring to the controller listener interface so every
// status, debug and failure event lands in the history served by the API.
type Recorder struct {
	ring *Ring
}

// NewRecorder wraps a ring as a controller listener.
func NewRecorder(ring *Ring) *Recorder {
	return &Recorder{ring: ring}
}

func (r *Recorder) Status(msg string) {
	r.ring.Append("status", msg)
}

func (r *Recorder) Debug(msg string) {
	r.ring.Append("debug", msg)
}

func (r *Recorder) Failure(err error) {
	r.ring.Append("error", err.Error())
}

func (r *Recorder) StateChanged(state webrtc.PeerConnectionState) {
	r.ring.Append("state", state.String())
}
