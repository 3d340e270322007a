// Package media acquires the local video capture that is attached to a
// session before negotiation begins.
package media

import (
	"github.com/pion/webrtc/v4"

	"github.com/vantagedesk/streamview/internal/sink"
)

// Stream is an acquired local capture.
type Stream interface {
	// Tracks returns the capture tracks, ready to attach to a session.
	Tracks() []webrtc.TrackLocal
	// NewPreviewSource mints an independent RTP reader over the capture for
	// the presentation target.
	NewPreviewSource() (sink.Source, error)
	Close()
}

// Acquirer requests local media. Acquisition failure is expected (missing
// device, denied permission) and must not abort connection setup.
type Acquirer interface {
	Acquire() (Stream, error)
}
