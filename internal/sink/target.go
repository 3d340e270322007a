// Package sink is the presentation side of the client: an opaque target
// that renders a bound media source.
package sink

import "github.com/pion/rtp"

// Source yields RTP packets from a bound media capture. release, when
// non-nil, must be called after the packets have been consumed.
type Source interface {
	Read() (pkts []*rtp.Packet, release func(), err error)
	Close() error
}

// Target renders a media source. Load resets the target to its unstarted
// state; Play begins rendering and fails if no source is bound.
type Target interface {
	SetSource(src Source)
	Load()
	Play() error
}
