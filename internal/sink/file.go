package sink

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"go.uber.org/zap"
)

// ErrNoSource is returned by Play when no capture has been bound.
var ErrNoSource = errors.New("sink: no source bound")

// FileTarget renders the bound VP8 source into an IVF file. Load stops
// rendering; the next Play truncates the file and starts over.
type FileTarget struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	src     Source
	playing bool
	stop    chan struct{}
	done    chan struct{}
}

func NewFileTarget(path string, logger *zap.Logger) *FileTarget {
	return &FileTarget{path: path, logger: logger}
}

// SetSource binds the capture the next Play will render. Replacing the
// source does not interrupt an in-progress render.
func (t *FileTarget) SetSource(src Source) {
	t.mu.Lock()
	t.src = src
	t.mu.Unlock()
}

// Play begins rendering. Calling Play while already rendering is a no-op.
func (t *FileTarget) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.playing {
		return nil
	}
	if t.src == nil {
		return ErrNoSource
	}

	f, err := os.Create(t.path)
	if err != nil {
		return err
	}
	w, err := ivfwriter.NewWith(f)
	if err != nil {
		f.Close()
		return err
	}

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.playing = true
	go t.render(t.src, f, w, t.stop, t.done)

	t.logger.Info("playback started", zap.String("path", t.path))
	return nil
}

// Load resets the target to its unstarted state, stopping any render in
// progress. The bound source is kept for the next Play.
func (t *FileTarget) Load() {
	t.mu.Lock()
	if !t.playing {
		t.mu.Unlock()
		return
	}
	stop, done := t.stop, t.done
	t.playing = false
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	close(stop)
	<-done
	t.logger.Info("playback stopped", zap.String("path", t.path))
}

// halt clears the playing state when a render exits on its own. The stop
// channel identifies the render; a Load that already superseded it wins.
func (t *FileTarget) halt(stop chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == stop {
		t.playing = false
		t.stop, t.done = nil, nil
	}
}

func (t *FileTarget) render(src Source, f *os.File, w *ivfwriter.IVFWriter, stop, done chan struct{}) {
	defer func() {
		t.halt(stop)
		w.Close()
		f.Close()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		pkts, release, err := src.Read()
		if err != nil {
			if err != io.EOF {
				t.logger.Warn("source read failed", zap.Error(err))
			}
			return
		}
		for _, pkt := range pkts {
			if pkt == nil {
				continue
			}
			if err := w.WriteRTP(pkt); err != nil {
				t.logger.Debug("frame write failed", zap.Error(err))
			}
		}
		if release != nil {
			release()
		}
	}
}
