package media

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // registers the camera adapter
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/config"
	"github.com/vantagedesk/streamview/internal/sink"
)

const previewMTU = 1200

// Webcam acquires a video-only capture from the first available camera,
// encoded as VP8.
type Webcam struct {
	cfg      *config.Config
	logger   *zap.Logger
	selector *mediadevices.CodecSelector
}

// NewWebcam builds the VP8 encoder parameters and codec selector used for
// every acquisition.
func NewWebcam(cfg *config.Config, logger *zap.Logger) (*Webcam, error) {
	params, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("create VP8 params: %w", err)
	}
	params.BitRate = cfg.VideoBitRate
	params.KeyFrameInterval = 15
	params.Deadline = 200 * time.Millisecond

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&params),
	)
	return &Webcam{cfg: cfg, logger: logger, selector: selector}, nil
}

// CodecSelector exposes the selector so the engine can register the same
// codecs on its media engine; tracks cannot bind otherwise.
func (w *Webcam) CodecSelector() *mediadevices.CodecSelector {
	return w.selector
}

// Acquire requests the capture device. Audio is deliberately not requested.
func (w *Webcam) Acquire() (Stream, error) {
	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.Width = prop.Int(w.cfg.VideoWidth)
			c.Height = prop.Int(w.cfg.VideoHeight)
			c.FrameRate = prop.Float(w.cfg.VideoFrameRate)
		},
		Codec: w.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get user media: %w", err)
	}

	tracks := ms.GetVideoTracks()
	w.logger.Info("media acquired", zap.Int("videoTracks", len(tracks)))
	return &webcamStream{ms: ms, logger: w.logger}, nil
}

type webcamStream struct {
	ms     mediadevices.MediaStream
	logger *zap.Logger
}

func (s *webcamStream) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	for _, t := range s.ms.GetVideoTracks() {
		out = append(out, t)
	}
	return out
}

// NewPreviewSource opens an RTP reader on the first video track. The
// capture broadcaster supports multiple readers, so the preview does not
// starve the track attached to the session.
func (s *webcamStream) NewPreviewSource() (sink.Source, error) {
	tracks := s.ms.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, errors.New("media: no video track in capture")
	}
	track := tracks[0]

	r, err := track.NewRTPReader(codecName(webrtc.MimeTypeVP8), uuid.New().ID(), previewMTU)
	if err != nil {
		return nil, fmt.Errorf("open preview reader: %w", err)
	}
	return &previewSource{r: r}, nil
}

func (s *webcamStream) Close() {
	for _, t := range s.ms.GetTracks() {
		if err := t.Close(); err != nil {
			s.logger.Warn("track close failed", zap.Error(err))
		}
	}
}

// codecName strips the media prefix from a MIME type ("video/VP8" → "VP8").
func codecName(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[i+1:]
	}
	return mimeType
}

type previewSource struct {
	r mediadevices.RTPReadCloser
}

func (p *previewSource) Read() ([]*rtp.Packet, func(), error) {
	return p.r.Read()
}

func (p *previewSource) Close() error {
	return p.r.Close()
}
