package rtc

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// PionEngine builds sessions on pion/webrtc. The codec selector, when
// present, registers the encoders the capture pipeline produces so that
// acquired tracks can bind to the connection.
type PionEngine struct {
	logger   *zap.Logger
	selector *mediadevices.CodecSelector
}

// NewPionEngine creates the engine. selector may be nil when no local media
// will be attached.
func NewPionEngine(logger *zap.Logger, selector *mediadevices.CodecSelector) *PionEngine {
	return &PionEngine{logger: logger, selector: selector}
}

// NewSession creates a PeerConnection configured per cfg and binds obs to
// its notification callbacks.
func (e *PionEngine) NewSession(cfg Config, obs Observer) (Session, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register default codecs: %w", err)
	}
	if e.selector != nil {
		e.selector.Populate(m)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.SetICETimeouts(cfg.DisconnectedTimeout, cfg.FailedTimeout, cfg.KeepaliveInterval)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         cfg.ICEServers,
		ICETransportPolicy: cfg.TransportPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	pc.OnICECandidate(obs.OnLocalCandidate)
	pc.OnNegotiationNeeded(obs.OnNegotiationNeeded)
	pc.OnConnectionStateChange(obs.OnConnectionStateChange)
	pc.OnICEConnectionStateChange(obs.OnICEConnectionStateChange)

	e.logger.Debug("session created",
		zap.String("policy", cfg.TransportPolicy.String()),
		zap.Int("iceServers", len(cfg.ICEServers)),
	)
	return &pionSession{pc: pc}, nil
}

type pionSession struct {
	pc *webrtc.PeerConnection
}

func (s *pionSession) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

func (s *pionSession) SetLocalDescription(desc webrtc.SessionDescription) error {
	return s.pc.SetLocalDescription(desc)
}

func (s *pionSession) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return s.pc.SetRemoteDescription(desc)
}

func (s *pionSession) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return s.pc.AddICECandidate(candidate)
}

// AddTrack attaches a local track send-only; the remote endpoint receives,
// it never sends media back on these transceivers.
func (s *pionSession) AddTrack(track webrtc.TrackLocal) error {
	_, err := s.pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	return err
}

func (s *pionSession) SignalingState() webrtc.SignalingState {
	return s.pc.SignalingState()
}

func (s *pionSession) Close() error {
	return s.pc.Close()
}
