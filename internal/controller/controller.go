// Package controller owns the peer connection lifecycle: it mediates
// between the signaling transport and the WebRTC engine, tracks
// connection and ICE state, applies the relay-forcing policy, and reports
// every event to the application listener.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/config"
	"github.com/vantagedesk/streamview/internal/media"
	"github.com/vantagedesk/streamview/internal/metrics"
	"github.com/vantagedesk/streamview/internal/rtc"
	"github.com/vantagedesk/streamview/internal/signaling"
	"github.com/vantagedesk/streamview/internal/sink"
)

// relayMarker appears in the serialized form of TURN-relayed candidates.
const relayMarker = "typ relay"

// Controller drives session negotiation. It owns at most one live session;
// Connect, Reset and Close are serialized, engine and transport callbacks
// may arrive concurrently.
type Controller struct {
	cfg       *config.Config
	logger    *zap.Logger
	engine    rtc.Engine
	transport signaling.Transport
	acquirer  media.Acquirer
	target    sink.Target

	listenerMu sync.RWMutex
	listener   Listener

	opMu sync.Mutex // serializes Connect / Reset / Close

	mu        sync.Mutex
	session   rtc.Session
	sessionID string
	stream    media.Stream
	connState webrtc.PeerConnectionState
	iceState  webrtc.ICEConnectionState
	startedAt time.Time
}

// State is a read-only snapshot for the local API.
type State struct {
	SessionID          string `json:"sessionId"`
	ConnectionState    string `json:"connectionState"`
	ICEConnectionState string `json:"iceConnectionState"`
	ForceTURN          bool   `json:"forceTurn"`
}

// New wires the controller as the transport's inbound handler. The engine
// observer is bound per session in Connect.
func New(cfg *config.Config, logger *zap.Logger, engine rtc.Engine,
	transport signaling.Transport, acquirer media.Acquirer, target sink.Target) *Controller {

	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		engine:    engine,
		transport: transport,
		acquirer:  acquirer,
		target:    target,
		listener:  NopListener{},
		connState: webrtc.PeerConnectionStateNew,
		iceState:  webrtc.ICEConnectionStateNew,
	}
	transport.SetHandler(c)
	return c
}

// SetListener replaces the application listener.
func (c *Controller) SetListener(l Listener) {
	c.listenerMu.Lock()
	if l == nil {
		l = NopListener{}
	}
	c.listener = l
	c.listenerMu.Unlock()
}

// Connect is the idempotent entry point: it acquires local media, builds
// the session, attaches tracks, and connects the signaling transport. A
// live session makes it a no-op.
func (c *Controller) Connect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	live := c.session != nil
	c.mu.Unlock()
	if live {
		c.logger.Debug("connect ignored, session already live")
		return nil
	}
	return c.connect(ctx)
}

// connect builds one session. Caller must hold opMu.
func (c *Controller) connect(ctx context.Context) error {
	id := uuid.NewString()
	log := c.logger.With(zap.String("session", id))

	// Media first: tracks must be attached before any offer is generated.
	// Acquisition failure does not abort setup.
	stream := c.ensureStream(log)

	rtcCfg := c.sessionConfig()
	if c.cfg.ForceTURN {
		rtcCfg.TransportPolicy = webrtc.ICETransportPolicyRelay
		log.Info("forcing relay-only transport")
	}

	sess, err := c.engine.NewSession(rtcCfg, c)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if stream != nil {
		for _, t := range stream.Tracks() {
			if err := sess.AddTrack(t); err != nil {
				c.failure(fmt.Errorf("attach track: %w", err))
			}
		}
	}

	c.mu.Lock()
	c.session = sess
	c.sessionID = id
	c.connState = webrtc.PeerConnectionStateNew
	c.iceState = webrtc.ICEConnectionStateNew
	c.startedAt = time.Now()
	c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		sess.Close()
		c.mu.Lock()
		c.session = nil
		c.sessionID = ""
		c.startedAt = time.Time{}
		c.mu.Unlock()
		return fmt.Errorf("connect signaling: %w", err)
	}

	metrics.ActiveSessions.Inc()
	c.status("connecting")
	return nil
}

// ensureStream acquires local media once and binds it as the presentation
// target's source. Reused across reconnects.
func (c *Controller) ensureStream(log *zap.Logger) media.Stream {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream != nil {
		return stream
	}

	stream, err := c.acquirer.Acquire()
	if err != nil {
		metrics.MediaAcquireFailuresTotal.Inc()
		log.Warn("media acquisition failed, continuing without local tracks", zap.Error(err))
		return nil
	}

	src, err := stream.NewPreviewSource()
	if err != nil {
		log.Warn("preview source unavailable", zap.Error(err))
	} else {
		c.target.SetSource(src)
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	return stream
}

func (c *Controller) sessionConfig() rtc.Config {
	var servers []webrtc.ICEServer
	if len(c.cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: c.cfg.STUNServers})
	}
	if len(c.cfg.TURNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:       c.cfg.TURNServers,
			Username:   c.cfg.TURNUsername,
			Credential: c.cfg.TURNCredential,
		})
	}
	return rtc.Config{
		ICEServers:          servers,
		TransportPolicy:     webrtc.ICETransportPolicyAll,
		DisconnectedTimeout: c.cfg.ICEDisconnectedTimeout,
		FailedTimeout:       c.cfg.ICEFailedTimeout,
		KeepaliveInterval:   c.cfg.ICEKeepaliveInterval,
	}
}

// Close tears everything down: session, capture, playback, transport.
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	sess := c.session
	stream := c.stream
	c.session = nil
	c.stream = nil
	c.mu.Unlock()

	c.target.Load()

	var errs []error
	if sess != nil {
		metrics.ActiveSessions.Dec()
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if stream != nil {
		stream.Close()
	}
	if err := c.transport.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// State returns a snapshot of the controller for the local API.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		SessionID:          c.sessionID,
		ConnectionState:    c.connState.String(),
		ICEConnectionState: c.iceState.String(),
		ForceTURN:          c.cfg.ForceTURN,
	}
}

// ---------------------------------------------------------------------------
// Engine observer
// ---------------------------------------------------------------------------

// OnLocalCandidate forwards each gathered candidate to the transport. The
// nil end-of-gathering sentinel is never forwarded.
func (c *Controller) OnLocalCandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		c.status("ICE candidates complete")
		return
	}
	if err := c.transport.SendICE(candidate.ToJSON()); err != nil {
		c.failure(fmt.Errorf("send candidate: %w", err))
	}
}

// OnNegotiationNeeded generates a local offer and sends it. Failures are
// reported, never retried; the next Reset starts over.
func (c *Controller) OnNegotiationNeeded() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return
	}

	offer, err := sess.CreateOffer()
	if err != nil {
		metrics.NegotiationFailuresTotal.Inc()
		c.failure(fmt.Errorf("create offer: %w", err))
		return
	}
	if err := sess.SetLocalDescription(offer); err != nil {
		metrics.NegotiationFailuresTotal.Inc()
		c.failure(fmt.Errorf("set local description: %w", err))
		return
	}
	if err := c.transport.SendSDP(offer); err != nil {
		metrics.NegotiationFailuresTotal.Inc()
		c.failure(fmt.Errorf("send offer: %w", err))
		return
	}
	c.debug("offer sent")
}

// OnConnectionStateChange reacts to connection state transitions and
// forwards every one to the listener verbatim.
func (c *Controller) OnConnectionStateChange(state webrtc.PeerConnectionState) {
	metrics.ConnectionStateChangesTotal.WithLabelValues(state.String()).Inc()

	c.mu.Lock()
	prev := c.connState
	c.connState = state
	started := c.startedAt
	c.mu.Unlock()

	c.stateChanged(state)

	switch state {
	case webrtc.PeerConnectionStateConnected:
		if prev == webrtc.PeerConnectionStateConnected {
			// Duplicate notification: playback at most once per transition.
			return
		}
		metrics.NegotiationDuration.Observe(float64(time.Since(started).Milliseconds()))
		c.status("connection established")
		if err := c.target.Play(); err != nil {
			c.failure(fmt.Errorf("start playback: %w", err))
			return
		}
		metrics.PlaybackStartsTotal.Inc()

	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
		// Stop rendering stale media; the session itself is closed by the
		// engine separately.
		c.failure(fmt.Errorf("peer connection %s", state))
		c.target.Load()
		metrics.PresentationReloadsTotal.Inc()

	case webrtc.PeerConnectionStateClosed:
		c.failure(errors.New("peer connection closed"))
	}
}

// OnICEConnectionStateChange is purely observational.
func (c *Controller) OnICEConnectionStateChange(state webrtc.ICEConnectionState) {
	metrics.ICEStateChangesTotal.WithLabelValues(state.String()).Inc()

	c.mu.Lock()
	c.iceState = state
	c.mu.Unlock()

	switch state {
	case webrtc.ICEConnectionStateChecking,
		webrtc.ICEConnectionStateConnected,
		webrtc.ICEConnectionStateCompleted:
		c.status("ICE " + state.String())
	case webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateClosed:
		c.failure(fmt.Errorf("ICE connection %s", state))
	default:
		c.debug("ICE " + state.String())
	}
}

// ---------------------------------------------------------------------------
// Signaling handler
// ---------------------------------------------------------------------------

// HandleSDP applies a remote description. The SDP type is not pre-validated;
// the engine's own validation decides.
func (c *Controller) HandleSDP(desc webrtc.SessionDescription) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		c.failure(errors.New("remote description before session started"))
		return
	}
	if err := sess.SetRemoteDescription(desc); err != nil {
		c.failure(fmt.Errorf("set remote description: %w", err))
		return
	}
	c.debug("remote description applied: " + desc.Type.String())
}

// HandleICE adds a remote candidate. Under the relay-only policy, non-relay
// candidates are expected and dropped at debug level, never as an error.
func (c *Controller) HandleICE(candidate webrtc.ICECandidateInit) {
	if c.cfg.ForceTURN && !strings.Contains(candidate.Candidate, relayMarker) {
		metrics.RelayDroppedCandidatesTotal.Inc()
		c.debug("dropped non-relay candidate")
		return
	}

	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		c.failure(errors.New("remote candidate before session started"))
		return
	}
	if err := sess.AddICECandidate(candidate); err != nil {
		c.failure(fmt.Errorf("add remote candidate: %w", err))
	}
}

// ---------------------------------------------------------------------------
// Event reporting
// ---------------------------------------------------------------------------

func (c *Controller) getListener() Listener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.listener
}

func (c *Controller) status(msg string) {
	c.logger.Info(msg)
	c.getListener().Status(msg)
}

func (c *Controller) debug(msg string) {
	c.logger.Debug(msg)
	c.getListener().Debug(msg)
}

func (c *Controller) failure(err error) {
	c.logger.Error(err.Error())
	c.getListener().Failure(err)
}

func (c *Controller) stateChanged(state webrtc.PeerConnectionState) {
	c.getListener().StateChanged(state)
}
