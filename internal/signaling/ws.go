package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/metrics"
)

const outboundQueueSize = 64

var (
	ErrClosed    = errors.New("signaling: transport closed")
	ErrQueueFull = errors.New("signaling: outbound queue full")
)

// WSTransport implements Transport over a WebSocket connection.
//
// Sends are enqueued on a buffered channel and written by a single writer
// goroutine, so callers never block on the network. A single reader
// goroutine dispatches inbound messages in arrival order.
type WSTransport struct {
	url    string
	logger *zap.Logger

	handlerMu sync.RWMutex
	handler   Handler

	out  chan Message
	done chan struct{}

	// Messages a failed write pulled off the queue; the next connection's
	// writer drains these before the queue so nothing is lost on re-dial.
	pendingMu sync.Mutex
	pending   []Message

	mu   sync.Mutex
	conn *websocket.Conn
	stop chan struct{}
}

// NewWSTransport creates a transport for the given WebSocket URL. It does
// not dial until Connect is called; messages sent before then are queued.
func NewWSTransport(url string, logger *zap.Logger) *WSTransport {
	return &WSTransport{
		url:    url,
		logger: logger,
		out:    make(chan Message, outboundQueueSize),
		done:   make(chan struct{}),
	}
}

// SetHandler replaces the inbound message handler. At most one handler is
// active at a time.
func (t *WSTransport) SetHandler(h Handler) {
	t.handlerMu.Lock()
	t.handler = h
	t.handlerMu.Unlock()
}

// Connect dials the signaling server. A previous connection, if any, is
// superseded: its loops are stopped and the socket closed before re-dialing.
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	if t.conn != nil {
		t.conn.Close()
		close(t.stop)
		t.conn = nil
		t.stop = nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("dial signaling server: %w", err)
	}

	stop := make(chan struct{})
	t.conn = conn
	t.stop = stop

	go t.writeLoop(conn, stop)
	go t.readLoop(conn, stop)

	t.logger.Info("signaling connected", zap.String("url", t.url))
	return nil
}

// SendSDP enqueues a session description for delivery.
func (t *WSTransport) SendSDP(desc webrtc.SessionDescription) error {
	return t.enqueue(Message{
		Type: MessageType(desc.Type.String()),
		SDP:  desc.SDP,
	})
}

// SendICE enqueues a local ICE candidate for delivery.
func (t *WSTransport) SendICE(candidate webrtc.ICECandidateInit) error {
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	return t.enqueue(Message{Type: MsgTypeCandidate, Candidate: string(data)})
}

// Close shuts the transport down permanently.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	default:
	}
	close(t.done)

	if t.conn != nil {
		t.conn.Close()
		close(t.stop)
		t.conn = nil
		t.stop = nil
	}
	return nil
}

func (t *WSTransport) enqueue(msg Message) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	select {
	case t.out <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (t *WSTransport) takePending() (Message, bool) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if len(t.pending) == 0 {
		return Message{}, false
	}
	msg := t.pending[0]
	t.pending = t.pending[1:]
	return msg, true
}

func (t *WSTransport) holdPending(msg Message) {
	t.pendingMu.Lock()
	t.pending = append(t.pending, msg)
	t.pendingMu.Unlock()
}

func (t *WSTransport) writeLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		msg, ok := t.takePending()
		if !ok {
			select {
			case <-t.done:
				return
			case <-stop:
				return
			case msg = <-t.out:
			}
		}
		if err := conn.WriteJSON(msg); err != nil {
			// The message is already off the queue; park it so the next
			// connection's writer delivers it instead of dropping it.
			t.holdPending(msg)
			t.logger.Warn("signaling write failed", zap.Error(err))
			return
		}
		metrics.SignalingMessagesTotal.WithLabelValues("out", string(msg.Type)).Inc()
	}
}

func (t *WSTransport) readLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-t.done:
			case <-stop:
			default:
				t.logger.Warn("signaling read failed", zap.Error(err))
			}
			return
		}
		metrics.SignalingMessagesTotal.WithLabelValues("in", string(msg.Type)).Inc()
		t.dispatch(msg)
	}
}

// dispatch routes one inbound message to the handler. Called from the single
// reader goroutine only, which preserves arrival order.
func (t *WSTransport) dispatch(msg Message) {
	t.handlerMu.RLock()
	h := t.handler
	t.handlerMu.RUnlock()
	if h == nil {
		t.logger.Debug("no handler bound, dropping message", zap.String("type", string(msg.Type)))
		return
	}

	switch msg.Type {
	case MsgTypeOffer:
		h.HandleSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP})
	case MsgTypeAnswer:
		h.HandleSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: msg.SDP})
	case MsgTypeCandidate:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
			t.logger.Warn("invalid candidate payload", zap.Error(err))
			return
		}
		h.HandleICE(init)
	default:
		t.logger.Debug("unknown message type", zap.String("type", string(msg.Type)))
	}
}
