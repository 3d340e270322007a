package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

// wsServer is an in-process signaling peer for transport tests.
type wsServer struct {
	ts *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Message
	gotMsg   chan struct{}
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{gotMsg: make(chan struct{}, 64)}
	s.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			s.mu.Lock()
			s.received = append(s.received, msg)
			s.mu.Unlock()
			s.gotMsg <- struct{}{}
		}
	}))
	t.Cleanup(s.ts.Close)
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.ts.URL, "http")
}

func (s *wsServer) send(t *testing.T, msg Message) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("no client connected")
	}
	if err := s.conns[len(s.conns)-1].WriteJSON(msg); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func (s *wsServer) waitMessages(t *testing.T, n int) []Message {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.gotMsg:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d of %d", i+1, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.received))
	copy(out, s.received)
	return out
}

type captureHandler struct {
	mu    sync.Mutex
	order []string // interleaving of sdp and ice arrivals
	sdps  []webrtc.SessionDescription
	ices  []webrtc.ICECandidateInit
	seen  chan struct{}
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{seen: make(chan struct{}, 64)}
}

func (h *captureHandler) HandleSDP(desc webrtc.SessionDescription) {
	h.mu.Lock()
	h.sdps = append(h.sdps, desc)
	h.order = append(h.order, "sdp:"+desc.Type.String())
	h.mu.Unlock()
	h.seen <- struct{}{}
}

func (h *captureHandler) HandleICE(c webrtc.ICECandidateInit) {
	h.mu.Lock()
	h.ices = append(h.ices, c)
	h.order = append(h.order, "ice")
	h.mu.Unlock()
	h.seen <- struct{}{}
}

func (h *captureHandler) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-h.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for inbound message %d of %d", i+1, n)
		}
	}
}

func newConnected(t *testing.T, srv *wsServer) *WSTransport {
	t.Helper()
	tr := NewWSTransport(srv.url(), zap.NewNop())
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestSendSDPFraming(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 test"}
	if err := tr.SendSDP(offer); err != nil {
		t.Fatalf("send sdp: %v", err)
	}

	got := srv.waitMessages(t, 1)
	if got[0].Type != MsgTypeOffer || got[0].SDP != "v=0 test" {
		t.Errorf("unexpected frame: %+v", got[0])
	}
	if got[0].Candidate != "" {
		t.Errorf("sdp frame must omit candidate, got %q", got[0].Candidate)
	}
}

func TestSendICEFraming(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	init := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 1.2.3.4 9 typ host"}
	if err := tr.SendICE(init); err != nil {
		t.Fatalf("send ice: %v", err)
	}

	got := srv.waitMessages(t, 1)
	if got[0].Type != MsgTypeCandidate {
		t.Fatalf("unexpected type %q", got[0].Type)
	}
	var decoded webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(got[0].Candidate), &decoded); err != nil {
		t.Fatalf("candidate payload: %v", err)
	}
	if decoded.Candidate != init.Candidate {
		t.Errorf("expected %q, got %q", init.Candidate, decoded.Candidate)
	}
}

func TestSendOrderPreserved(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	for i := 0; i < 5; i++ {
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("v=0 seq-%d", i)}
		if err := tr.SendSDP(desc); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	got := srv.waitMessages(t, 5)
	for i, msg := range got {
		want := fmt.Sprintf("v=0 seq-%d", i)
		if msg.SDP != want {
			t.Errorf("message %d: expected %q, got %q", i, want, msg.SDP)
		}
	}
}

func TestInboundDispatchInArrivalOrder(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)
	h := newCaptureHandler()
	tr.SetHandler(h)

	cand, _ := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:9 1 udp 1 5.6.7.8 9 typ relay"})
	srv.send(t, Message{Type: MsgTypeCandidate, Candidate: string(cand)})
	srv.send(t, Message{Type: MsgTypeAnswer, SDP: "v=0 remote"})
	srv.send(t, Message{Type: MsgTypeCandidate, Candidate: string(cand)})
	h.wait(t, 3)

	h.mu.Lock()
	defer h.mu.Unlock()
	want := []string{"ice", "sdp:answer", "ice"}
	for i := range want {
		if h.order[i] != want[i] {
			t.Fatalf("arrival order broken: got %v, want %v", h.order, want)
		}
	}
	if h.sdps[0].Type != webrtc.SDPTypeAnswer || h.sdps[0].SDP != "v=0 remote" {
		t.Errorf("unexpected sdp: %+v", h.sdps[0])
	}
}

func TestOfferDispatchedAsOffer(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)
	h := newCaptureHandler()
	tr.SetHandler(h)

	srv.send(t, Message{Type: MsgTypeOffer, SDP: "v=0 remote-offer"})
	h.wait(t, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sdps[0].Type != webrtc.SDPTypeOffer {
		t.Errorf("expected offer type, got %v", h.sdps[0].Type)
	}
}

func TestUnknownTypeIgnored(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)
	h := newCaptureHandler()
	tr.SetHandler(h)

	srv.send(t, Message{Type: "ping"})
	srv.send(t, Message{Type: MsgTypeAnswer, SDP: "v=0 after"})
	h.wait(t, 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sdps) != 1 || h.sdps[0].SDP != "v=0 after" {
		t.Errorf("expected only the answer dispatched, got %+v", h.sdps)
	}
}

func TestReconnectSupersedesConnection(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	if err := tr.SendSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 second"}); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	got := srv.waitMessages(t, 1)
	if got[len(got)-1].SDP != "v=0 second" {
		t.Errorf("expected delivery on superseding connection, got %+v", got)
	}

	srv.mu.Lock()
	conns := len(srv.conns)
	srv.mu.Unlock()
	if conns != 2 {
		t.Errorf("expected 2 server-side connections, got %d", conns)
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.SendSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := tr.Connect(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed on connect after close, got %v", err)
	}
}

func TestPendingDeliveredBeforeQueueOnConnect(t *testing.T) {
	srv := newWSServer(t)
	tr := NewWSTransport(srv.url(), zap.NewNop())
	defer tr.Close()

	// A message a broken connection's writer pulled off the queue must go
	// out first on the next connection.
	tr.holdPending(Message{Type: MsgTypeOffer, SDP: "v=0 held"})
	if err := tr.SendSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 queued"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := srv.waitMessages(t, 2)
	if got[0].SDP != "v=0 held" || got[1].SDP != "v=0 queued" {
		t.Errorf("expected held message delivered first, got %+v", got)
	}
}

func TestNoLossAcrossSupersedingReconnects(t *testing.T) {
	srv := newWSServer(t)
	tr := newConnected(t, srv)

	// Interleave sends with superseding reconnects; every message must
	// arrive whether the old writer had it in flight or not.
	const rounds = 10
	for i := 0; i < rounds; i++ {
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("v=0 seq-%d", i)}
		if err := tr.SendSDP(desc); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("reconnect %d: %v", i, err)
		}
	}

	got := srv.waitMessages(t, rounds)
	seen := make(map[string]bool, rounds)
	for _, msg := range got {
		seen[msg.SDP] = true
	}
	for i := 0; i < rounds; i++ {
		if want := fmt.Sprintf("v=0 seq-%d", i); !seen[want] {
			t.Errorf("message %q lost across reconnect", want)
		}
	}
}

func TestQueueFullBeforeConnect(t *testing.T) {
	tr := NewWSTransport("ws://unused.invalid", zap.NewNop())
	defer tr.Close()

	var err error
	for i := 0; i <= outboundQueueSize; i++ {
		err = tr.SendSDP(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "x"})
	}
	if err != ErrQueueFull {
		t.Errorf("expected ErrQueueFull once the queue is saturated, got %v", err)
	}
}
