package controller

import (
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/vantagedesk/streamview/internal/metrics"
)

// Reset tears down the current session and builds a fresh one. If signaling
// was mid-exchange at teardown the reconnect waits a fixed settle delay so
// the remote peer can unwind its half of the negotiation; a settled session
// reconnects immediately. There is no backoff and no retry limit.
func (c *Controller) Reset(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	metrics.ReconnectsTotal.Inc()

	settled := true
	c.mu.Lock()
	if c.session != nil {
		settled = c.session.SignalingState() == webrtc.SignalingStateStable
		if err := c.session.Close(); err != nil {
			c.logger.Warn("session close failed", zap.Error(err))
		}
		c.session = nil
		metrics.ActiveSessions.Dec()
	}
	c.mu.Unlock()

	if !settled {
		c.status("waiting for peer to settle before reconnecting")
		select {
		case <-time.After(c.cfg.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.connect(ctx)
}
