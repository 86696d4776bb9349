package wsgateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/pkg/arenadto"
)

// client is one websocket connection and the player identity bound to it.
// Writes go through out so callers on clock goroutines never block on the network.
type client struct {
	id   string
	name string
	ws   *websocket.Conn
	out  chan arenadto.Event

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(id, name string, ws *websocket.Conn, buffer int) *client {
	ctx, cancel := context.WithCancel(context.Background())
	name = strings.TrimSpace(name)
	if len(name) > 32 {
		name = name[:32]
	}
	return &client{
		id:     id,
		name:   name,
		ws:     ws,
		out:    make(chan arenadto.Event, buffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *client) player() session.Player { return session.Player{ID: c.id, Name: c.name} }

// enqueue queues ev for delivery. A full queue means the peer stopped reading; the
// connection is closed rather than letting the backlog grow.
func (c *client) enqueue(ev arenadto.Event) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.out <- ev:
		return true
	default:
		obslog.L().Warn("ws_slow_consumer", zap.String("conn_id", c.id), zap.String("event", ev.Type))
		go c.close(websocket.StatusPolicyViolation, "slow consumer")
		return false
	}
}

func (c *client) writeLoop(timeout time.Duration) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, timeout)
			err := wsjson.Write(ctx, c.ws, ev)
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					obslog.L().Debug("ws_write_error", zap.String("conn_id", c.id), zap.Error(err))
				}
				go c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (c *client) pingLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.ws.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			if failures++; failures >= 2 {
				obslog.L().Info("ws_ping_timeout", zap.String("conn_id", c.id))
				go c.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.ws.Close(code, reason)
		c.cancel()
	})
}
