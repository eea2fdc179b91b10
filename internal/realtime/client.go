package realtime

import (
	"context"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// client is one WebSocket connection registered with the hub
type client struct {
	id           string
	ws           *websocket.Conn
	send         chan domain.Event
	limiter      *rate.Limiter
	writeTimeout time.Duration
}

func newClient(ws *websocket.Conn, buffer int, perSec float64, burst int, writeTimeout time.Duration) *client {
	return &client{
		id:           ulid.Make().String(),
		ws:           ws,
		send:         make(chan domain.Event, buffer),
		limiter:      rate.NewLimiter(rate.Limit(perSec), burst),
		writeTimeout: writeTimeout,
	}
}

func (c *client) ID() string {
	return c.id
}

// Send never blocks; the queue is not closed so late sends after disconnect are harmless
func (c *client) Send(event domain.Event) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// writeLoop drains the send queue until ctx ends or a write fails
func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.send:
			if err := c.write(ctx, event); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (c *client) write(ctx context.Context, event domain.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c.ws, event)
}
