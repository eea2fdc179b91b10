package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// relayEnvelope is the pub/sub payload carrying a room event between processes
type relayEnvelope struct {
	ID    string       `json:"id"`
	Event domain.Event `json:"event"`
}

// ErrRelayNotSubscribed is returned by Publish while no subscriber is running in this process
var ErrRelayNotSubscribed = errors.New("relay not subscribed")

// Relay fans room events out to every server process over Redis pub/sub
type Relay struct {
	client     *Client
	channel    string
	subscribed atomic.Bool
}

// NewRelay creates a new relay bound to channel
func NewRelay(client *Client, channel string) *Relay {
	return &Relay{client: client, channel: channel}
}

// Active reports whether Run holds a live subscription
func (r *Relay) Active() bool {
	return r.subscribed.Load()
}

// Publish sends event to all subscribed processes, including this one.
// It fails with ErrRelayNotSubscribed while Run is not subscribed.
func (r *Relay) Publish(ctx context.Context, event domain.Event) error {
	if !r.Active() {
		return ErrRelayNotSubscribed
	}
	data, err := json.Marshal(relayEnvelope{ID: uuid.NewString(), Event: event})
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}
	if err := r.client.rdb.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish relay event: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel and calls deliver for each event until ctx ends
func (r *Relay) Run(ctx context.Context, deliver func(event domain.Event)) error {
	sub := r.client.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.subscribed.Store(true)
	defer r.subscribed.Store(false)

	log.Info().Str("channel", r.channel).Msg("Relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay channel %s closed", r.channel)
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("Dropping malformed relay event")
				continue
			}
			log.Debug().Str("relay_id", env.ID).Str("session_id", env.Event.SessionID).Msg("Relay event received")
			deliver(env.Event)
		}
	}
}
