// Package events publishes account lifecycle events to the message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ManojKumar-18-24/VIDEO-STREAMING-WEBSITE/internal/mq"
	"go.uber.org/zap"
)

type Type string

const (
	UserRegistered  Type = "user.registered"
	UserLoggedIn    Type = "user.logged_in"
	UserLoggedOut   Type = "user.logged_out"
	TokenRefreshed  Type = "user.token_refreshed"
	PasswordChanged Type = "user.password_changed"
	AccountUpdated  Type = "user.account_updated"
)

const (
	attrEventType         = "event_type"
	defaultPublishTimeout = 3 * time.Second
)

// Event is the JSON payload published for every account change.
type Event struct {
	Type       Type      `json:"type"`
	UserID     int       `json:"userId"`
	Username   string    `json:"username,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Broker is the subset of mq.MQ used here.
type Broker interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// Publisher sends events on one channel. A Publisher without a broker drops
// everything, so callers never need to check whether messaging is enabled.
type Publisher struct {
	broker  Broker
	channel string
	log     *zap.Logger
	timeout time.Duration
}

func NewPublisher(broker Broker, channel string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		broker:  broker,
		channel: channel,
		log:     log,
		timeout: defaultPublishTimeout,
	}
}

// Publish sends evt. Failures are logged and never reach the caller.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil || p.broker == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		p.log.Error("marshal event", zap.String("type", string(evt.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	attrs := map[string]string{
		attrEventType:      string(evt.Type),
		mq.AttrContentType: "application/json",
		mq.AttrOrderingKey: strconv.Itoa(evt.UserID),
	}
	id, err := p.broker.Publish(ctx, p.channel, data, attrs)
	if err != nil {
		p.log.Warn("publish event failed",
			zap.String("type", string(evt.Type)),
			zap.Int("userId", evt.UserID),
			zap.Error(err),
		)
		return
	}
	p.log.Debug("event published", zap.String("type", string(evt.Type)), zap.String("id", id))
}

// Consume decodes events from channel and passes them to fn until ctx ends.
// Undecodable messages are acknowledged and skipped.
func Consume(ctx context.Context, broker Broker, channel string, log *zap.Logger, fn func(context.Context, Event) error) error {
	if log == nil {
		log = zap.NewNop()
	}
	return broker.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Warn("skip undecodable event", zap.String("id", msg.ID), zap.Error(err))
			return nil
		}
		if err := fn(ctx, evt); err != nil {
			return fmt.Errorf("handle %s: %w", evt.Type, err)
		}
		return nil
	})
}
