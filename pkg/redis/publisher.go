package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// PubSub is the part of redis.UniversalClient the publisher needs.
type PubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// InAppMessage is the JSON published for an in_app notification.
type InAppMessage struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	UserID       *uuid.UUID       `json:"user_id,omitempty"`
	Recipient    string           `json:"recipient"`
	Subject      string           `json:"subject,omitempty"`
	Body         string           `json:"body"`
	TemplateID   string           `json:"template_id,omitempty"`
	TemplateData map[string]any   `json:"template_data,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
	Priority     notifyq.Priority `json:"priority"`
}

// Publisher delivers in_app notifications over Redis pub/sub. Connected
// frontends subscribe to the channel of the user they serve.
type Publisher struct {
	client        PubSub
	prefix        string
	requireListen bool
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithChannelPrefix replaces the default "notifyq" channel prefix.
func WithChannelPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithRequireSubscriber makes Send fail with ErrNoSubscribers when nobody
// received the message, so the queue retries it later.
func WithRequireSubscriber() PublisherOption {
	return func(p *Publisher) {
		p.requireListen = true
	}
}

// NewPublisher creates an in_app publisher.
func NewPublisher(client PubSub, opts ...PublisherOption) (*Publisher, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	p := &Publisher{client: client, prefix: "notifyq"}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ChannelName returns the pub/sub channel for a record:
// {prefix}:{tenant_id}:{user_id}, or the recipient when there is no user.
func (p *Publisher) ChannelName(rec notifyq.Record) string {
	target := rec.Recipient
	if rec.UserID != nil {
		target = rec.UserID.String()
	}
	return p.prefix + ":" + rec.TenantID.String() + ":" + target
}

// Channel implements dispatch.Sender
func (p *Publisher) Channel() notifyq.Channel {
	return notifyq.ChannelInApp
}

// Send implements dispatch.Sender
func (p *Publisher) Send(ctx context.Context, rec notifyq.Record) error {
	if rec.Channel != notifyq.ChannelInApp {
		return fmt.Errorf("%w: got %s", ErrUnsupportedChannel, rec.Channel)
	}

	payload, err := json.Marshal(InAppMessage{
		ID:           rec.ID,
		TenantID:     rec.TenantID,
		UserID:       rec.UserID,
		Recipient:    rec.Recipient,
		Subject:      rec.Subject,
		Body:         rec.Body,
		TemplateID:   rec.TemplateID,
		TemplateData: rec.TemplateData,
		Metadata:     rec.Metadata,
		Priority:     rec.Priority,
	})
	if err != nil {
		return fmt.Errorf("encode in_app message: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.ChannelName(rec), payload).Result()
	if err != nil {
		return errors.Join(errors.New("redis publish failed"), err)
	}
	if receivers == 0 && p.requireListen {
		return ErrNoSubscribers
	}
	return nil
}
