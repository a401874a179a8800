package webhook

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// GatewayConfig points the sms and push channels at HTTP gateways.
// An empty URL leaves the channel without a sender.
type GatewayConfig struct {
	SMSURL  string        `env:"GATEWAY_SMS_URL"`
	PushURL string        `env:"GATEWAY_PUSH_URL"`
	Secret  string        `env:"GATEWAY_SIGNING_SECRET"`      // Secret signs every request body when set.
	Timeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	CircuitFailureThreshold int           `env:"GATEWAY_CIRCUIT_FAILURES" envDefault:"5"` // Zero disables the circuit breaker.
	CircuitRecoveryTimeout  time.Duration `env:"GATEWAY_CIRCUIT_RECOVERY" envDefault:"30s"`
}

// Options turns the config into send options. Each call creates its own
// circuit breaker, so call it once per gateway.
func (c GatewayConfig) Options() []SendOption {
	opts := []SendOption{WithTimeout(c.Timeout)}
	if c.Secret != "" {
		opts = append(opts, WithSignature(c.Secret))
	}
	if c.CircuitFailureThreshold > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(c.CircuitFailureThreshold, 1, c.CircuitRecoveryTimeout)))
	}
	return opts
}

// Headers set on every gateway request. The notification id lets the gateway
// drop duplicates, since a record can be delivered more than once.
const (
	HeaderNotificationID = "X-Notification-ID"
	HeaderTenantID       = "X-Tenant-ID"
	HeaderAttempt        = "X-Delivery-Attempt"
)

// GatewayMessage is the JSON body posted to a gateway.
type GatewayMessage struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	Channel      notifyq.Channel `json:"channel"`
	Recipient    string          `json:"recipient"`
	Subject      string          `json:"subject,omitempty"`
	Body         string          `json:"body"`
	TemplateID   string          `json:"template_id,omitempty"`
	TemplateData map[string]any  `json:"template_data,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Attempt      int             `json:"attempt"`
}

// NewGatewayMessage builds the body for a record. Attempt is 1-based.
func NewGatewayMessage(rec notifyq.Record) GatewayMessage {
	return GatewayMessage{
		ID:           rec.ID,
		TenantID:     rec.TenantID,
		UserID:       rec.UserID,
		Channel:      rec.Channel,
		Recipient:    rec.Recipient,
		Subject:      rec.Subject,
		Body:         rec.Body,
		TemplateID:   rec.TemplateID,
		TemplateData: rec.TemplateData,
		Metadata:     rec.Metadata,
		Attempt:      rec.Attempts + 1,
	}
}

// GatewaySender delivers records of one channel to an HTTP gateway.
type GatewaySender struct {
	channel  notifyq.Channel
	endpoint string
	client   *Client
	opts     []SendOption
}

// NewGatewaySender creates a sender for channel posting to endpoint.
func NewGatewaySender(channel notifyq.Channel, endpoint string, opts ...SendOption) (*GatewaySender, error) {
	return NewGatewaySenderWithClient(NewClient(), channel, endpoint, opts...)
}

// NewGatewaySenderWithClient is NewGatewaySender with a caller supplied Client.
func NewGatewaySenderWithClient(client *Client, channel notifyq.Channel, endpoint string, opts ...SendOption) (*GatewaySender, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChannel, channel)
	}
	if err := validateRequest(endpoint, []byte("{}")); err != nil {
		return nil, err
	}
	if client == nil {
		client = NewClient()
	}
	return &GatewaySender{
		channel:  channel,
		endpoint: endpoint,
		client:   client,
		opts:     opts,
	}, nil
}

// Channel implements dispatch.Sender
func (g *GatewaySender) Channel() notifyq.Channel {
	return g.channel
}

// Send implements dispatch.Sender
func (g *GatewaySender) Send(ctx context.Context, rec notifyq.Record) error {
	if rec.Channel != g.channel {
		return fmt.Errorf("%w: %s sender got a %s record", ErrUnsupportedChannel, g.channel, rec.Channel)
	}

	opts := append([]SendOption{
		WithHeader(HeaderNotificationID, rec.ID.String()),
		WithHeader(HeaderTenantID, rec.TenantID.String()),
		WithHeader(HeaderAttempt, strconv.Itoa(rec.Attempts+1)),
	}, g.opts...)

	return g.client.Post(ctx, g.endpoint, NewGatewayMessage(rec), opts...)
}
