package email

import (
	"context"
	"errors"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

// Metadata keys attached to every outgoing message so provider webhooks can be
// matched back to a record.
const (
	MetadataNotificationID = "notification_id"
	MetadataTenantID       = "tenant_id"
)

// MetadataTagKey is the record metadata key whose string value becomes the email tag.
const MetadataTagKey = "tag"

// ChannelSender delivers email records through an EmailSender.
type ChannelSender struct {
	sender EmailSender
}

// NewChannelSender wraps sender so it can be registered with a dispatch worker.
func NewChannelSender(sender EmailSender) (*ChannelSender, error) {
	if sender == nil {
		return nil, errors.New("email: sender cannot be nil")
	}
	return &ChannelSender{sender: sender}, nil
}

// Channel implements dispatch.Sender
func (s *ChannelSender) Channel() notifyq.Channel {
	return notifyq.ChannelEmail
}

// Send implements dispatch.Sender. The record body is sent as HTML.
func (s *ChannelSender) Send(ctx context.Context, rec notifyq.Record) error {
	return s.sender.SendEmail(ctx, ParamsFromRecord(rec))
}

// ParamsFromRecord maps a queued record onto email parameters.
func ParamsFromRecord(rec notifyq.Record) SendEmailParams {
	params := SendEmailParams{
		SendTo:       rec.Recipient,
		Subject:      rec.Subject,
		BodyHTML:     rec.Body,
		TemplateID:   rec.TemplateID,
		TemplateData: rec.TemplateData,
		Metadata: map[string]string{
			MetadataNotificationID: rec.ID.String(),
			MetadataTenantID:       rec.TenantID.String(),
		},
	}
	if tag, ok := rec.Metadata[MetadataTagKey].(string); ok {
		params.Tag = tag
	}
	return params
}
