package notifyq

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnqueueRequest carries everything a producer supplies for a new notification.
// Optional fields use their zero value to mean "not set".
type EnqueueRequest struct {
	TenantID     uuid.UUID      `json:"tenant_id"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
	Channel      Channel        `json:"channel"`
	Recipient    string         `json:"recipient"`
	Subject      string         `json:"subject,omitempty"`
	Body         string         `json:"body"`
	TemplateID   string         `json:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty"`
	Priority     *Priority      `json:"priority,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	MaxAttempts  int            `json:"max_attempts,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate checks required fields and ranges. Recipient format is the sender's concern.
func (r EnqueueRequest) Validate() error {
	if r.TenantID == uuid.Nil {
		return &ValidationError{Field: "tenant_id", Reason: "is required"}
	}
	if r.Channel == "" {
		return &ValidationError{Field: "channel", Reason: "is required"}
	}
	if !r.Channel.Valid() {
		return &ValidationError{Field: "channel", Reason: "unsupported channel " + string(r.Channel)}
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return &ValidationError{Field: "recipient", Reason: "is required"}
	}
	if strings.TrimSpace(r.Body) == "" {
		return &ValidationError{Field: "body", Reason: "is required"}
	}
	if r.Priority != nil && !r.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "must be between 0 and 100"}
	}
	if r.MaxAttempts < 0 || r.MaxAttempts > MaxAttemptsLimit {
		return &ValidationError{Field: "max_attempts", Reason: "must be between 1 and 25"}
	}
	return nil
}
