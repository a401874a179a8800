package notifyq

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the transport a notification is delivered through.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Channels lists every supported channel in a stable order.
var Channels = []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp}

// Valid reports whether c is one of the supported channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

func (c Channel) String() string {
	return string(c)
}

// Status is the delivery state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in a stable order.
var Statuses = []Status{StatusPending, StatusSending, StatusSent, StatusFailed, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSending, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Name implements statemachine.State.
func (s Status) Name() string {
	return string(s)
}

func (s Status) String() string {
	return string(s)
}

// Purgeable reports whether records in this status may be removed by retention cleanup.
// Failed records are kept so they stay visible to whatever surfaces delivery failures.
func (s Status) Purgeable() bool {
	return s == StatusSent || s == StatusCancelled
}

// Priority is accepted on enqueue and persisted (0-100, higher is more important).
// Claim ordering does not consume it yet.
type Priority int8

const (
	PriorityMin     Priority = 0
	PriorityLow     Priority = 25
	PriorityMedium  Priority = 50
	PriorityHigh    Priority = 75
	PriorityMax     Priority = 100
	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is within valid range
func (p Priority) Valid() bool {
	return p >= PriorityMin && p <= PriorityMax
}

const (
	// DefaultMaxAttempts is used when an enqueue request does not set MaxAttempts.
	DefaultMaxAttempts = 3

	// MaxAttemptsLimit caps MaxAttempts so a poisoned record cannot retry forever.
	MaxAttemptsLimit = 25
)

// Record is a single queued notification and its delivery state.
type Record struct {
	ID           uuid.UUID      `json:"id" bson:"_id"`
	TenantID     uuid.UUID      `json:"tenant_id" bson:"tenant_id"`
	UserID       *uuid.UUID     `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Channel      Channel        `json:"channel" bson:"channel"`
	Recipient    string         `json:"recipient" bson:"recipient"`
	Subject      string         `json:"subject,omitempty" bson:"subject,omitempty"`
	Body         string         `json:"body" bson:"body"`
	TemplateID   string         `json:"template_id,omitempty" bson:"template_id,omitempty"`
	TemplateData map[string]any `json:"template_data,omitempty" bson:"template_data,omitempty"`
	Priority     Priority       `json:"priority" bson:"priority"`
	Status       Status         `json:"status" bson:"status"`
	Attempts     int            `json:"attempts" bson:"attempts"`
	MaxAttempts  int            `json:"max_attempts" bson:"max_attempts"`
	ErrorMessage *string        `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ScheduledFor time.Time      `json:"scheduled_for" bson:"scheduled_for"`
	SentAt       *time.Time     `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updated_at"`
	Metadata     map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// ChannelStats is the per-channel breakdown returned by GetStats.
type ChannelStats struct {
	Total   int64 `json:"total"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// Stats holds rolling-window counts for one tenant.
type Stats struct {
	TenantID  uuid.UUID                `json:"tenant_id"`
	Window    time.Duration            `json:"window"`
	Total     int64                    `json:"total"`
	ByStatus  map[Status]int64         `json:"by_status"`
	ByChannel map[Channel]ChannelStats `json:"by_channel"`
}

// NewStats returns zero-filled stats with every status and channel key present.
func NewStats(tenantID uuid.UUID, window time.Duration) *Stats {
	s := &Stats{
		TenantID:  tenantID,
		Window:    window,
		ByStatus:  make(map[Status]int64, len(Statuses)),
		ByChannel: make(map[Channel]ChannelStats, len(Channels)),
	}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, ch := range Channels {
		s.ByChannel[ch] = ChannelStats{}
	}
	return s
}

// Add accounts n records with the given channel and status.
// Stores that aggregate with GROUP BY feed their rows through it.
func (s *Stats) Add(ch Channel, st Status, n int64) {
	s.Total += n
	s.ByStatus[st] += n

	cs := s.ByChannel[ch]
	cs.Total += n
	switch st {
	case StatusSent:
		cs.Sent += n
	case StatusFailed:
		cs.Failed += n
	case StatusPending:
		cs.Pending += n
	}
	s.ByChannel[ch] = cs
}
