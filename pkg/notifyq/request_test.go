package notifyq_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

func TestEnqueueRequest_Validate(t *testing.T) {
	t.Parallel()

	valid := func() notifyq.EnqueueRequest {
		return notifyq.EnqueueRequest{
			TenantID:  uuid.New(),
			Channel:   notifyq.ChannelSMS,
			Recipient: "+15550100",
			Body:      "Your code is 1234",
		}
	}
	prio := func(p notifyq.Priority) *notifyq.Priority { return &p }

	tests := []struct {
		name   string
		mutate func(*notifyq.EnqueueRequest)
		field  string
	}{
		{"valid", func(*notifyq.EnqueueRequest) {}, ""},
		{"missing tenant", func(r *notifyq.EnqueueRequest) { r.TenantID = uuid.Nil }, "tenant_id"},
		{"missing channel", func(r *notifyq.EnqueueRequest) { r.Channel = "" }, "channel"},
		{"unknown channel", func(r *notifyq.EnqueueRequest) { r.Channel = "pager" }, "channel"},
		{"blank recipient", func(r *notifyq.EnqueueRequest) { r.Recipient = "  " }, "recipient"},
		{"missing body", func(r *notifyq.EnqueueRequest) { r.Body = "" }, "body"},
		{"priority too high", func(r *notifyq.EnqueueRequest) { r.Priority = prio(101) }, "priority"},
		{"priority too low", func(r *notifyq.EnqueueRequest) { r.Priority = prio(-1) }, "priority"},
		{"priority bounds ok", func(r *notifyq.EnqueueRequest) { r.Priority = prio(notifyq.PriorityMax) }, ""},
		{"negative max attempts", func(r *notifyq.EnqueueRequest) { r.MaxAttempts = -1 }, "max_attempts"},
		{"max attempts over limit", func(r *notifyq.EnqueueRequest) { r.MaxAttempts = notifyq.MaxAttemptsLimit + 1 }, "max_attempts"},
		{"max attempts at limit", func(r *notifyq.EnqueueRequest) { r.MaxAttempts = notifyq.MaxAttemptsLimit }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := valid()
			tt.mutate(&req)

			err := req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var verr *notifyq.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, notifyq.ErrValidation)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestChannelAndStatus(t *testing.T) {
	t.Parallel()

	for _, ch := range notifyq.Channels {
		assert.True(t, ch.Valid(), ch.String())
	}
	assert.False(t, notifyq.Channel("fax").Valid())

	for _, st := range notifyq.Statuses {
		assert.True(t, st.Valid(), st.String())
		assert.Equal(t, st.String(), st.Name())
	}
	assert.False(t, notifyq.Status("queued").Valid())

	assert.True(t, notifyq.StatusSent.Purgeable())
	assert.True(t, notifyq.StatusCancelled.Purgeable())
	assert.False(t, notifyq.StatusFailed.Purgeable())
	assert.False(t, notifyq.StatusPending.Purgeable())
}

func TestStats_Add(t *testing.T) {
	t.Parallel()

	s := notifyq.NewStats(uuid.New(), 0)
	s.Add(notifyq.ChannelEmail, notifyq.StatusSent, 2)
	s.Add(notifyq.ChannelEmail, notifyq.StatusSending, 1)
	s.Add(notifyq.ChannelPush, notifyq.StatusFailed, 3)

	assert.Equal(t, int64(6), s.Total)
	assert.Equal(t, notifyq.ChannelStats{Total: 3, Sent: 2}, s.ByChannel[notifyq.ChannelEmail])
	assert.Equal(t, notifyq.ChannelStats{Total: 3, Failed: 3}, s.ByChannel[notifyq.ChannelPush])
	assert.Equal(t, int64(1), s.ByStatus[notifyq.StatusSending])
	assert.Equal(t, int64(0), s.ByStatus[notifyq.StatusCancelled])
}
