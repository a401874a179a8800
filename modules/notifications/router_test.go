package notifications_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyq/modules/notifications"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func newAPI(t *testing.T) (*httptest.Server, *notifyq.Queue) {
	t.Helper()
	q, err := notifyq.NewQueue(notifyq.NewMemoryStorage())
	require.NoError(t, err)
	srv := httptest.NewServer(notifications.Router(q))
	t.Cleanup(srv.Close)
	return srv, q
}

func do(t *testing.T, method, url, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func enqueueBody(tenant uuid.UUID, channel string) string {
	return `{"tenant_id":"` + tenant.String() + `","channel":"` + channel + `","recipient":"user@example.com","subject":"Hi","body":"<p>Hello</p>","metadata":{"campaign":"spring"}}`
}

func TestRouter_EnqueueAndGet(t *testing.T) {
	t.Parallel()
	srv, _ := newAPI(t)
	tenant := uuid.New()

	resp, env := do(t, http.MethodPost, srv.URL+"/notifications", enqueueBody(tenant, "email"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created notifications.EnqueueResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEqual(t, uuid.Nil, created.ID)

	resp, env = do(t, http.MethodGet, srv.URL+"/notifications/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec notifyq.Record
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, created.ID, rec.ID)
	assert.Equal(t, tenant, rec.TenantID)
	assert.Equal(t, notifyq.StatusPending, rec.Status)
	assert.Equal(t, "<p>Hello</p>", rec.Body)
	assert.Equal(t, map[string]any{"campaign": "spring"}, rec.Metadata)
	assert.Equal(t, notifyq.DefaultMaxAttempts, rec.MaxAttempts)
}

func TestRouter_EnqueueErrors(t *testing.T) {
	t.Parallel()
	srv, _ := newAPI(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"unsupported channel", enqueueBody(uuid.New(), "fax"), http.StatusUnprocessableEntity, "validation_error"},
		{"missing tenant", enqueueBody(uuid.Nil, "sms"), http.StatusUnprocessableEntity, "validation_error"},
		{"malformed json", `{"tenant_id":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"tenant":"x"}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, env := do(t, http.MethodPost, srv.URL+"/notifications", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}

	resp, env := do(t, http.MethodPost, srv.URL+"/notifications", enqueueBody(uuid.New(), "fax"))
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, env.Error.Details, "channel")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/notifications", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	plain, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = plain.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, plain.StatusCode)
}

func TestRouter_Get(t *testing.T) {
	t.Parallel()
	srv, _ := newAPI(t)

	resp, env := do(t, http.MethodGet, srv.URL+"/notifications/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", env.Error.Code)

	resp, env = do(t, http.MethodGet, srv.URL+"/notifications/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad_request", env.Error.Code)
}

func TestRouter_Cancel(t *testing.T) {
	t.Parallel()
	srv, q := newAPI(t)
	ctx := context.Background()
	tenant := uuid.New()

	pending, err := q.Enqueue(ctx, notifyq.EnqueueRequest{TenantID: tenant, Channel: notifyq.ChannelSMS, Recipient: "+15550100", Body: "code 1"})
	require.NoError(t, err)

	resp, _ := do(t, http.MethodPost, srv.URL+"/notifications/"+pending.String()+"/cancel", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/notifications/"+pending.String()+"/cancel", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "cancelling twice is a no-op")

	rec, err := q.Get(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, notifyq.StatusCancelled, rec.Status)

	inFlight, err := q.Enqueue(ctx, notifyq.EnqueueRequest{TenantID: tenant, Channel: notifyq.ChannelPush, Recipient: "device", Body: "ping"})
	require.NoError(t, err)
	claimed, err := q.ClaimDue(ctx, 10, notifyq.WithClaimChannels(notifyq.ChannelPush))
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	resp, env := do(t, http.MethodPost, srv.URL+"/notifications/"+inFlight.String()+"/cancel", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", env.Error.Code)

	resp, _ = do(t, http.MethodPost, srv.URL+"/notifications/"+uuid.NewString()+"/cancel", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_Stats(t *testing.T) {
	t.Parallel()
	srv, q := newAPI(t)
	ctx := context.Background()
	tenant := uuid.New()

	for range 3 {
		_, err := q.Enqueue(ctx, notifyq.EnqueueRequest{TenantID: tenant, Channel: notifyq.ChannelEmail, Recipient: "a@example.com", Body: "x"})
		require.NoError(t, err)
	}
	_, err := q.Enqueue(ctx, notifyq.EnqueueRequest{TenantID: uuid.New(), Channel: notifyq.ChannelEmail, Recipient: "b@example.com", Body: "x"})
	require.NoError(t, err)

	resp, env := do(t, http.MethodGet, srv.URL+"/tenants/"+tenant.String()+"/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats notifyq.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.ByChannel[notifyq.ChannelEmail].Pending)
	assert.Equal(t, int64(0), stats.ByChannel[notifyq.ChannelInApp].Total, "every channel is present")
	assert.Len(t, stats.ByStatus, 5)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, req notifyq.EnqueueRequest) (uuid.UUID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockQueue) Get(ctx context.Context, id uuid.UUID) (*notifyq.Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*notifyq.Record)
	return rec, args.Error(1)
}

func (m *mockQueue) Cancel(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockQueue) GetStats(ctx context.Context, tenantID uuid.UUID) (*notifyq.Stats, error) {
	args := m.Called(ctx, tenantID)
	stats, _ := args.Get(0).(*notifyq.Stats)
	return stats, args.Error(1)
}

func TestRouter_StoreUnavailable(t *testing.T) {
	t.Parallel()

	q := &mockQueue{}
	q.On("GetStats", mock.Anything, mock.Anything).Return(nil, notifyq.ErrStoreRead).Once()
	q.On("Enqueue", mock.Anything, mock.Anything).Return(uuid.Nil, notifyq.ErrStoreWrite).Once()

	srv := httptest.NewServer(notifications.Router(q))
	defer srv.Close()

	resp, env := do(t, http.MethodGet, srv.URL+"/tenants/"+uuid.NewString()+"/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "service_unavailable", env.Error.Code)

	resp, _ = do(t, http.MethodPost, srv.URL+"/notifications", enqueueBody(uuid.New(), "email"))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	q.AssertExpectations(t)
}
