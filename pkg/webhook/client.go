package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client posts JSON payloads to HTTP endpoints. It makes exactly one
// request per Post; retry policy belongs to the caller.
type Client struct {
	http *http.Client
}

// NewClient creates a client with a pooled transport.
func NewClient() *Client {
	return &Client{
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewClientWithHTTP creates a client around an existing *http.Client.
func NewClientWithHTTP(client *http.Client) *Client {
	if client == nil {
		return NewClient()
	}
	return &Client{http: client}
}

// Post marshals data to JSON and POSTs it to endpoint.
//
// Non-2xx responses fail with ErrPermanentFailure for 4xx codes that will
// not change on resend (everything except 408, 425 and 429) and with
// ErrTemporaryFailure otherwise.
func (c *Client) Post(ctx context.Context, endpoint string, data any, opts ...SendOption) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if err := validateRequest(endpoint, payload); err != nil {
		return err
	}

	options := newSendOptions(opts)
	if cb := options.breaker; cb != nil && !cb.Allow() {
		return ErrCircuitOpen
	}

	result, err := c.do(ctx, endpoint, payload, options)
	if options.onDelivery != nil {
		options.onDelivery(result)
	}
	if cb := options.breaker; cb != nil {
		// A 4xx rejection still means the endpoint is up.
		if err == nil || errors.Is(err, ErrPermanentFailure) {
			cb.RecordSuccess()
		} else {
			cb.RecordFailure()
		}
	}
	return err
}

func validateRequest(endpoint string, payload []byte) error {
	if endpoint == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 || string(payload) == "null" {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	var result DeliveryResult
	fail := func(err error) (DeliveryResult, error) {
		result.Duration = time.Since(start)
		result.Error = err
		return result, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidURL, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifyq-webhook/1.0")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}
	if options.secret != "" {
		sig, err := SignPayload(options.secret, payload)
		if err != nil {
			return fail(err)
		}
		sig.Apply(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Errorf("%w: %w", ErrTimeout, err))
		}
		return fail(fmt.Errorf("%w: %w", ErrTemporaryFailure, err))
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Duration = time.Since(start)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
		return result, nil
	}

	// Only a short, single-line excerpt of the body ends up in error messages.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024*64))
	msg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if excerpt := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " ")); excerpt != "" {
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		msg += ": " + excerpt
	}

	class := ErrTemporaryFailure
	if isPermanentStatus(resp.StatusCode) {
		class = ErrPermanentFailure
	}
	return fail(fmt.Errorf("%w: %s", class, msg))
}

func isPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
