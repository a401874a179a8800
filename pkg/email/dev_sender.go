package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DevSender is the EmailSender used when Postmark is not configured. Each
// email becomes a pair of files in dir: <stem>.html with the body and
// <stem>.json with everything else, so templates can be eyeballed locally.
type DevSender struct {
	dir string
	now func() time.Time
}

// NewDevSender writes into dir, creating it on first send.
func NewDevSender(dir string) EmailSender {
	return &DevSender{dir: dir, now: time.Now}
}

type devEnvelope struct {
	Timestamp    time.Time         `json:"timestamp"`
	SendTo       string            `json:"send_to"`
	Subject      string            `json:"subject,omitempty"`
	Tag          string            `json:"tag,omitempty"`
	TemplateID   string            `json:"template_id,omitempty"`
	TemplateData map[string]any    `json:"template_data,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (d *DevSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToSendEmail, err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrFailedToSendEmail, d.dir, err)
	}

	now := d.now()
	stem := filepath.Join(d.dir, fileStem(now, params))

	envelope, err := json.MarshalIndent(devEnvelope{
		Timestamp:    now.UTC(),
		SendTo:       params.SendTo,
		Subject:      params.Subject,
		Tag:          params.Tag,
		TemplateID:   params.TemplateID,
		TemplateData: params.TemplateData,
		Metadata:     params.Metadata,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %w", ErrFailedToSendEmail, err)
	}

	for ext, body := range map[string][]byte{".html": []byte(params.BodyHTML), ".json": envelope} {
		if err := os.WriteFile(stem+ext, body, 0o644); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrFailedToSendEmail, stem+ext, err)
		}
	}
	return nil
}

// fileStem is <timestamp>_<tag|subject|template>[_<notification id>].
func fileStem(now time.Time, p SendEmailParams) string {
	label := p.Tag
	for _, alt := range []string{p.Subject, p.TemplateID} {
		if label == "" {
			label = alt
		}
	}
	stem := now.Format("2006_01_02_150405") + "_" + safeName(label)
	if id := p.Metadata[MetadataNotificationID]; id != "" {
		stem += "_" + safeName(id)
	}
	return stem
}

// safeName lowercases s, turns spaces into underscores and keeps only
// [a-z0-9._-]. The result is at most 100 bytes and never empty.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return -1
	}, s)
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "email"
	}
	return s
}
