package email

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mrz1836/postmark"
)

type postmarkClient struct {
	api     *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkClient returns an EmailSender backed by Postmark's
// transactional API. Replies go to the support address when set.
func NewPostmarkClient(cfg Config) (EmailSender, error) {
	if err := cfg.validatePostmark(); err != nil {
		return nil, err
	}

	api := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	if cfg.PostmarkBaseURL != "" {
		api.BaseURL = cfg.PostmarkBaseURL
	}
	return &postmarkClient{api: api, from: cfg.SenderEmail, replyTo: cfg.SupportEmail}, nil
}

// MustNewPostmarkClient is NewPostmarkClient that panics on invalid config.
func MustNewPostmarkClient(cfg Config) EmailSender {
	client, err := NewPostmarkClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c Config) validatePostmark() error {
	var problem string
	switch {
	case c.PostmarkServerToken == "":
		problem = "PostmarkServerToken is required"
	case c.SenderEmail == "":
		problem = "SenderEmail is required"
	case !emailRegex.MatchString(c.SenderEmail):
		problem = "SenderEmail must be a valid email address"
	case c.SupportEmail != "" && !emailRegex.MatchString(c.SupportEmail):
		problem = "SupportEmail must be a valid email address"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, problem)
}

// SendEmail sends params through the template endpoint when TemplateID is
// set, treating numeric ids as template ids and anything else as an alias.
func (c *postmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	var (
		resp postmark.EmailResponse
		err  error
	)
	if params.TemplateID != "" {
		resp, err = c.api.SendTemplatedEmail(ctx, c.templated(params))
	} else {
		resp, err = c.api.SendEmail(ctx, c.plain(params))
	}
	switch {
	case err != nil:
		return errors.Join(ErrFailedToSendEmail, err)
	case resp.ErrorCode > 0:
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

func (c *postmarkClient) plain(p SendEmailParams) postmark.Email {
	return postmark.Email{
		From:       c.from,
		ReplyTo:    c.replyTo,
		To:         p.SendTo,
		Subject:    p.Subject,
		Tag:        p.Tag,
		HTMLBody:   p.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
		Metadata:   p.Metadata,
	}
}

func (c *postmarkClient) templated(p SendEmailParams) postmark.TemplatedEmail {
	msg := postmark.TemplatedEmail{
		From:          c.from,
		ReplyTo:       c.replyTo,
		To:            p.SendTo,
		Tag:           p.Tag,
		TemplateModel: p.TemplateData,
		TrackOpens:    true,
		Metadata:      templateMetadata(p.Metadata),
	}
	if id, err := strconv.ParseInt(p.TemplateID, 10, 64); err == nil {
		msg.TemplateID = id
	} else {
		msg.TemplateAlias = p.TemplateID
	}
	return msg
}

// templateMetadata widens metadata to the map type of the template endpoint.
func templateMetadata(md map[string]string) map[string]any {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
