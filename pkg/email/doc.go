// Package email delivers email notifications through Postmark, or to disk
// during development.
//
// EmailSender is the provider boundary. PostmarkClient sends through the
// Postmark API: plain HTML messages go to the email endpoint, and messages
// with a TemplateID go to the template endpoint with TemplateData as the
// model. DevSender writes an HTML and a JSON file per message instead.
//
// ChannelSender adapts any EmailSender to the dispatch worker:
//
//	var sender email.EmailSender
//	if cfg.UsePostmark() {
//		sender, err = email.NewPostmarkClient(cfg)
//	} else {
//		sender = email.NewDevSender(cfg.DevOutputDir)
//	}
//	ch, err := email.NewChannelSender(sender)
//	worker.RegisterSender(ch)
//
// Every message carries the notification and tenant ids as provider
// metadata, and a "tag" string in the record metadata becomes the email tag.
//
// # Errors
//
// ErrInvalidConfig is returned by constructors, ErrInvalidParams before
// anything is sent, and ErrFailedToSendEmail when the provider rejects the
// message. All of them work with errors.Is.
package email
