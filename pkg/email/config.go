package email

// Config holds email service configuration.
// PostmarkServerToken and PostmarkAccountToken are optional to support
// development environments where records are written to DevOutputDir instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	PostmarkBaseURL      string `env:"POSTMARK_BASE_URL"` // PostmarkBaseURL overrides the API endpoint, e.g. for a sandbox.
	DevOutputDir         string `env:"EMAIL_DEV_OUTPUT_DIR" envDefault:"./tmp/emails"`
}

// UsePostmark reports whether a Postmark server token is configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != ""
}
