package email

import "log/slog"

const (
	sendGridHost = "smtp.sendgrid.net"
	gmailHost    = "smtp.gmail.com"
	submission   = 587
)

// Config holds every credential set a transport can be built from. Which one
// is used is decided once, by NewTransport.
type Config struct {
	From string

	SendGridAPIKey string

	AccountUser        string
	AccountAppPassword string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	ResendAPIKey string
}

// NewTransport picks the first configured backend in this order: SendGrid API
// key, mail account + app password, generic SMTP host, Resend API key. With
// none configured it returns a LogSender.
func NewTransport(cfg Config, logger *slog.Logger) Sender {
	switch {
	case cfg.SendGridAPIKey != "":
		return NewSMTPSender("sendgrid", sendGridHost, submission, "apikey", cfg.SendGridAPIKey, cfg.From)
	case cfg.AccountUser != "" && cfg.AccountAppPassword != "":
		from := cfg.From
		if from == "" {
			from = cfg.AccountUser
		}
		return NewSMTPSender("gmail", gmailHost, submission, cfg.AccountUser, cfg.AccountAppPassword, from)
	case cfg.SMTPHost != "" && cfg.SMTPPort != 0 && cfg.SMTPUser != "" && cfg.SMTPPass != "":
		return NewSMTPSender("smtp", cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.From)
	case cfg.ResendAPIKey != "":
		return NewResendSender(cfg.ResendAPIKey, cfg.From)
	default:
		return NewLogSender(logger)
	}
}
