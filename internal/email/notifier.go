package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
)

const magicLinkSubject = "Your Layoff Proof sign-in link"

// Notifier sends transactional email. Transport failures are logged and
// reported as false; they never propagate as errors or panics.
type Notifier struct {
	sender Sender
	logger *slog.Logger
}

func NewNotifier(sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		logger: logger.With("component", "notifier", "transport", sender.Transport()),
	}
}

func (n *Notifier) SendEmail(ctx context.Context, to, subject, text, htmlBody string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "email transport panicked", "to", to, "panic", r)
			ok = false
		}
		outcome := "sent"
		if !ok {
			outcome = "failed"
		}
		metrics.EmailsTotal.WithLabelValues(n.sender.Transport(), outcome).Inc()
	}()

	err := n.sender.Send(ctx, Message{To: to, Subject: subject, Text: text, HTML: htmlBody})
	if err != nil {
		n.logger.ErrorContext(ctx, "send email", "to", to, "subject", subject, "error", err)
		return false
	}
	return true
}

// SendMagicLink emails a sign-in link together with its expiry notice.
func (n *Notifier) SendMagicLink(ctx context.Context, to, link string) bool {
	minutes := int(domain.MagicLinkTTL.Minutes())

	text := fmt.Sprintf(
		"Click the link below to sign in to Layoff Proof:\n\n%s\n\n"+
			"This link expires in %d minutes and can only be used once.\n"+
			"If you did not request it, you can ignore this email.\n",
		link, minutes,
	)
	escaped := html.EscapeString(link)
	body := fmt.Sprintf(
		`<p>Click the link below to sign in to Layoff Proof:</p>`+
			`<p><a href="%s">Sign in</a></p>`+
			`<p>This link expires in %d minutes and can only be used once.</p>`+
			`<p>If you did not request it, you can ignore this email.</p>`+
			`<p style="color:#888">%s</p>`,
		escaped, minutes, escaped,
	)
	return n.SendEmail(ctx, to, magicLinkSubject, text, body)
}
