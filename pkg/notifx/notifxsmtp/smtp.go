package notifxsmtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/xtown/projecthub/pkg/errx"
	"github.com/xtown/projecthub/pkg/notifx"
)

var smtpErrors = errx.NewRegistry("NOTIFX_SMTP")

var (
	ErrSendFailed = smtpErrors.Register("SEND_FAILED", errx.TypeExternal, 502, "SMTP send email failed")
)

// Provider implements notifx.EmailSender over plain SMTP with optional auth.
type Provider struct {
	addr        string
	auth        smtp.Auth
	fromAddress string
}

// New creates an SMTP email provider. If user is empty the connection is
// unauthenticated.
func New(host string, port int, user, pass, fromAddress string) *Provider {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &Provider{
		addr:        fmt.Sprintf("%s:%d", host, port),
		auth:        auth,
		fromAddress: fromAddress,
	}
}

// SendEmail sends a single email over SMTP.
func (p *Provider) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	from := msg.From
	if from == "" {
		from = p.fromAddress
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	if msg.HTMLBody != "" {
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTMLBody)
	} else {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.TextBody)
	}

	if err := smtp.SendMail(p.addr, p.auth, from, msg.To, []byte(b.String())); err != nil {
		return smtpErrors.NewWithCause(ErrSendFailed, err).
			WithDetail("to", msg.To).
			WithDetail("subject", msg.Subject)
	}
	return nil
}
