package notifxconsole

import (
	"context"
	"strings"

	"github.com/xtown/projecthub/pkg/logx"
	"github.com/xtown/projecthub/pkg/notifx"
)

// Provider logs emails instead of sending them. Intended for development
// and tests.
type Provider struct{}

// New creates a console email provider.
func New() *Provider {
	return &Provider{}
}

// SendEmail logs the email details.
func (p *Provider) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	logx.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
	}).Info("notifx/console: email sent (dev mode)")

	if msg.TextBody != "" {
		logx.Debugf("notifx/console: text body:\n%s", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}
	return nil
}
