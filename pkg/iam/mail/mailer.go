package mail

import (
	"context"

	"github.com/xtown/projecthub/pkg/iam/otp"
	"github.com/xtown/projecthub/pkg/iam/user"
	"github.com/xtown/projecthub/pkg/notifx"
)

const (
	tmplOTP     = "otp"
	tmplWelcome = "welcome"
)

// Mailer renders and sends account emails through notifx.
type Mailer struct {
	client    *notifx.Client
	fromEmail string
	fromName  string
}

// New creates a Mailer and registers its templates.
func New(client *notifx.Client, fromEmail, fromName string) (*Mailer, error) {
	if err := client.RegisterTemplate(tmplOTP, otpTemplate); err != nil {
		return nil, err
	}
	if err := client.RegisterTemplate(tmplWelcome, welcomeTemplate); err != nil {
		return nil, err
	}
	return &Mailer{client: client, fromEmail: fromEmail, fromName: fromName}, nil
}

type otpTemplateData struct {
	Code    string
	Heading string
	Lead    string
}

// SendOTP delivers a verification code, worded per purpose.
func (m *Mailer) SendOTP(ctx context.Context, email, code string, purpose otp.Purpose) error {
	data := otpTemplateData{Code: code}
	var subject string

	switch purpose {
	case otp.PurposeRegistration:
		subject = "Verify your registration"
		data.Heading = "Welcome to Xtown"
		data.Lead = "Use this code to finish setting up your account:"
	case otp.PurposeAccountActivation:
		subject = "Activate your account"
		data.Heading = "Activate your account"
		data.Lead = "Use this code to activate your Xtown account:"
	case otp.PurposeForgotPassword:
		subject = "Reset your password"
		data.Heading = "Password reset"
		data.Lead = "Use this code to reset your password:"
	default:
		subject = "Your verification code"
		data.Heading = "Verification code"
		data.Lead = "Your code:"
	}

	return m.client.SendTemplatedEmail(ctx, tmplOTP, data, notifx.EmailMessage{
		From:    m.from(),
		To:      []string{email},
		Subject: subject,
	})
}

type welcomeTemplateData struct {
	Name string
}

// SendWelcome greets a freshly activated account.
func (m *Mailer) SendWelcome(ctx context.Context, u *user.User) error {
	name := u.FullName()
	if name == "" {
		name = u.Email
	}
	return m.client.SendTemplatedEmail(ctx, tmplWelcome, welcomeTemplateData{Name: name}, notifx.EmailMessage{
		From:    m.from(),
		To:      []string{u.Email},
		Subject: "Welcome to Xtown",
	})
}

func (m *Mailer) from() string {
	if m.fromName == "" {
		return m.fromEmail
	}
	return m.fromName + " <" + m.fromEmail + ">"
}

const otpTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.Heading}}</h2>
  <p>{{.Lead}}</p>
  <p style="font-size: 32px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  <p>This code expires in 10 minutes. If you did not request it, you can ignore this email.</p>
</body>
</html>`

const welcomeTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Welcome, {{.Name}}!</h2>
  <p>Your Xtown account is now active. You can sign in and open your projects from the dashboard.</p>
</body>
</html>`
