package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/fenwick-labs/gatehouse/internal/utils"
)

// Mailer is the transactional-email surface the auth handlers depend on.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// SMTPMailer sends templated HTML mail over plain SMTP.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	logger   *zap.Logger
}

func NewSMTPMailer(cfg utils.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		logger:   logger,
	}
}

var _ Mailer = (*SMTPMailer)(nil)

func (m *SMTPMailer) SendWelcome(ctx context.Context, to, name string) error {
	body, err := renderWelcomeBody(name)
	if err != nil {
		return fmt.Errorf("mail: render welcome: %w", err)
	}

	if err := m.send(to, "Welcome to Gatehouse", body); err != nil {
		m.logger.Error("welcome email failed", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("mail: send welcome: %w", err)
	}

	m.logger.Info("welcome email sent", zap.String("to", to))
	return nil
}

func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	body, err := renderResetBody(resetURL)
	if err != nil {
		return fmt.Errorf("mail: render reset: %w", err)
	}

	if err := m.send(to, "Reset your password (valid for 10 minutes)", body); err != nil {
		m.logger.Error("password reset email failed", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("mail: send reset: %w", err)
	}

	m.logger.Info("password reset email sent", zap.String("to", to))
	return nil
}

func (m *SMTPMailer) send(to, subject, body string) error {
	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		m.from, to, subject, body,
	))

	addr := m.host + ":" + m.port
	return smtp.SendMail(addr, auth, m.from, []string{to}, msg)
}

var welcomeTmpl = template.Must(template.New("welcome").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Welcome, {{.Name}}!</h1>
    <p>Your account is ready. You are signed in on this device already; use your
    email and password to sign in anywhere else.</p>
    <p style="margin-top: 30px; font-size: 12px; color: #666;">If you did not create this account, reply to this email.</p>
</body>
</html>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Password reset request</h1>
    <p>Click the button below to choose a new password. The link is valid for 10 minutes.</p>
    <a href="{{.ResetURL}}" style="display: inline-block; background-color: #4F46E5; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0;">Reset Password</a>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #4F46E5;">{{.ResetURL}}</p>
    <p style="margin-top: 30px; font-size: 12px; color: #666;">If you did not request a reset, ignore this email. Your password stays unchanged.</p>
</body>
</html>
`))

func renderWelcomeBody(name string) (string, error) {
	var buf bytes.Buffer
	if err := welcomeTmpl.Execute(&buf, struct{ Name string }{Name: name}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderResetBody(resetURL string) (string, error) {
	var buf bytes.Buffer
	if err := resetTmpl.Execute(&buf, struct{ ResetURL string }{ResetURL: resetURL}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
