package service

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/logger"

	"gopkg.in/gomail.v2"
)

// Mailer delivers transactional HTML mail.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when no SMTP
// host is configured.
func NewMailer(cfg config.MailConfig) Mailer {
	if cfg.Host == "" {
		logger.Warning("SMTP host not configured, emails will be logged instead of sent")
		return LogMailer{}
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	logger.Infof("Email sent to %s: %s", to, subject)
	return nil
}

// LogMailer records that a mail would have been sent. The body carries
// credentials and reset links, so it is never logged.
type LogMailer struct{}

func (LogMailer) Send(to, subject, htmlBody string) error {
	logger.Infof("Email to %s not sent, SMTP is not configured: %s", to, subject)
	return nil
}

var credentialsMail = template.Must(template.New("credentials").Parse(`
<h1>Account Registration Successful</h1>
<p>Dear {{.Name}},</p>
<p>Your account has been created successfully. Here are your login details:</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Password:</strong> {{.Password}}</p>
<p>Please change your password after logging in.</p>
<p>Best regards,<br/>Admin Team</p>
`))

var resetMail = template.Must(template.New("reset").Parse(`
<p>A password reset was requested for your account.</p>
<p><a href="{{.Link}}">Click here to reset your password</a>. The link expires in {{.Expiry}}.</p>
<p>If you did not request this, you can ignore this email.</p>
`))

func renderMail(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
