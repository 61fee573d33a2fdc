package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/pixvest/backend/internal/config"
)

// EmailService handles sending emails. All sends are fire-and-forget from
// the caller's perspective: failures are logged by the caller and never
// roll back the financial effect that triggered them.
type EmailService struct {
	cfg config.SMTPConfig
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SendTemplate sends an email built from a simple template with
// {{variable}} placeholders.
func (s *EmailService) SendTemplate(to, subject, template string, variables map[string]string) error {
	body := template
	for key, value := range variables {
		body = strings.ReplaceAll(body, "{{"+key+"}}", value)
	}
	return s.sendEmail(to, subject, body)
}

// SendCommissionEmail notifies a referrer about a commission credit
func (s *EmailService) SendCommissionEmail(to, username, amount string, level int) error {
	subject := "You earned a referral commission"
	template := `
	<html>
	<body>
		<h2>Hello {{username}},</h2>
		<p>A level {{level}} referral in your network just generated a commission of R$ {{amount}}.</p>
		<p>The amount is already available in your balance.</p>
	</body>
	</html>
	`
	return s.SendTemplate(to, subject, template, map[string]string{
		"username": username,
		"amount":   amount,
		"level":    fmt.Sprintf("%d", level),
	})
}

// SendWithdrawalStatusEmail notifies a user about a withdrawal status change
func (s *EmailService) SendWithdrawalStatusEmail(to, username, status, amount string) error {
	subject := "Withdrawal update"
	template := `
	<html>
	<body>
		<h2>Hello {{username}},</h2>
		<p>Your withdrawal of R$ {{amount}} is now <strong>{{status}}</strong>.</p>
	</body>
	</html>
	`
	return s.SendTemplate(to, subject, template, map[string]string{
		"username": username,
		"status":   status,
		"amount":   amount,
	})
}

// sendEmail sends an email via SMTP
func (s *EmailService) sendEmail(to, subject, body string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	headers := make(map[string]string)
	headers["From"] = s.cfg.FromEmail
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=UTF-8"

	var message strings.Builder
	for key, value := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", key, value))
	}
	message.WriteString("\r\n" + body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	addr := s.cfg.Host + ":" + s.cfg.Port

	if err := smtp.SendMail(addr, auth, s.cfg.FromEmail, []string{to}, []byte(message.String())); err != nil {
		return fmt.Errorf("error sending email: %w", err)
	}
	return nil
}
