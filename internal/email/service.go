package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/redmonkez12/bookshelf/internal/config"
	"github.com/redmonkez12/bookshelf/internal/logging"
)

// sendMail is a seam for tests
var sendMail = smtp.SendMail

var passwordResetTemplate = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #0F766E;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #0F766E;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>Hi {{.Name}}, we received a request to reset the password of your {{.AppName}} account.</p>

        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #0F766E;">{{.ResetLink}}</p>

        <p style="margin-top: 30px;">If you didn't request a password reset, you can ignore this email. Your password will remain unchanged.</p>
    </div>
    <div class="footer">
        <p>This link can be used once and expires in {{.ExpiresIn}}.</p>
    </div>
</body>
</html>
`))

type Service struct {
	smtpAddr     string
	smtpHost     string
	smtpUser     string
	smtpPassword string
	fromName     string
	fromEmail    string
	baseURL      string
}

func NewService(cfg config.EmailConfig, baseURL string) *Service {
	return &Service{
		smtpAddr:     cfg.Address(),
		smtpHost:     cfg.SMTPHost,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromName:     cfg.FromName,
		fromEmail:    cfg.SMTPUser,
		baseURL:      baseURL,
	}
}

// ResetLink is the URL emailed for token
func (s *Service) ResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password/%s", s.baseURL, token)
}

// SendPasswordResetEmail sends a single-use password reset link to the user.
// It is called from a goroutine, so ctx carries only the request logger.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, name, token string, expiresIn time.Duration) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := s.renderPasswordResetEmail(name, s.ResetLink(token), expiresIn)
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.Send(ctx, toEmail, "Reset your password", body); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

// Send delivers an HTML email
func (s *Service) Send(_ context.Context, to, subject, htmlBody string) error {
	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%q <%s>", s.fromName, s.fromEmail)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, htmlBody,
	))

	return sendMail(s.smtpAddr, auth, s.fromEmail, []string{to}, msg)
}

func (s *Service) renderPasswordResetEmail(name, resetLink string, expiresIn time.Duration) (string, error) {
	var buf bytes.Buffer
	data := struct {
		AppName   string
		Name      string
		ResetLink string
		ExpiresIn string
	}{
		AppName:   s.fromName,
		Name:      name,
		ResetLink: resetLink,
		ExpiresIn: humanizeDuration(expiresIn),
	}

	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
