package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"gopkg.in/gomail.v2"

	"wapulse/internal/models"
)

type EmailService interface {
	SendOTPEmail(ctx context.Context, to, code string, purpose models.OTPPurpose) error
	SendPasswordResetEmail(ctx context.Context, to, link string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendTeamInviteEmail(ctx context.Context, to, workspaceName, role string) error
}

type emailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewEmailService returns a gomail-backed sender. With no SMTP host it
// returns a sender that only logs.
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	if smtpHost == "" {
		return logEmailService{}
	}
	return &emailService{
		dialer: gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword),
		from:   fromEmail,
	}
}

func (s *emailService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send %q email: %w", subject, err)
	}
	return nil
}

func (s *emailService) SendOTPEmail(ctx context.Context, to, code string, purpose models.OTPPurpose) error {
	body := fmt.Sprintf(`
		<h3>Your verification code</h3>
		<p>Use <strong>%s</strong> to continue. The code expires in 5 minutes.</p>
		<p>If you did not request it, you can ignore this email.</p>
	`, html.EscapeString(code))
	return s.send(ctx, to, subjectFor(purpose), body)
}

func (s *emailService) SendPasswordResetEmail(ctx context.Context, to, link string) error {
	body := fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>We received a request to reset the password for your account.</p>
		<p><a href="%s">Reset your password</a>. The link expires in 15 minutes.</p>
		<p>If you did not request this change, you can ignore this email.</p>
	`, html.EscapeString(link))
	return s.send(ctx, to, "Password reset request", body)
}

func (s *emailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(`
		<h2>Welcome to WaPulse, %s!</h2>
		<p>Your account and workspace are ready. Connect your WhatsApp number to start messaging.</p>
		<p>Best regards,<br>The WaPulse Team</p>
	`, html.EscapeString(name))
	return s.send(ctx, to, "Welcome to WaPulse!", body)
}

func (s *emailService) SendTeamInviteEmail(ctx context.Context, to, workspaceName, role string) error {
	body := fmt.Sprintf(`
		<h3>You were added to %s</h3>
		<p>You now have the <strong>%s</strong> role. Sign in to get started.</p>
	`, html.EscapeString(workspaceName), html.EscapeString(role))
	return s.send(ctx, to, "You were added to a workspace", body)
}

func subjectFor(purpose models.OTPPurpose) string {
	switch purpose {
	case models.PurposeSignup:
		return "Confirm your WaPulse signup"
	case models.PurposeVerifyContact:
		return "Verify your email address"
	default:
		return "Your WaPulse code"
	}
}

type logEmailService struct{}

func (logEmailService) SendOTPEmail(_ context.Context, to, _ string, purpose models.OTPPurpose) error {
	slog.Info("[email][dry-run] otp", "to", to, "purpose", purpose)
	return nil
}

func (logEmailService) SendPasswordResetEmail(_ context.Context, to, _ string) error {
	slog.Info("[email][dry-run] password reset", "to", to)
	return nil
}

func (logEmailService) SendWelcomeEmail(_ context.Context, to, _ string) error {
	slog.Info("[email][dry-run] welcome", "to", to)
	return nil
}

func (logEmailService) SendTeamInviteEmail(_ context.Context, to, workspace, role string) error {
	slog.Info("[email][dry-run] team invite", "to", to, "workspace", workspace, "role", role)
	return nil
}
