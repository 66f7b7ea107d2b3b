package notification

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"kitportal_backend/platform/config"
	"kitportal_backend/platform/logger"
)

// Sender delivers rendered operations emails. Implementations must be safe
// for concurrent use.
type Sender interface {
	SendKitStatusEmail(ctx context.Context, toEmail, leadID, stage, trackingNumber string, occurredAt time.Time) error
	SendDuplicateAlertEmail(ctx context.Context, toEmail, mbi, leadID, relatedLeadID string) error
	SendShippingExceptionEmail(ctx context.Context, toEmail, trackingNumber, code, description string) error
}

// SMTPSender delivers via a direct SMTP connection using go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendKitStatusEmail(ctx context.Context, toEmail, leadID, stage, trackingNumber string, occurredAt time.Time) error {
	var subject, heading string
	switch stage {
	case "shipped":
		subject = fmt.Sprintf(subjectKitShipped, shortID(leadID))
		heading = "Test kit shipped"
	case "delivered":
		subject = fmt.Sprintf(subjectKitDelivered, shortID(leadID))
		heading = "Test kit delivered to patient"
	case "completed":
		subject = fmt.Sprintf(subjectKitCompleted, shortID(leadID))
		heading = "Sample back at the lab"
	default:
		return fmt.Errorf("unknown kit status stage %q", stage)
	}

	lines := []string{
		fmt.Sprintf("Lead %s reached stage %s at %s.", leadID, heading, occurredAt.Format(time.RFC1123)),
	}
	if trackingNumber != "" {
		lines = append(lines, fmt.Sprintf("Tracking number: %s", trackingNumber))
	}

	content, err := renderEmail(emailData{Title: subject, Heading: heading, Lines: lines})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendDuplicateAlertEmail(ctx context.Context, toEmail, mbi, leadID, relatedLeadID string) error {
	masked := maskMBI(mbi)
	subject := fmt.Sprintf(subjectDuplicateAlertFmt, masked)
	lines := []string{
		fmt.Sprintf("A duplicate submission was flagged for MBI %s.", masked),
		fmt.Sprintf("Flagged lead: %s", leadID),
	}
	if relatedLeadID != "" {
		lines = append(lines, fmt.Sprintf("Canonical (earliest) lead: %s", relatedLeadID))
	}
	lines = append(lines, "Review the alert in the dashboard and acknowledge or mark the lead as DUPE.")

	content, err := renderEmail(emailData{Title: subject, Heading: "Duplicate submission flagged", Lines: lines})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

func (s *SMTPSender) SendShippingExceptionEmail(ctx context.Context, toEmail, trackingNumber, code, description string) error {
	subject := fmt.Sprintf(subjectShippingException, trackingNumber)
	lines := []string{
		fmt.Sprintf("The carrier reported a delivery problem on tracking number %s.", trackingNumber),
		fmt.Sprintf("Status code: %s", code),
	}
	if description != "" {
		lines = append(lines, fmt.Sprintf("Carrier description: %s", description))
	}

	content, err := renderEmail(emailData{Title: subject, Heading: "Shipping exception", Lines: lines})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// LogSender logs instead of sending. Used when EMAIL_ENABLED is false so
// local environments exercise the full outbox path without an SMTP server.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendKitStatusEmail(_ context.Context, toEmail, leadID, stage, trackingNumber string, occurredAt time.Time) error {
	s.log.Info("email suppressed (kit status)",
		"to", toEmail, "lead_id", leadID, "stage", stage,
		"tracking_number", trackingNumber, "occurred_at", occurredAt)
	return nil
}

func (s *LogSender) SendDuplicateAlertEmail(_ context.Context, toEmail, mbi, leadID, relatedLeadID string) error {
	s.log.Info("email suppressed (duplicate alert)",
		"to", toEmail, "mbi", maskMBI(mbi), "lead_id", leadID, "related_lead_id", relatedLeadID)
	return nil
}

func (s *LogSender) SendShippingExceptionEmail(_ context.Context, toEmail, trackingNumber, code, description string) error {
	s.log.Info("email suppressed (shipping exception)",
		"to", toEmail, "tracking_number", trackingNumber, "code", code, "description", description)
	return nil
}
