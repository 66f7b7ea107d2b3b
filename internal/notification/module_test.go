package notification

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"kitportal_backend/internal/notification/outbox"
	"kitportal_backend/platform/logger"
)

type testEmailConfig struct{}

func (testEmailConfig) GetEmailEnabled() bool       { return true }
func (testEmailConfig) GetSMTPHost() string         { return "smtp.example.com" }
func (testEmailConfig) GetSMTPPort() int            { return 587 }
func (testEmailConfig) GetSMTPUsername() string     { return "" }
func (testEmailConfig) GetSMTPPassword() string     { return "" }
func (testEmailConfig) GetEmailFromName() string    { return "Kit Portal" }
func (testEmailConfig) GetEmailFromAddress() string { return "noreply@example.com" }
func (testEmailConfig) GetOpsNotifyAddress() string { return "ops@example.com" }

type testSender struct {
	kitStatusCalls []string // recipient:stage
	duplicateCalls []string // recipient:mbi
	exceptionCalls []string // recipient:code
}

func (s *testSender) SendKitStatusEmail(_ context.Context, toEmail, _, stage, _ string, _ time.Time) error {
	s.kitStatusCalls = append(s.kitStatusCalls, toEmail+":"+stage)
	return nil
}

func (s *testSender) SendDuplicateAlertEmail(_ context.Context, toEmail, mbi, _, _ string) error {
	s.duplicateCalls = append(s.duplicateCalls, toEmail+":"+mbi)
	return nil
}

func (s *testSender) SendShippingExceptionEmail(_ context.Context, toEmail, _, code, _ string) error {
	s.exceptionCalls = append(s.exceptionCalls, toEmail+":"+code)
	return nil
}

func testModule(sender Sender) *Module {
	return &Module{
		sender: sender,
		cfg:    testEmailConfig{},
		log:    logger.New("development"),
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestDeliverRoutesKitStatusToOpsAddress(t *testing.T) {
	sender := &testSender{}
	m := testModule(sender)

	rec := outbox.Record{
		Template: templateKitStatus,
		Payload: mustJSON(t, kitStatusOutboxPayload{
			LeadID:     "9f0d2a5e-0000-0000-0000-000000000001",
			Stage:      "shipped",
			OccurredAt: time.Now(),
		}),
	}
	if err := m.deliver(context.Background(), rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.kitStatusCalls) != 1 || sender.kitStatusCalls[0] != "ops@example.com:shipped" {
		t.Fatalf("kit status calls = %v", sender.kitStatusCalls)
	}
}

func TestDeliverRoutesDuplicateAlert(t *testing.T) {
	sender := &testSender{}
	m := testModule(sender)

	rec := outbox.Record{
		Template: templateDuplicateAlert,
		Payload:  mustJSON(t, duplicateAlertOutboxPayload{MBI: "9AB3XY7MK21", LeadID: "x"}),
	}
	if err := m.deliver(context.Background(), rec); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(sender.duplicateCalls) != 1 {
		t.Fatalf("duplicate calls = %v", sender.duplicateCalls)
	}
}

func TestDeliverRejectsUnknownTemplate(t *testing.T) {
	m := testModule(&testSender{})

	rec := outbox.Record{Template: "carrier_pigeon", Payload: json.RawMessage(`{}`)}
	if err := m.deliver(context.Background(), rec); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestMaskMBIKeepsLastFour(t *testing.T) {
	if got := maskMBI("9AB3XY7MK21"); got != "*******MK21" {
		t.Errorf("maskMBI = %q", got)
	}
	if got := maskMBI("AB12"); got != "AB12" {
		t.Errorf("short maskMBI = %q", got)
	}
}

func TestRenderEmailEscapesHTML(t *testing.T) {
	content, err := renderEmail(emailData{
		Title:   "t",
		Heading: "h",
		Lines:   []string{`<script>alert("x")</script>`},
	})
	if err != nil {
		t.Fatalf("renderEmail: %v", err)
	}
	if strings.Contains(content, "<script>") {
		t.Fatal("carrier description not escaped")
	}
}
