package notification

import (
	"fmt"
	"html/template"
	"strings"
)

const (
	subjectKitShipped        = "Test kit shipped — lead %s"
	subjectKitDelivered      = "Test kit delivered — lead %s"
	subjectKitCompleted      = "Sample received at lab — lead %s"
	subjectDuplicateAlertFmt = "Duplicate submission flagged for MBI %s"
	subjectShippingException = "Shipping exception on %s"
)

// emailData feeds the shared layout. Lines render as separate paragraphs.
type emailData struct {
	Title   string
	Heading string
	Lines   []string
}

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; color: #1f2937; margin: 0; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto;">
    <h2 style="color: #111827;">{{.Heading}}</h2>
    {{range .Lines}}<p style="line-height: 1.5;">{{.}}</p>
    {{end}}
    <hr style="border: none; border-top: 1px solid #e5e7eb; margin-top: 24px;">
    <p style="font-size: 12px; color: #6b7280;">This is an automated operations notification from Kit Portal.</p>
  </div>
</body>
</html>`))

func renderEmail(data emailData) (string, error) {
	var b strings.Builder
	if err := emailLayout.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return b.String(), nil
}

// maskMBI keeps only the last four characters of an MBI. Full beneficiary
// identifiers must not leave the system in email bodies.
func maskMBI(mbi string) string {
	if len(mbi) <= 4 {
		return mbi
	}
	return strings.Repeat("*", len(mbi)-4) + mbi[len(mbi)-4:]
}

// shortID renders the first uuid segment, enough to find the lead in the
// dashboard without pasting the full id into a subject line.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
