package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
)

type pair struct {
	subject *texttemplate.Template
	body    *template.Template
}

var templates = map[Template]pair{
	TemplateReceiptReady: {
		subject: texttemplate.Must(texttemplate.New("receipt_ready_subject").Option("missingkey=zero").Parse(
			`Your donation receipt{{with .receipt_no}} #{{.}}{{end}} from {{.from_name}}`)),
		body: template.Must(template.New("receipt_ready").Option("missingkey=zero").Parse(receiptReadyHTML)),
	},
	TemplateDonationApproved: {
		subject: texttemplate.Must(texttemplate.New("donation_approved_subject").Option("missingkey=zero").Parse(
			`Thank you for supporting {{.campaign}}`)),
		body: template.Must(template.New("donation_approved").Option("missingkey=zero").Parse(donationApprovedHTML)),
	},
}

// Render returns the subject and HTML body for tpl. Map keys missing from p
// render as empty strings.
func Render(tpl Template, p Params) (subject, body string, err error) {
	t, ok := templates[tpl]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", tpl)
	}
	data := map[string]string(p)

	var sb strings.Builder
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	var bb bytes.Buffer
	if err := t.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return strings.TrimSpace(sb.String()), bb.String(), nil
}

// ─── HTML TEMPLATES ───────────────────────────────────────────────────────────

const receiptReadyHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Thank you for your donation</h2>
  <p>Dear {{.donor_name}},</p>
  <p>Your donation of <strong>Rs. {{.amount}}</strong> towards
  <strong>{{.campaign}}</strong> has been approved. Your receipt{{with .receipt_no}} (No. {{.}}){{end}}
  is ready to download.</p>
  <p style="margin: 32px 0;">
    <a href="{{.receipt_url}}"
       style="background: #14532d; color: #ffffff; padding: 12px 24px;
              border-radius: 6px; text-decoration: none; font-weight: 600;">
      Download Receipt
    </a>
  </p>
  <p style="color: #6b7280; font-size: 14px;">
    If the button above does not work, copy this URL:<br>
    <a href="{{.receipt_url}}" style="color: #6b7280;">{{.receipt_url}}</a>
  </p>
  {{with .message}}<blockquote style="color: #374151; border-left: 3px solid #e5e7eb; padding-left: 12px;">{{.}}</blockquote>{{end}}
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">{{.from_name}}</p>
</body>
</html>`

const donationApprovedHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: sans-serif; color: #1a1a1a; max-width: 560px; margin: 0 auto; padding: 24px;">
  <h2 style="margin-bottom: 8px;">Thank you for your donation</h2>
  <p>Dear {{.donor_name}},</p>
  <p>Your donation of <strong>Rs. {{.amount}}</strong> towards
  <strong>{{.campaign}}</strong> has been approved.</p>
  <p style="color: #6b7280; font-size: 14px;">
    Your receipt will be shared separately. Reply to this email if you need it sooner.
  </p>
  {{with .message}}<blockquote style="color: #374151; border-left: 3px solid #e5e7eb; padding-left: 12px;">{{.}}</blockquote>{{end}}
  <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 32px 0;">
  <p style="color: #9ca3af; font-size: 12px;">{{.from_name}}</p>
</body>
</html>`
