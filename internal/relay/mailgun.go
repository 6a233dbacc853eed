package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aymerick/raymond"
	"github.com/mailgun/mailgun-go/v4"
)

const (
	subjectTemplate = `[{{{locale}}}] Contact from {{{name}}}{{#if topic}}: {{{topic}}}{{/if}}`
	textTemplate    = `New contact submission {{{id}}}

Name:   {{{name}}}
Email:  {{{email}}}
{{#if topic}}Topic:  {{{topic}}}
{{/if}}Locale: {{{locale}}}
Sent:   {{{submitted_at}}}

{{{message}}}
`
	htmlTemplate = `<p>New contact submission <code>{{id}}</code></p>
<ul>
<li><strong>Name:</strong> {{name}}</li>
<li><strong>Email:</strong> <a href="mailto:{{email}}">{{email}}</a></li>
{{#if topic}}<li><strong>Topic:</strong> {{topic}}</li>
{{/if}}<li><strong>Locale:</strong> {{locale}}</li>
</ul>
<pre>{{message}}</pre>
`
)

// MailgunRelay delivers submissions as email through Mailgun.
type MailgunRelay struct {
	client  *mailgun.MailgunImpl
	from    string
	to      []string
	subject *raymond.Template
	text    *raymond.Template
	html    *raymond.Template
}

// NewMailgunRelay validates cfg and prepares the message templates.
func NewMailgunRelay(cfg Config) (*MailgunRelay, error) {
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" {
		return nil, errors.New("mailgun_domain and mailgun_api_key are required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail_from is required for the mailgun relay")
	}
	if len(cfg.To) == 0 {
		return nil, errors.New("mail_to is required for the mailgun relay")
	}
	client := mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey)
	if cfg.MailgunAPIBase != "" {
		client.SetAPIBase(cfg.MailgunAPIBase)
	}
	if cfg.HTTPTimeout > 0 {
		client.SetClient(&http.Client{Timeout: cfg.HTTPTimeout})
	}

	r := &MailgunRelay{client: client, from: cfg.From, to: cfg.To}
	var err error
	if r.subject, err = raymond.Parse(subjectTemplate); err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	if r.text, err = raymond.Parse(textTemplate); err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	if r.html, err = raymond.Parse(htmlTemplate); err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}
	return r, nil
}

func (r *MailgunRelay) Name() string { return "mailgun" }

// Deliver sends msg to the configured recipients with reply-to set to the
// submitter.
func (r *MailgunRelay) Deliver(ctx context.Context, msg Message) error {
	subject, text, html, err := r.Render(msg)
	if err != nil {
		return err
	}
	m := r.client.NewMessage(r.from, subject, text, r.to...)
	m.SetHtml(html)
	m.AddHeader("Reply-To", msg.Email)
	m.AddHeader("X-Folio-Submission", msg.ID)

	if _, _, err := r.client.Send(ctx, m); err != nil {
		var ue *mailgun.UnexpectedResponseError
		if errors.As(err, &ue) {
			return classifyMailgunStatus(ue.Actual, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("mailgun send: %w", ctx.Err())
		}
		return &UnreachableError{Host: "mailgun", Err: err}
	}
	return nil
}

// Render produces the subject, plain text and HTML bodies for msg.
func (r *MailgunRelay) Render(msg Message) (string, string, string, error) {
	ctx := map[string]any{
		"id":           msg.ID,
		"name":         msg.Name,
		"email":        msg.Email,
		"topic":        msg.Topic,
		"message":      msg.Message,
		"locale":       msg.Locale,
		"submitted_at": msg.SubmittedAt.UTC().Format(time.RFC3339),
	}
	subject, err := r.subject.Exec(ctx)
	if err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	text, err := r.text.Exec(ctx)
	if err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	html, err := r.html.Exec(ctx)
	if err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	return subject, text, html, nil
}

func classifyMailgunStatus(status int, err error) error {
	apiErr := &APIError{StatusCode: status, Message: err.Error()}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{APIError: apiErr}
	case status == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case status >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}
