package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	texttemplate "text/template"
)

// Site identifies the public host that links point at.
type Site struct {
	Domain   string
	Protocol string
}

func (s Site) BaseURL() string {
	protocol := s.Protocol
	if protocol == "" {
		protocol = "https"
	}
	return protocol + "://" + s.Domain
}

// kind pairs the HTML and plain-text renderings of one email.
type kind struct {
	name string
	html *template.Template
	text *texttemplate.Template
}

var (
	passwordResetEmail = kind{
		name: "password_reset",
		html: template.Must(template.New("password_reset").Parse(
			`<p>Hi {{.Name}},</p>
<p>You requested a password reset for your account on {{.Domain}}.</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not request this, you can ignore this email.</p>`)),
		text: texttemplate.Must(texttemplate.New("password_reset").Parse(
			`Hi {{.Name}},

You requested a password reset for your account on {{.Domain}}.

{{.Link}}

If you did not request this, you can ignore this email.
`)),
	}

	validationEmail = kind{
		name: "account_validation",
		html: template.Must(template.New("account_validation").Parse(
			`<p>Hi {{.Name}},</p>
<p>Please confirm your email address for {{.Domain}}:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>`)),
		text: texttemplate.Must(texttemplate.New("account_validation").Parse(
			`Hi {{.Name}},

Please confirm your email address for {{.Domain}}:

{{.Link}}
`)),
	}
)

type templateData struct {
	Name   string
	Domain string
	Link   string
}

// Notifier renders and sends the account emails.
type Notifier struct {
	sender          Sender
	resetSubject    string
	validateSubject string
}

// NewNotifier; empty subjects fall back to "<domain> password reset" and
// "<domain> account validate".
func NewNotifier(sender Sender, resetSubject, validateSubject string) *Notifier {
	return &Notifier{
		sender:          sender,
		resetSubject:    resetSubject,
		validateSubject: validateSubject,
	}
}

func (n *Notifier) SendPasswordReset(ctx context.Context, site Site, to, name, uid, token string) error {
	subject := n.resetSubject
	if subject == "" {
		subject = site.Domain + " password reset"
	}
	link := site.BaseURL() + "/auth/password_reset/confirm/" + uid + "/" + token
	return n.send(ctx, passwordResetEmail, to, subject, templateData{Name: name, Domain: site.Domain, Link: link})
}

func (n *Notifier) SendValidation(ctx context.Context, site Site, to, name, token string) error {
	subject := n.validateSubject
	if subject == "" {
		subject = site.Domain + " account validate"
	}
	link := site.BaseURL() + "/verify_email/" + token
	return n.send(ctx, validationEmail, to, subject, templateData{Name: name, Domain: site.Domain, Link: link})
}

func (n *Notifier) send(ctx context.Context, k kind, to, subject string, data templateData) error {
	var html, text bytes.Buffer
	if err := k.html.Execute(&html, data); err != nil {
		return fmt.Errorf("render %s: %w", k.name, err)
	}
	if err := k.text.Execute(&text, data); err != nil {
		return fmt.Errorf("render %s text: %w", k.name, err)
	}

	m := Message{To: to, Subject: subject, HTML: html.String(), Text: text.String(), Kind: k.name}
	if err := n.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("send %s: %w", k.name, err)
	}
	return nil
}
