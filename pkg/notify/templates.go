package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// CredentialData fills the new-account templates.
type CredentialData struct {
	AppName  string
	FullName string
	RoleName string
	Username string
	Password string
	LoginURL string
}

const credentialSubject = "Your %s account is ready"

var credentialText = texttemplate.Must(texttemplate.New("credential_text").Parse(
	`Hello {{.FullName}},

An account has been created for you at {{.AppName}}.

Role: {{.RoleName}}
ID: {{.Username}}
Password: {{.Password}}
{{if .LoginURL}}
Sign in at {{.LoginURL}} and change your password after your first login.
{{else}}
Please change your password after your first login.
{{end}}`))

var credentialHTML = htmltemplate.Must(htmltemplate.New("credential_html").Parse(
	`<p>Hello {{.FullName}},</p>
<p>An account has been created for you at <strong>{{.AppName}}</strong>.</p>
<table>
<tr><td>Role</td><td>{{.RoleName}}</td></tr>
<tr><td>ID</td><td><code>{{.Username}}</code></td></tr>
<tr><td>Password</td><td><code>{{.Password}}</code></td></tr>
</table>
{{if .LoginURL}}<p><a href="{{.LoginURL}}">Sign in</a> and change your password after your first login.</p>{{else}}<p>Please change your password after your first login.</p>{{end}}`))

var credentialSMS = texttemplate.Must(texttemplate.New("credential_sms").Parse(
	`Hello {{.FullName}}, your {{.AppName}} credentials:
Role: {{.RoleName}}
ID: {{.Username}}
Password: {{.Password}}`))

// CredentialEmail renders the new-account email for data addressed to toAddr.
func CredentialEmail(toAddr string, data CredentialData) (Email, error) {
	text, err := render(credentialText, data)
	if err != nil {
		return Email{}, err
	}
	html := &bytes.Buffer{}
	if err := credentialHTML.Execute(html, data); err != nil {
		return Email{}, fmt.Errorf("render credential html: %w", err)
	}
	return Email{
		ToName:  data.FullName,
		ToAddr:  toAddr,
		Subject: fmt.Sprintf(credentialSubject, data.AppName),
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// CredentialSMS renders the new-account text message for data.
func CredentialSMS(to string, data CredentialData) (SMS, error) {
	body, err := render(credentialSMS, data)
	if err != nil {
		return SMS{}, err
	}
	return SMS{To: to, Body: body}, nil
}

func render(t *texttemplate.Template, data CredentialData) (string, error) {
	buf := &strings.Builder{}
	if err := t.Execute(buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
