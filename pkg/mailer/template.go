// pkg/mailer/template.go
package mailer

import (
	"fmt"
	htmltmpl "html/template"
	"strings"
	texttmpl "text/template"
)

// LoginEmailData is what account templates may reference.
type LoginEmailData struct {
	Account string // tenant display name
	Link    string // one-time login URL
	Pixel   string // open-tracking image URL
}

const defaultHTMLTemplate = `<html><body>
<p>Click the link below to sign in to {{.Account}}:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not request this email you can safely ignore it.</p>
<img src="{{.Pixel}}" width="1" height="1" alt="">
</body></html>`

const defaultTextTemplate = `Click the link below to sign in to {{.Account}}:

{{.Link}}

If you did not request this email you can safely ignore it.`

// RenderLoginEmail fills the account's HTML and text templates (or the
// defaults) with the login link. Template parse errors fall back to the
// defaults rather than blocking a login.
func RenderLoginEmail(htmlTemplate, textTemplate string, data LoginEmailData) (html string, text string, err error) {
	if htmlTemplate == "" {
		htmlTemplate = defaultHTMLTemplate
	}
	if textTemplate == "" {
		textTemplate = defaultTextTemplate
	}

	html, herr := renderHTML(htmlTemplate, data)
	if herr != nil {
		html, err = renderHTML(defaultHTMLTemplate, data)
		if err != nil {
			return "", "", fmt.Errorf("render login email: %w", err)
		}
	}
	text, terr := renderText(textTemplate, data)
	if terr != nil {
		text, err = renderText(defaultTextTemplate, data)
		if err != nil {
			return "", "", fmt.Errorf("render login email: %w", err)
		}
	}
	return html, text, nil
}

func renderHTML(tmpl string, data LoginEmailData) (string, error) {
	t, err := htmltmpl.New("login").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func renderText(tmpl string, data LoginEmailData) (string, error) {
	t, err := texttmpl.New("login").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
