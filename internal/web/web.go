// Package web renders the portal's HTML pages and notification emails from
// embedded templates.
package web

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	texttemplate "text/template"

	"ddrc/internal/vitalrecords/forms"
	"ddrc/internal/vitalrecords/models"
)

//go:embed templates
var files embed.FS

// StepInfo is the wizard progress line.
type StepInfo struct {
	Name   string
	Number int
	Total  int
}

type Detail struct {
	Label string
	Value string
}

// Page is the data every page template receives.
type Page struct {
	PageTitle   string
	LoggedIn    bool
	PreviousURL string
	Step        *StepInfo
	Form        *forms.Form
	SubmitLabel string

	Request       *models.Request
	TypeLabel     string
	FirstSentence string
	CountyDisplay string
	Details       []Detail
}

// EmailData feeds the package notification templates.
type EmailData struct {
	NumberOfCopies int
	LogoURL        string
	EmailAddress   string
	RequestType    string
}

type Renderer struct {
	pages     map[string]*htmltemplate.Template
	emailText *texttemplate.Template
	emailHTML *htmltemplate.Template
}

// NewRenderer parses every page with the shared layout.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*htmltemplate.Template)}
	pages, err := fs.Glob(files, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}
	for _, p := range pages {
		name := strings.TrimSuffix(path.Base(p), ".html")
		t, err := htmltemplate.New(name).ParseFS(files, "templates/layout.html", p)
		if err != nil {
			return nil, fmt.Errorf("parse page %s: %w", name, err)
		}
		r.pages[name] = t
	}
	if r.emailText, err = texttemplate.ParseFS(files, "templates/email/package.txt"); err != nil {
		return nil, fmt.Errorf("parse text email: %w", err)
	}
	if r.emailHTML, err = htmltemplate.ParseFS(files, "templates/email/package.html"); err != nil {
		return nil, fmt.Errorf("parse html email: %w", err)
	}
	return r, nil
}

// Render writes page with status. Output is buffered so a template error
// never leaves a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// Email renders the plain text and HTML bodies of the package notification.
func (r *Renderer) Email(data EmailData) (string, string, error) {
	var text, html bytes.Buffer
	if err := r.emailText.ExecuteTemplate(&text, "text", data); err != nil {
		return "", "", fmt.Errorf("render text email: %w", err)
	}
	if err := r.emailHTML.ExecuteTemplate(&html, "html", data); err != nil {
		return "", "", fmt.Errorf("render html email: %w", err)
	}
	return text.String(), html.String(), nil
}
