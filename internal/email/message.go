package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"strings"
	"sync"
	texttmpl "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Template names
const (
	TemplateWelcome              = "welcome"
	TemplateOnboardingInvite     = "onboarding_invite"
	TemplateProtocolAssigned     = "protocol_assigned"
	TemplateAppointmentReminder  = "appointment_reminder"
	TemplateAppointmentCancelled = "appointment_cancelled"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// contextData is what every template receives.
type contextData struct {
	FrontendBaseURL string
	Data            interface{}
}

type parsed struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

// Renderer turns a named template and its data into a Message.
type Renderer struct {
	frontendURL string

	mu    sync.Mutex
	cache map[string]*parsed
}

func NewRenderer(frontendURL string) *Renderer {
	return &Renderer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		cache:       make(map[string]*parsed),
	}
}

func (r *Renderer) load(name string) (*parsed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.cache[name]; ok {
		return p, nil
	}
	text, err := texttmpl.New(name).Option("missingkey=error").
		ParseFS(templateFS, "templates/_base.txt", "templates/"+name+".txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse text template %s: %w", name, err)
	}
	html, err := htmltmpl.New(name).Option("missingkey=error").
		ParseFS(templateFS, "templates/_base.gohtml", "templates/"+name+".gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to parse html template %s: %w", name, err)
	}
	p := &parsed{text: text, html: html}
	r.cache[name] = p
	return p, nil
}

// Render builds the subject, text and HTML bodies for name.
func (r *Renderer) Render(name, to, toName string, data interface{}) (*Message, error) {
	p, err := r.load(name)
	if err != nil {
		return nil, err
	}
	ctx := contextData{FrontendBaseURL: r.frontendURL, Data: data}

	var subject, text, html bytes.Buffer
	if err := p.text.ExecuteTemplate(&subject, "subject", ctx); err != nil {
		return nil, fmt.Errorf("failed to render subject for %s: %w", name, err)
	}
	if err := p.text.ExecuteTemplate(&text, "base", ctx); err != nil {
		return nil, fmt.Errorf("failed to render text for %s: %w", name, err)
	}
	if err := p.html.ExecuteTemplate(&html, "base", ctx); err != nil {
		return nil, fmt.Errorf("failed to render html for %s: %w", name, err)
	}
	return &Message{
		To:      to,
		ToName:  toName,
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()),
		HTML:    html.String(),
	}, nil
}
