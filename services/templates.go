package services

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	DefaultProposalSubject   = "Moshi Moshi <> Bright Layer <> Proposal"
	DefaultQuoteReplySubject = "Thanks for reaching out! Let’s bring your vision to life 🚀"
	defaultDisplayName       = "there"
)

// Branding carries the company and business-contact details printed in
// outgoing mail signatures.
type Branding struct {
	CompanyName    string
	CompanyWebsite string
	CompanyPhone   string
	ContactName    string
	ContactPhone   string
	ContactEmail   string
	ContactWebsite string
}

// BrandingFromConfig reads COMPANY_* and BIZ_* settings with their fallbacks.
func BrandingFromConfig(cfg map[string]string) Branding {
	return Branding{
		CompanyName:    config.GetString(cfg, "COMPANY_NAME", "BrightLayer"),
		CompanyWebsite: config.GetString(cfg, "COMPANY_WEBSITE", ""),
		CompanyPhone:   config.GetString(cfg, "COMPANY_PHONE", ""),
		ContactName:    config.GetFirstString(cfg, "Business Development", "BIZ_CONTACT_NAME", "COMPANY_NAME"),
		ContactPhone:   config.GetFirstString(cfg, "", "BIZ_CONTACT_PHONE", "BIZ_PHONE"),
		ContactEmail:   config.GetFirstString(cfg, "", "BIZ_CONTACT_EMAIL", "BIZ_EMAIL", "FROM_EMAIL"),
		ContactWebsite: config.GetFirstString(cfg, "https://thebrightlayer.com", "BIZ_CONTACT_WEBSITE", "BIZ_WEBSITE", "COMPANY_SITE"),
	}
}

// ProposalContent holds the optional sections of a user-facing email. Empty
// sections are left out of both bodies.
type ProposalContent struct {
	Subject       string
	RecipientName string
	Signature     string
	Intro         string
	QuickIntro    string
	Scope         string
	Message       string
	Highlights    []string
}

// InternalContent is the team notification for a new inquiry.
type InternalContent struct {
	FromName    string
	FromEmail   string
	Company     string
	Subject     string
	Message     string
	Attachments []string
}

type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

type bodyData struct {
	ProposalContent
	DisplayName string
	MessageHTML template.HTML
	Branding    Branding
}

type internalData struct {
	InternalContent
	MessageHTML template.HTML
}

// Renderer produces the HTML and plain-text bodies of every outgoing email.
// Templates are parsed once; a Renderer is safe for concurrent use.
type Renderer struct {
	html     *template.Template
	text     *texttemplate.Template
	branding Branding
}

func NewRenderer(branding Branding) (*Renderer, error) {
	funcs := map[string]any{"join": strings.Join}

	htmlTmpl, err := template.New("html").Funcs(funcs).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTemplateRender, err)
	}
	textTmpl, err := texttemplate.New("text").Funcs(funcs).ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTemplateRender, err)
	}

	return &Renderer{html: htmlTmpl, text: textTmpl, branding: branding}, nil
}

func (r *Renderer) Branding() Branding {
	return r.branding
}

func (r *Renderer) RenderProposal(content ProposalContent) (RenderedEmail, error) {
	if content.Subject == "" {
		content.Subject = DefaultProposalSubject
	}
	return r.render("proposal", content.Subject, r.newBodyData(content))
}

// RenderQuoteReply greets the requester by first name.
func (r *Renderer) RenderQuoteReply(content ProposalContent) (RenderedEmail, error) {
	if content.Subject == "" {
		content.Subject = DefaultQuoteReplySubject
	}
	content.RecipientName = FirstName(content.RecipientName)
	return r.render("quote_reply", content.Subject, r.newBodyData(content))
}

func (r *Renderer) RenderInternalNotification(content InternalContent) (RenderedEmail, error) {
	who := strings.TrimSpace(content.FromName)
	if who == "" {
		who = content.FromEmail
	}
	data := internalData{
		InternalContent: content,
		MessageHTML:     messageHTML(content.Message),
	}
	return r.render("internal", "New inquiry: "+who, data)
}

func (r *Renderer) newBodyData(content ProposalContent) bodyData {
	name := strings.TrimSpace(content.RecipientName)
	if name == "" {
		name = defaultDisplayName
	}
	return bodyData{
		ProposalContent: content,
		DisplayName:     name,
		MessageHTML:     messageHTML(content.Message),
		Branding:        r.branding,
	}
}

func (r *Renderer) render(name, subject string, data any) (RenderedEmail, error) {
	var htmlBody, textBody bytes.Buffer
	if err := r.html.ExecuteTemplate(&htmlBody, name+".html.tmpl", data); err != nil {
		return RenderedEmail{}, fmt.Errorf("%w: %s html: %v", errs.ErrTemplateRender, name, err)
	}
	if err := r.text.ExecuteTemplate(&textBody, name+".txt.tmpl", data); err != nil {
		return RenderedEmail{}, fmt.Errorf("%w: %s text: %v", errs.ErrTemplateRender, name, err)
	}
	return RenderedEmail{
		Subject: subject,
		HTML:    htmlBody.String(),
		Text:    strings.TrimSpace(textBody.String()),
	}, nil
}

// messageHTML escapes the message and turns line breaks into <br/>.
func messageHTML(message string) template.HTML {
	if message == "" {
		return ""
	}
	escaped := html.EscapeString(strings.ReplaceAll(message, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br/>"))
}

// FirstName returns the first whitespace-separated word of a full name.
func FirstName(fullName string) string {
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
