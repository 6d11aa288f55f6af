package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultInternalRecipient = "contact@thebrightlayer.com"

// ProposalVariant selects recipients, template and transport of an inquiry.
type ProposalVariant string

const (
	// VariantProposal mails the rendered proposal to the request's to and cc
	// lists on behalf of the requester.
	VariantProposal ProposalVariant = "proposal"
	// VariantQuoteReply sends the requester an acknowledgement of their
	// quote request.
	VariantQuoteReply ProposalVariant = "quote-reply"
)

func (v ProposalVariant) SuccessMessage() string {
	if v == VariantQuoteReply {
		return "Email sent to user and internal team notified."
	}
	return "Dynamic proposal email sent."
}

type ProposalState string

const (
	StateReceived     ProposalState = "RECEIVED"
	StateValidated    ProposalState = "VALIDATED"
	StateUserMailSent ProposalState = "USER_MAIL_SENT"
	StateComplete     ProposalState = "COMPLETE"
	StateFailed       ProposalState = "FAILED"
)

// Inquiry is the decoded body of a proposal or quote request. List fields
// accept a string, a comma-separated string or an array.
type Inquiry struct {
	FromName      string     `json:"fromName"`
	FromEmail     string     `json:"fromEmail"`
	To            StringList `json:"to"`
	Cc            StringList `json:"cc"`
	Subject       string     `json:"subject"`
	RecipientName string     `json:"recipientName"`
	Intro         string     `json:"intro"`
	QuickIntro    string     `json:"quickIntro"`
	Scope         string     `json:"scope"`
	Message       string     `json:"message"`
	Highlights    StringList `json:"highlights"`
	Attachments   StringList `json:"attachments"`
	Company       string     `json:"company"`
}

// ProposalResult reports what happened to an inquiry that reached at least
// the user-mail step.
type ProposalResult struct {
	State         ProposalState `json:"state"`
	UserAck       *Ack          `json:"userAck,omitempty"`
	InternalAck   *Ack          `json:"internalAck,omitempty"`
	InternalError string        `json:"internalError,omitempty"`
	Attachments   int           `json:"attachments"`
}

// InquiryAlerter is notified after the mails for an inquiry went out.
type InquiryAlerter interface {
	Alert(ctx context.Context, inquiry Inquiry) error
}

type ProposalConfig struct {
	FromEmail          string
	FromName           string
	InternalRecipients []string
}

func ProposalConfigFromConfig(cfg map[string]string) ProposalConfig {
	return ProposalConfig{
		FromEmail:          config.GetString(cfg, "FROM_EMAIL", ""),
		FromName:           config.GetString(cfg, "FROM_NAME", ""),
		InternalRecipients: config.GetList(cfg, "INTERNAL_NOTIFY_EMAIL", nil),
	}
}

// ProposalService runs an inquiry through validation, the user mail and the
// internal notification. Only the user mail can fail the request.
type ProposalService struct {
	variant  ProposalVariant
	mailer   Mailer
	renderer *Renderer
	resolver *AttachmentResolver
	alerter  InquiryAlerter
	cfg      ProposalConfig
	logger   zerolog.Logger
}

// NewProposalService wires one variant. alerter may be nil.
func NewProposalService(variant ProposalVariant, mailer Mailer, renderer *Renderer, resolver *AttachmentResolver, alerter InquiryAlerter, cfg ProposalConfig) *ProposalService {
	return &ProposalService{
		variant:  variant,
		mailer:   mailer,
		renderer: renderer,
		resolver: resolver,
		alerter:  alerter,
		cfg:      cfg,
		logger: log.With().
			Str("service", "proposal").
			Str("variant", string(variant)).
			Str("transport", mailer.Name()).
			Logger(),
	}
}

func (s *ProposalService) Variant() ProposalVariant {
	return s.variant
}

func (s *ProposalService) Send(ctx context.Context, inquiry Inquiry) (*ProposalResult, error) {
	state := StateReceived
	fail := func(err error) (*ProposalResult, error) {
		s.logger.Debug().Str("from", string(state)).Str("to", string(StateFailed)).Err(err).Msg("Inquiry failed")
		return nil, err
	}

	inquiry = trimInquiry(inquiry)
	userRecipients, err := s.validate(inquiry)
	if err != nil {
		return fail(err)
	}
	state = s.advance(state, StateValidated)

	attachments := s.resolver.Resolve(ctx, inquiry.Attachments)

	rendered, err := s.renderUserMail(inquiry)
	if err != nil {
		return fail(errs.NewInternalErrorWithCause("Failed to render email", err))
	}

	userMsg := &Message{
		From:        s.userSender(inquiry),
		ReplyTo:     s.userReplyTo(inquiry),
		To:          userRecipients,
		Subject:     rendered.Subject,
		Text:        rendered.Text,
		HTML:        rendered.HTML,
		Attachments: attachments,
	}
	if s.variant == VariantProposal {
		userMsg.Cc = inquiry.Cc
	}

	userAck, err := s.mailer.Send(ctx, userMsg)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error sending mail to user")
		return fail(errs.NewUserDeliveryError(err))
	}
	state = s.advance(state, StateUserMailSent)

	result := &ProposalResult{UserAck: userAck, Attachments: len(attachments)}
	result.InternalAck, err = s.notifyInternal(ctx, inquiry, attachments)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to send internal notification")
		result.InternalError = err.Error()
	} else {
		s.logger.Info().Msg("Internal notification sent")
	}

	if s.alerter != nil {
		if err := s.alerter.Alert(ctx, inquiry); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to send inquiry alert")
		}
	}

	result.State = s.advance(state, StateComplete)
	return result, nil
}

func (s *ProposalService) advance(from, to ProposalState) ProposalState {
	s.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("Inquiry state")
	return to
}

// validate checks the request before anything is dispatched and returns the
// recipients of the user-facing mail.
func (s *ProposalService) validate(inquiry Inquiry) ([]string, error) {
	if !IsValidEmail(inquiry.FromEmail) {
		return nil, errs.NewValidationError("fromEmail", "User email (fromEmail) is required and must be valid.")
	}

	var recipients []string
	switch s.variant {
	case VariantQuoteReply:
		recipients = []string{inquiry.FromEmail}
	default:
		recipients = append(recipients, inquiry.To...)
		if len(recipients) == 0 {
			return nil, errs.NewValidationError("to", "At least one recipient in `to` is required")
		}
	}

	if s.cfg.FromEmail == "" {
		s.logger.Error().Msg("FROM_EMAIL missing in configuration")
		return nil, errs.NewMisconfigurationError("FROM_EMAIL")
	}
	return recipients, nil
}

func (s *ProposalService) renderUserMail(inquiry Inquiry) (RenderedEmail, error) {
	content := ProposalContent{
		Subject:    inquiry.Subject,
		Intro:      inquiry.Intro,
		QuickIntro: inquiry.QuickIntro,
		Scope:      inquiry.Scope,
		Message:    inquiry.Message,
		Highlights: inquiry.Highlights,
	}

	if s.variant == VariantQuoteReply {
		content.RecipientName = inquiry.FromName
		return s.renderer.RenderQuoteReply(content)
	}

	content.RecipientName = inquiry.RecipientName
	content.Signature = inquiry.FromName
	if content.Signature == "" {
		content.Signature = inquiry.FromEmail
	}
	return s.renderer.RenderProposal(content)
}

func (s *ProposalService) userSender(inquiry Inquiry) string {
	name := s.cfg.FromName
	switch {
	case s.variant == VariantQuoteReply:
		name = s.renderer.Branding().CompanyName
	case inquiry.FromName != "":
		name = inquiry.FromName
	}
	return formatAddress(name, s.cfg.FromEmail)
}

func (s *ProposalService) userReplyTo(inquiry Inquiry) string {
	if s.variant == VariantQuoteReply {
		return ""
	}
	return formatAddress(inquiry.FromName, inquiry.FromEmail)
}

func (s *ProposalService) notifyInternal(ctx context.Context, inquiry Inquiry, attachments []ResolvedAttachment) (*Ack, error) {
	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Filename)
	}

	rendered, err := s.renderer.RenderInternalNotification(InternalContent{
		FromName:    inquiry.FromName,
		FromEmail:   inquiry.FromEmail,
		Company:     inquiry.Company,
		Subject:     inquiry.Subject,
		Message:     inquiry.Message,
		Attachments: names,
	})
	if err != nil {
		return nil, err
	}

	ack, err := s.mailer.Send(ctx, &Message{
		From:        formatAddress("Website Inquiry", s.cfg.FromEmail),
		ReplyTo:     formatAddress(inquiry.FromName, inquiry.FromEmail),
		To:          s.internalRecipients(inquiry),
		Subject:     rendered.Subject,
		Text:        rendered.Text,
		HTML:        rendered.HTML,
		Attachments: attachments,
	})
	if err != nil {
		var apiErr *errs.ApiErr
		if errors.As(err, &apiErr) && apiErr.Details != "" {
			return nil, errors.New(apiErr.Details)
		}
		return nil, err
	}
	return ack, nil
}

// internalRecipients prefers configured addresses, then the request's to
// list, then the shared contact inbox.
func (s *ProposalService) internalRecipients(inquiry Inquiry) []string {
	switch {
	case len(s.cfg.InternalRecipients) > 0:
		return s.cfg.InternalRecipients
	case len(inquiry.To) > 0:
		return inquiry.To
	default:
		return []string{defaultInternalRecipient}
	}
}

// IsValidEmail accepts a single RFC 5322 address containing '@'.
func IsValidEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || !strings.Contains(addr, "@") {
		return false
	}
	_, err := mail.ParseAddress(addr)
	return err == nil
}

func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}

func trimInquiry(in Inquiry) Inquiry {
	in.FromName = strings.TrimSpace(in.FromName)
	in.FromEmail = strings.TrimSpace(in.FromEmail)
	in.Subject = strings.TrimSpace(in.Subject)
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	in.Intro = strings.TrimSpace(in.Intro)
	in.QuickIntro = strings.TrimSpace(in.QuickIntro)
	in.Scope = strings.TrimSpace(in.Scope)
	in.Message = strings.TrimSpace(in.Message)
	in.Company = strings.TrimSpace(in.Company)
	return in
}
