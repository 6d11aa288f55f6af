package services

import (
	"context"

	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/resend/resend-go/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const resendTransportName = "resend"

// emailSender is the part of the Resend client this transport uses.
type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport delivers mail through the Resend HTTP API. It holds no
// session; the API key authenticates every call.
type ResendTransport struct {
	emails emailSender
	logger zerolog.Logger
}

func NewResendTransport(apiKey string) *ResendTransport {
	return newResendTransport(resend.NewClient(apiKey).Emails)
}

func newResendTransport(emails emailSender) *ResendTransport {
	return &ResendTransport{
		emails: emails,
		logger: log.With().Str("service", "resendTransport").Logger(),
	}
}

func (t *ResendTransport) Name() string {
	return resendTransportName
}

func (t *ResendTransport) Send(ctx context.Context, msg *Message) (*Ack, error) {
	if err := validateMessage(resendTransportName, msg); err != nil {
		return nil, err
	}

	req := &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	}
	if len(msg.Cc) > 0 {
		req.Cc = msg.Cc
	}
	if attachments := t.convertAttachments(msg.Attachments); len(attachments) > 0 {
		req.Attachments = attachments
	}

	resp, err := t.emails.SendWithContext(ctx, req)
	if err != nil {
		return nil, errs.NewDeliveryError(resendTransportName, err.Error(), err)
	}

	ack := &Ack{Transport: resendTransportName, Accepted: allRecipients(msg)}
	if resp != nil {
		ack.MessageID = resp.Id
	}
	t.logger.Info().Str("emailId", ack.MessageID).Msg("Successfully sent email via Resend")
	return ack, nil
}

// convertAttachments inlines local files and passes remote ones by URL.
// Unreadable local files are dropped.
func (t *ResendTransport) convertAttachments(attachments []ResolvedAttachment) []*resend.Attachment {
	result := make([]*resend.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if a.Remote {
			result = append(result, &resend.Attachment{
				Filename:    a.Filename,
				Path:        a.Source,
				ContentType: a.ContentType,
			})
			continue
		}

		content, err := readLocalAttachment(a)
		if err != nil {
			t.logger.Warn().Err(err).Str("attachment", a.Filename).Msg("Dropping attachment")
			continue
		}
		result = append(result, &resend.Attachment{
			Filename:    a.Filename,
			Content:     content,
			ContentType: a.ContentType,
		})
	}
	return result
}
