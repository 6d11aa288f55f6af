package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
)

const maxRemoteAttachmentBytes = 25 << 20

// Message is a fully rendered email ready for a transport.
type Message struct {
	From        string
	ReplyTo     string
	To          []string
	Cc          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []ResolvedAttachment
}

// Ack is a transport's confirmation that a message was accepted.
type Ack struct {
	MessageID string   `json:"messageId"`
	Transport string   `json:"transport"`
	Accepted  []string `json:"accepted"`
}

// Mailer delivers one message. Failures are *errs.ApiErr values matching
// errs.ErrDelivery.
type Mailer interface {
	Name() string
	Send(ctx context.Context, msg *Message) (*Ack, error)
}

func validateMessage(transport string, msg *Message) error {
	if msg == nil || len(msg.To) == 0 {
		return errs.NewDeliveryError(transport, errs.ErrNoRecipient.Error(), errs.ErrNoRecipient)
	}
	if msg.From == "" {
		return errs.NewDeliveryError(transport, "sender address is empty", nil)
	}
	return nil
}

func readLocalAttachment(att ResolvedAttachment) ([]byte, error) {
	content, err := os.ReadFile(att.Source)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", att.Filename, err)
	}
	return content, nil
}

// attachmentFetcher downloads remote attachments for transports that cannot
// pass a URL through.
type attachmentFetcher struct {
	client *http.Client
}

func newAttachmentFetcher() *attachmentFetcher {
	return &attachmentFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *attachmentFetcher) fetch(ctx context.Context, att ResolvedAttachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.Source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", att.Source, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", att.Source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", att.Source, resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", att.Source, err)
	}
	if len(content) > maxRemoteAttachmentBytes {
		return nil, fmt.Errorf("fetch %s: attachment larger than %d bytes", att.Source, maxRemoteAttachmentBytes)
	}
	return content, nil
}

func allRecipients(msg *Message) []string {
	out := make([]string, 0, len(msg.To)+len(msg.Cc))
	out = append(out, msg.To...)
	return append(out, msg.Cc...)
}
