package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const smtpTransportName = "smtp"

type SMTPConfig struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS; otherwise STARTTLS when offered
	Username string
	Password string
	Timeout  time.Duration
}

func SMTPConfigFromConfig(cfg map[string]string) SMTPConfig {
	return SMTPConfig{
		Host:     config.GetString(cfg, "SMTP_HOST", ""),
		Port:     config.GetInt(cfg, "SMTP_PORT", 587),
		Secure:   config.GetBool(cfg, "SMTP_SECURE", false),
		Username: config.GetString(cfg, "SMTP_USER", ""),
		Password: config.GetString(cfg, "SMTP_PASS", ""),
		Timeout:  time.Duration(config.GetInt(cfg, "SMTP_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// SMTPTransport keeps one authenticated SMTP session open and reuses it for
// every message. The session is probed with NOOP before use and re-dialed
// when it is gone.
type SMTPTransport struct {
	cfg     SMTPConfig
	fetcher *attachmentFetcher
	logger  zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	client *smtp.Client
}

func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{
		cfg:     cfg,
		fetcher: newAttachmentFetcher(),
		logger:  log.With().Str("service", "smtpTransport").Str("host", cfg.Host).Logger(),
	}
}

func (t *SMTPTransport) Name() string {
	return smtpTransportName
}

// Verify opens the session eagerly so configuration problems show up at
// startup. A failure is logged and returned; Send will retry the dial.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.sessionLocked(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("Mailer verify warning")
		return err
	}
	t.logger.Info().Msg("Mailer ready")
	return nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) (*Ack, error) {
	if err := validateMessage(smtpTransportName, msg); err != nil {
		return nil, err
	}

	envelopeFrom, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, errs.NewDeliveryError(smtpTransportName, "invalid sender address", err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), addressDomain(envelopeFrom.Address))
	raw, err := t.build(ctx, msg, messageID)
	if err != nil {
		return nil, errs.NewDeliveryError(smtpTransportName, "failed to build message", err)
	}

	recipients := allRecipients(msg)

	t.mu.Lock()
	defer t.mu.Unlock()

	client, err := t.sessionLocked(ctx)
	if err != nil {
		return nil, errs.NewDeliveryError(smtpTransportName, "", err)
	}

	if err := t.transmit(ctx, client, envelopeFrom.Address, recipients, raw); err != nil {
		t.dropLocked()
		return nil, errs.NewDeliveryError(smtpTransportName, "", err)
	}

	t.logger.Info().Str("messageId", messageID).Int("recipients", len(recipients)).Msg("Message accepted")
	return &Ack{MessageID: messageID, Transport: smtpTransportName, Accepted: recipients}, nil
}

// Close ends the session if one is open.
func (t *SMTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Quit()
	t.client, t.conn = nil, nil
	return err
}

func (t *SMTPTransport) build(ctx context.Context, msg *Message, messageID string) ([]byte, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, err
	}

	builder := enmime.Builder().
		From(from.Name, from.Address).
		ToAddrs(parseAddressList(msg.To)).
		Subject(msg.Subject).
		Date(time.Now()).
		Header("Message-Id", messageID).
		Text([]byte(msg.Text)).
		HTML([]byte(msg.HTML))

	if len(msg.Cc) > 0 {
		builder = builder.CCAddrs(parseAddressList(msg.Cc))
	}
	if msg.ReplyTo != "" {
		if replyTo, err := mail.ParseAddress(msg.ReplyTo); err == nil {
			builder = builder.ReplyTo(replyTo.Name, replyTo.Address)
		}
	}

	for _, att := range msg.Attachments {
		var content []byte
		if att.Remote {
			content, err = t.fetcher.fetch(ctx, att)
		} else {
			content, err = readLocalAttachment(att)
		}
		if err != nil {
			t.logger.Warn().Err(err).Str("attachment", att.Filename).Msg("Dropping attachment")
			continue
		}
		builder = builder.AddAttachment(content, att.ContentType, att.Filename)
	}

	part, err := builder.Build()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *SMTPTransport) transmit(ctx context.Context, client *smtp.Client, from string, recipients []string, raw []byte) error {
	deadline := time.Now().Add(t.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if t.conn != nil {
		_ = t.conn.SetDeadline(deadline)
		defer t.conn.SetDeadline(time.Time{})
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, rcpt := range recipients {
		addr := rcpt
		if parsed, err := mail.ParseAddress(rcpt); err == nil {
			addr = parsed.Address
		}
		if err := client.Rcpt(addr); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", addr, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end of data: %w", err)
	}
	return nil
}

// sessionLocked returns the live session, dialing a new one when there is
// none or the NOOP probe fails. Callers hold t.mu.
func (t *SMTPTransport) sessionLocked(ctx context.Context) (*smtp.Client, error) {
	if t.client != nil {
		_ = t.conn.SetDeadline(time.Now().Add(t.cfg.Timeout))
		err := t.client.Noop()
		_ = t.conn.SetDeadline(time.Time{})
		if err == nil {
			return t.client, nil
		}
		t.logger.Debug().Msg("SMTP session stale, reconnecting")
		t.dropLocked()
	}

	if t.cfg.Host == "" {
		return nil, errs.ErrTransportOffline
	}

	conn, client, err := t.dial(ctx)
	if err != nil {
		return nil, err
	}
	t.conn, t.client = conn, client
	return client, nil
}

func (t *SMTPTransport) dial(ctx context.Context) (net.Conn, *smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if t.cfg.Secure {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Now().Add(t.cfg.Timeout))

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if !t.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if t.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
			if err := client.Auth(auth); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := client.Noop(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("smtp noop: %w", err)
	}
	// Idle sessions must not inherit the handshake deadline.
	_ = conn.SetDeadline(time.Time{})
	return conn, client, nil
}

func (t *SMTPTransport) dropLocked() {
	if t.client != nil {
		_ = t.client.Close()
	}
	t.client, t.conn = nil, nil
}

func parseAddressList(raw []string) []mail.Address {
	out := make([]mail.Address, 0, len(raw))
	for _, r := range raw {
		if addr, err := mail.ParseAddress(r); err == nil {
			out = append(out, *addr)
			continue
		}
		out = append(out, mail.Address{Address: strings.TrimSpace(r)})
	}
	return out
}

func addressDomain(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
