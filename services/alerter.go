package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const maxAlertBodyRunes = 300

type smsCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioAlerter texts the team when a new inquiry arrives.
type TwilioAlerter struct {
	api    smsCreator
	from   string
	to     []string
	logger zerolog.Logger
}

// NewTwilioAlerterFromConfig returns nil when TWILIO_* or INQUIRY_ALERT_SMS_TO
// are not configured.
func NewTwilioAlerterFromConfig(cfg map[string]string) *TwilioAlerter {
	sid := config.GetString(cfg, "TWILIO_ACCOUNT_SID", "")
	token := config.GetString(cfg, "TWILIO_AUTH_TOKEN", "")
	from := config.GetString(cfg, "TWILIO_FROM_NUMBER", "")
	to := config.GetList(cfg, "INQUIRY_ALERT_SMS_TO", nil)
	if sid == "" || token == "" || from == "" || len(to) == 0 {
		return nil
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: sid,
		Password: token,
	})
	return newTwilioAlerter(client.Api, from, to)
}

func newTwilioAlerter(api smsCreator, from string, to []string) *TwilioAlerter {
	return &TwilioAlerter{
		api:    api,
		from:   from,
		to:     to,
		logger: log.With().Str("service", "twilioAlerter").Logger(),
	}
}

// Alert sends one SMS per configured number and returns the first error.
// The Twilio client does not take a context; ctx only stops the loop early.
func (a *TwilioAlerter) Alert(ctx context.Context, inquiry Inquiry) error {
	body := alertBody(inquiry)

	var firstErr error
	for _, to := range a.to {
		if err := ctx.Err(); err != nil {
			return err
		}

		params := &openapi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(a.from)
		params.SetBody(body)

		resp, err := a.api.CreateMessage(params)
		if err != nil {
			a.logger.Warn().Err(err).Str("to", to).Msg("Failed to send SMS alert")
			if firstErr == nil {
				firstErr = fmt.Errorf("sms to %s: %w", to, err)
			}
			continue
		}
		if resp != nil && resp.Sid != nil {
			a.logger.Debug().Str("sid", *resp.Sid).Msg("SMS alert sent")
		}
	}
	return firstErr
}

func alertBody(inquiry Inquiry) string {
	who := inquiry.FromName
	if who == "" {
		who = inquiry.FromEmail
	}

	var b strings.Builder
	fmt.Fprintf(&b, "New inquiry from %s <%s>", who, inquiry.FromEmail)
	if inquiry.Company != "" {
		fmt.Fprintf(&b, " (%s)", inquiry.Company)
	}
	if inquiry.Subject != "" {
		fmt.Fprintf(&b, ": %s", inquiry.Subject)
	}

	runes := []rune(b.String())
	if len(runes) > maxAlertBodyRunes {
		return string(runes[:maxAlertBodyRunes])
	}
	return string(runes)
}
