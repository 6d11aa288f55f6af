package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendProposal_QuoteReply(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/sendMail/send-proposal", map[string]any{
		"fromName":  "Priya Sharma",
		"fromEmail": "priya@x.com",
		"message":   "Need a landing page",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody[ProposalResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Email sent to user and internal team notified.", body.Message)
	require.NotNil(t, body.Info)
	assert.Equal(t, "<msg-1@brightlayer.test>", body.Info.MessageID)
	assert.Equal(t, []string{"priya@x.com"}, body.Info.Accepted)
	assert.Equal(t, 2, env.mailer.count())
}

func TestSendProposal_Proposal(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/proposal/send-proposal", map[string]any{
		"fromEmail":  "kenji@x.com",
		"to":         "client@x.com, second@x.com",
		"highlights": []string{"Fast", "Friendly"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody[ProposalResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "Dynamic proposal email sent.", body.Message)
	assert.Nil(t, body.Info)
	assert.NotContains(t, rec.Body.String(), "info")

	require.Equal(t, 2, env.mailer.count())
	assert.Equal(t, []string{"client@x.com", "second@x.com"}, env.mailer.sent[0].To)
}

func TestSendProposal_Validation(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodPost, "/api/sendMail/send-proposal", map[string]any{"fromEmail": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "User email (fromEmail) is required and must be valid.", body.Error)
	assert.Equal(t, "fromEmail", body.Field)

	missingTo := env.do(t, http.MethodPost, "/api/proposal/send-proposal", map[string]any{"fromEmail": "a@x.com", "to": 42})
	assert.Equal(t, http.StatusBadRequest, missingTo.Code)
	assert.Equal(t, "to", decodeBody[ErrorResponse](t, missingTo).Field)

	assert.Zero(t, env.mailer.count())
}

func TestSendProposal_UserDeliveryFailure(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.mailer.failUser = true

	rec := env.do(t, http.MethodPost, "/api/sendMail/send-proposal", map[string]any{"fromEmail": "priya@x.com"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Failed to send email to user", body.Error)
	assert.Equal(t, "550 mailbox unavailable", body.Details)
	assert.Equal(t, 1, env.mailer.count())
}

func TestSendProposal_RateLimited(t *testing.T) {
	env := newTestEnv(t, map[string]string{"PROPOSAL_RATE_LIMIT_PER_MINUTE": "2"}, nil)
	payload := map[string]any{"fromEmail": "priya@x.com"}

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/sendMail/send-proposal", payload).Code)
	}

	rec := env.do(t, http.MethodPost, "/api/proposal/send-proposal", payload)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later.", decodeBody[ErrorResponse](t, rec).Error)

	// Blog routes are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/blogs", nil).Code)
}
