package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/TheBrightLayer/ChirpWhirpServer/database"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

// stubMailer records messages and fails the first send when failUser is set.
type stubMailer struct {
	mu       sync.Mutex
	sent     []*services.Message
	failUser bool
}

func (m *stubMailer) Name() string { return "stub" }

func (m *stubMailer) Send(_ context.Context, msg *services.Message) (*services.Ack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUser && len(m.sent) == 0 {
		m.sent = append(m.sent, msg)
		return nil, errs.NewDeliveryError("stub", "550 mailbox unavailable", errors.New("550"))
	}
	m.sent = append(m.sent, msg)
	return &services.Ack{MessageID: "<msg-1@brightlayer.test>", Transport: "stub", Accepted: msg.To}, nil
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type prefixTranslator struct {
	fail bool
}

func (p prefixTranslator) Translate(_ context.Context, text string, _, target language.Tag) (string, error) {
	if p.fail {
		return "", errors.New("translation backend down")
	}
	return "[" + target.String() + "] " + text, nil
}

type testEnv struct {
	handler http.Handler
	repo    *database.BlogRepo
	mailer  *stubMailer
}

func newTestEnv(t *testing.T, cfg map[string]string, translator services.Translator) *testEnv {
	t.Helper()
	return newTestEnvWithCovers(t, cfg, translator, nil)
}

func newTestEnvWithCovers(t *testing.T, cfg map[string]string, translator services.Translator, covers services.CoverStore) *testEnv {
	t.Helper()

	db, err := database.Connect(map[string]string{
		"DB_TYPE": "sqlite",
		"DB_PATH": "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	store := database.New(db)
	t.Cleanup(func() { _ = store.Close() })

	renderer, err := services.NewRenderer(services.Branding{CompanyName: "Bright Layer"})
	require.NoError(t, err)

	mailer := &stubMailer{}
	resolver := services.NewAttachmentResolver(t.TempDir())
	proposalCfg := services.ProposalConfig{FromEmail: "hello@brightlayer.test", FromName: "Bright Layer"}

	if cfg == nil {
		cfg = map[string]string{}
	}
	deps := Dependencies{
		Proposal:   services.NewProposalService(services.VariantProposal, mailer, renderer, resolver, nil, proposalCfg),
		QuoteReply: services.NewProposalService(services.VariantQuoteReply, mailer, renderer, resolver, nil, proposalCfg),
		Translator: services.NewBlogTranslator(translator, map[string]string{"SUPPORTED_LANGUAGES": "en,hi"}),
		Covers:     covers,
	}

	return &testEnv{
		handler: newRouter(cfg, store, deps),
		repo:    store.BlogRepo(),
		mailer:  mailer,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNewServer_RequiresProposalServices(t *testing.T) {
	_, err := NewServer(map[string]string{}, database.Database{}, Dependencies{})
	require.Error(t, err)
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, livenessText, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestRouter_BasePath(t *testing.T) {
	env := newTestEnv(t, map[string]string{"API_BASE_PATH": "/"}, nil)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/blogs", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/blogs", nil).Code)
}

func TestRouter_CORS(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/blogs", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	allowed := preflight("https://thebrightlayer.com")
	assert.Equal(t, "https://thebrightlayer.com", allowed.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", allowed.Header().Get("Access-Control-Allow-Credentials"))

	blocked := preflight("https://evil.example")
	assert.Equal(t, http.StatusForbidden, blocked.Code)
	assert.Empty(t, blocked.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogInternalServerErrors_RecoversPanics(t *testing.T) {
	handler := LogInternalServerErrors(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestResponder_WriteError(t *testing.T) {
	responder := NewResponder(zerolog.Nop())

	tests := []struct {
		name    string
		err     error
		status  int
		message string
		details string
	}{
		{"not found", errs.NewBlogNotFoundError(), http.StatusNotFound, "Blog not found", ""},
		{"validation", errs.NewValidationError("title", "title is required"), http.StatusBadRequest, "title is required", ""},
		{"delivery", errs.NewUserDeliveryError(errs.NewDeliveryError("smtp", "421 try later", nil)), http.StatusInternalServerError, "Failed to send email to user", "421 try later"},
		{"unexpected", errors.New("pq: password authentication failed"), http.StatusInternalServerError, "Internal Server Error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			responder.WriteError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.message, body.Error)
			assert.Equal(t, tt.details, body.Details)
			assert.Equal(t, "error", body.Status)
			assert.NotContains(t, rec.Body.String(), "password")
		})
	}
}
