package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/paratel/numlease/internal/platform/config"
	"github.com/paratel/numlease/internal/reservation/app"
)

func handlerTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newWebhookRouter wires the handler over a service whose repositories are
// never reached by the cases below; they exercise routing and auth mapping.
func newWebhookRouter(t *testing.T, providers ...config.ProviderConfig) *chi.Mux {
	t.Helper()
	cfg := &config.Config{Providers: providers}
	service := app.NewWebhookService(nil, cfg, nil, nil, nil, handlerTestLogger())
	handler := NewWebhookHandler(service, handlerTestLogger())

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestWebhookHandler_UnknownProvider(t *testing.T) {
	r := newWebhookRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/nobody", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWebhookHandler_BadToken(t *testing.T) {
	r := newWebhookRouter(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/textway", strings.NewReader(`{}`))
	req.Header.Set("X-Webhook-Token", "wrong")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	r := newWebhookRouter(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/textway", strings.NewReader(`not json`))
	req.Header.Set("X-Webhook-Token", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_MissingRentalID(t *testing.T) {
	r := newWebhookRouter(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/textway", strings.NewReader(`{"text":"code 1234"}`))
	req.Header.Set("X-Webhook-Token", "s3cret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
