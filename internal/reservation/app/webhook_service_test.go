package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	pooldomain "github.com/paratel/numlease/internal/numberpool/domain"
	"github.com/paratel/numlease/internal/platform/config"
	"github.com/paratel/numlease/internal/platform/database"
	"github.com/paratel/numlease/internal/reservation/domain"
)

type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Record(ctx context.Context, q database.Querier, providerName, eventID string, payload []byte) (bool, error) {
	args := m.Called(ctx, q, providerName, eventID, payload)
	return args.Bool(0), args.Error(1)
}

type webhookTestComponents struct {
	managerTestComponents
	service    *WebhookService
	mockEvents *MockWebhookEventRepository
}

func setupWebhookTest(t *testing.T, pc config.ProviderConfig) webhookTestComponents {
	t.Helper()
	comps := setupManagerTest(t)
	mockEvents := new(MockWebhookEventRepository)
	cfg := &config.Config{Providers: []config.ProviderConfig{pc}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := NewWebhookService(nil, cfg, comps.mockReservations, mockEvents, comps.manager, logger)
	return webhookTestComponents{managerTestComponents: comps, service: service, mockEvents: mockEvents}
}

func signHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookService_Process_DeliversCode(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})
	res := pendingReservation(uuid.New(), comps.offering.ID)
	res.Provider = "textway"
	payload := []byte(`{"event_id":"evt-1","rental_id":"rent-9","text":"your code is 4821"}`)

	comps.mockEvents.On("Record", mock.Anything, mock.Anything, "textway", "evt-1", payload).
		Return(true, nil).Once()
	comps.mockReservations.On("FindPendingByProviderRef", mock.Anything, mock.Anything, "textway", "rent-9").
		Return(res, nil).Once()
	comps.mockReservations.On("GetByID", mock.Anything, mock.Anything, res.ID).Return(res, nil).Twice()
	comps.mockOfferings.On("GetByID", mock.Anything, mock.Anything, res.OfferingID).Return(comps.offering, nil).Once()
	comps.mockReservations.On("MarkDelivered", mock.Anything, mock.Anything, res.ID, "4821", testNow).
		Return(true, nil).Once()
	comps.mockNumbers.On("Release", mock.Anything, mock.Anything, res.NumberID, pooldomain.StateFree).Return(nil).Once()
	comps.mockNotifier.On("ReservationTerminal", mock.Anything, mock.MatchedBy(func(ev domain.TerminalEvent) bool {
		return ev.Status == domain.StatusDelivered && ev.Code == "4821"
	})).Return(nil).Once()

	err := comps.service.Process(context.Background(), "textway", "s3cret", "", payload)
	require.NoError(t, err)
	comps.mockReservations.AssertExpectations(t)
	comps.mockNotifier.AssertExpectations(t)
}

func TestWebhookService_Process_RejectsBadToken(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	err := comps.service.Process(context.Background(), "textway", "wrong", "", []byte(`{}`))
	assert.ErrorIs(t, err, ErrWebhookUnauthorized)
	comps.mockEvents.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Process_HMACMode(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "hmac",
	})
	payload := []byte(`{"rental_id":"rent-9","text":"no code here"}`)

	comps.mockReservations.On("FindPendingByProviderRef", mock.Anything, mock.Anything, "textway", "rent-9").
		Return(nil, domain.ErrReservationNotFound).Once()

	err := comps.service.Process(context.Background(), "textway", "", signHMAC("s3cret", payload), payload)
	require.NoError(t, err)

	err = comps.service.Process(context.Background(), "textway", "", "deadbeef", payload)
	assert.ErrorIs(t, err, ErrWebhookUnauthorized)
}

func TestWebhookService_Process_DuplicateEventAcknowledged(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})
	payload := []byte(`{"event_id":"evt-1","rental_id":"rent-9","text":"your code is 4821"}`)

	comps.mockEvents.On("Record", mock.Anything, mock.Anything, "textway", "evt-1", payload).
		Return(false, nil).Once()

	err := comps.service.Process(context.Background(), "textway", "s3cret", "", payload)
	require.NoError(t, err)
	comps.mockReservations.AssertNotCalled(t, "FindPendingByProviderRef", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_Process_UnknownRentalAcknowledged(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})
	payload := []byte(`{"rental_id":"rent-unknown","text":"your code is 4821"}`)

	comps.mockReservations.On("FindPendingByProviderRef", mock.Anything, mock.Anything, "textway", "rent-unknown").
		Return(nil, domain.ErrReservationNotFound).Once()

	assert.NoError(t, comps.service.Process(context.Background(), "textway", "s3cret", "", payload))
}

func TestWebhookService_Process_UnknownProvider(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	err := comps.service.Process(context.Background(), "nobody", "s3cret", "", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownWebhookProvider)
}

func TestWebhookService_Process_MalformedPayload(t *testing.T) {
	comps := setupWebhookTest(t, config.ProviderConfig{
		Name: "textway", Mode: "webhook", WebhookSecret: "s3cret", SecurityMode: "token",
	})

	err := comps.service.Process(context.Background(), "textway", "s3cret", "", []byte(`not json`))
	assert.ErrorIs(t, err, ErrBadWebhookPayload)

	err = comps.service.Process(context.Background(), "textway", "s3cret", "", []byte(`{"text":"code 1234"}`))
	assert.ErrorIs(t, err, ErrBadWebhookPayload)
}
