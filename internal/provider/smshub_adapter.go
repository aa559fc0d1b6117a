package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
	"github.com/paratel/numlease/internal/platform/config"
)

// SMSHubAdapter integrates a poll-mode rental vendor with a JSON HTTP API:
// rentals are created with POST /v1/rentals, inbound SMS are fetched with
// GET /v1/rentals/{id}/messages, and DELETE releases the rental.
// Credentials are read from config on every call so key rotation via config
// reload takes effect without a restart.
type SMSHubAdapter struct {
	name       string
	cfg        *config.Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSMSHubAdapter(name string, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *SMSHubAdapter {
	return &SMSHubAdapter{
		name:       name,
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("provider", name),
	}
}

func (a *SMSHubAdapter) Name() string { return a.name }

type smshubRentalRequest struct {
	Service string `json:"service"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

type smshubRentalResponse struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
}

type smshubMessagesResponse struct {
	Messages []struct {
		Text string `json:"text"`
	} `json:"messages"`
}

type smshubReleaseResponse struct {
	Status string `json:"status"` // "released" or "burned"
}

type smshubErrorResponse struct {
	Message string `json:"message"`
}

func (a *SMSHubAdapter) RequestNumber(ctx context.Context, offering catalogdomain.Offering, phone string) (*Number, error) {
	pc, ok := a.cfg.ProviderByName(a.name)
	if !ok {
		return nil, fmt.Errorf("provider %q missing from config", a.name)
	}

	body, err := json.Marshal(smshubRentalRequest{
		Service: offering.Service,
		Country: offering.Country,
		Phone:   phone,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rental request: %w", err)
	}

	var rental smshubRentalResponse
	if err := a.doJSON(ctx, pc, http.MethodPost, pc.BaseURL+"/v1/rentals", bytes.NewReader(body), &rental); err != nil {
		return nil, err
	}
	if rental.ID == "" {
		return nil, fmt.Errorf("vendor returned empty rental id")
	}
	if rental.Phone == "" {
		rental.Phone = phone
	}

	a.logger.InfoContext(ctx, "rental created", "ref", rental.ID, "phone", rental.Phone)
	return &Number{Ref: rental.ID, Phone: rental.Phone}, nil
}

func (a *SMSHubAdapter) CheckCode(ctx context.Context, ref string) (string, error) {
	pc, ok := a.cfg.ProviderByName(a.name)
	if !ok {
		return "", fmt.Errorf("provider %q missing from config", a.name)
	}

	var resp smshubMessagesResponse
	url := fmt.Sprintf("%s/v1/rentals/%s/messages", pc.BaseURL, ref)
	if err := a.doJSON(ctx, pc, http.MethodGet, url, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	// The newest message carries the code the user is waiting for.
	return resp.Messages[len(resp.Messages)-1].Text, nil
}

func (a *SMSHubAdapter) Cancel(ctx context.Context, ref string) error {
	pc, ok := a.cfg.ProviderByName(a.name)
	if !ok {
		return fmt.Errorf("provider %q missing from config", a.name)
	}

	url := fmt.Sprintf("%s/v1/rentals/%s", pc.BaseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create release request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+pc.APIKey)

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release rental: %w", err)
	}
	defer httpResp.Body.Close()

	// A rental the vendor no longer knows about is already released.
	if httpResp.StatusCode == http.StatusNotFound {
		return nil
	}
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read release response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return fmt.Errorf("release rental: vendor status %d", httpResp.StatusCode)
	}

	var rel smshubReleaseResponse
	if err := json.Unmarshal(respBody, &rel); err == nil && rel.Status == "burned" {
		return ErrNumberBurned
	}
	return nil
}

func (a *SMSHubAdapter) doJSON(ctx context.Context, pc config.ProviderConfig, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+pc.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var vendorErr smshubErrorResponse
		if json.Unmarshal(respBody, &vendorErr) == nil && vendorErr.Message != "" {
			return fmt.Errorf("vendor status %d: %s", httpResp.StatusCode, vendorErr.Message)
		}
		return fmt.Errorf("vendor status %d", httpResp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode vendor response: %w", err)
		}
	}
	return nil
}
