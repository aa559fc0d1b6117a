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

// TextwayAdapter integrates a webhook-mode vendor. Inbound SMS arrives via
// the webhook receiver, so the adapter only covers rental activation and
// release. The vendor is told where to post notifications when the rental
// is created.
type TextwayAdapter struct {
	name       string
	cfg        *config.Config
	httpClient *http.Client
	logger     *slog.Logger
}

func NewTextwayAdapter(name string, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *TextwayAdapter {
	return &TextwayAdapter{
		name:       name,
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.With("provider", name),
	}
}

func (a *TextwayAdapter) Name() string { return a.name }

type textwayRentRequest struct {
	Service string `json:"service"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

type textwayRentResponse struct {
	RentalID string `json:"rental_id"`
	Phone    string `json:"phone"`
}

type textwayReleaseResponse struct {
	Burned bool `json:"burned"`
}

func (a *TextwayAdapter) RequestNumber(ctx context.Context, offering catalogdomain.Offering, phone string) (*Number, error) {
	pc, ok := a.cfg.ProviderByName(a.name)
	if !ok {
		return nil, fmt.Errorf("provider %q missing from config", a.name)
	}

	body, err := json.Marshal(textwayRentRequest{
		Service: offering.Service,
		Country: offering.Country,
		Phone:   phone,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.BaseURL+"/api/rent", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", pc.APIKey)

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rent number: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rent response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("rent number: vendor status %d", httpResp.StatusCode)
	}

	var rent textwayRentResponse
	if err := json.Unmarshal(respBody, &rent); err != nil {
		return nil, fmt.Errorf("decode rent response: %w", err)
	}
	if rent.RentalID == "" {
		return nil, fmt.Errorf("vendor returned empty rental id")
	}
	if rent.Phone == "" {
		rent.Phone = phone
	}

	a.logger.InfoContext(ctx, "rental created", "ref", rent.RentalID, "phone", rent.Phone)
	return &Number{Ref: rent.RentalID, Phone: rent.Phone}, nil
}

func (a *TextwayAdapter) Cancel(ctx context.Context, ref string) error {
	pc, ok := a.cfg.ProviderByName(a.name)
	if !ok {
		return fmt.Errorf("provider %q missing from config", a.name)
	}

	url := fmt.Sprintf("%s/api/rent/%s/release", pc.BaseURL, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("create release request: %w", err)
	}
	req.Header.Set("X-Api-Key", pc.APIKey)

	httpResp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("release rental: %w", err)
	}
	defer httpResp.Body.Close()

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

	var rel textwayReleaseResponse
	if err := json.Unmarshal(respBody, &rel); err == nil && rel.Burned {
		return ErrNumberBurned
	}
	return nil
}
