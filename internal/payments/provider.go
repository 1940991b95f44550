package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trialdesk/internal/config"
	"trialdesk/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPProvider talks to the external checkout gateway. The engine sends
// amount, currency and metadata; the gateway owns the payment session.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

func NewHTTPProvider(cfg config.PaymentsConfig, logger zerolog.Logger) *HTTPProvider {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (p *HTTPProvider) CreatePaymentLink(ctx context.Context, req models.PaymentRequest) (*models.PaymentLink, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/payment-links", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var link models.PaymentLink
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("failed to decode payment link: %w", err)
	}
	if link.Reference == "" {
		return nil, fmt.Errorf("payment gateway returned empty reference")
	}

	p.logger.Info().Str("reference", link.Reference).Msg("payment link created")
	return &link, nil
}

// LocalProvider mints references without an external gateway. Used in
// development and tests when no gateway is configured.
type LocalProvider struct {
	logger zerolog.Logger
}

func NewLocalProvider(logger zerolog.Logger) *LocalProvider {
	return &LocalProvider{logger: logger}
}

func (p *LocalProvider) CreatePaymentLink(ctx context.Context, req models.PaymentRequest) (*models.PaymentLink, error) {
	ref := uuid.NewString()
	p.logger.Info().
		Str("reference", ref).
		Int64("amount", req.Amount).
		Str("currency", req.Currency).
		Msg("local payment link minted")
	return &models.PaymentLink{
		Reference: ref,
		URL:       fmt.Sprintf("https://pay.local/checkout/%s", ref),
	}, nil
}
