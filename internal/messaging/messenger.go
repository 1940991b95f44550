package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trialdesk/internal/config"

	"github.com/rs/zerolog"
)

// WebhookMessenger posts outbound messages to the messaging gateway
// (WhatsApp relay or similar).
type WebhookMessenger struct {
	webhookURL string
	apiKey     string
	client     *http.Client
	logger     zerolog.Logger
}

func NewWebhookMessenger(cfg config.MessagingConfig, logger zerolog.Logger) *WebhookMessenger {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookMessenger{
		webhookURL: cfg.WebhookURL,
		apiKey:     cfg.APIKey,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (m *WebhookMessenger) Send(ctx context.Context, phone, message string) error {
	payload := map[string]string{"phone": phone, "message": message}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("messaging gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("messaging gateway returned status %d", resp.StatusCode)
	}

	m.logger.Debug().Str("phone", phone).Msg("message delivered")
	return nil
}

// LogMessenger only logs messages. Used when no gateway is configured.
type LogMessenger struct {
	logger zerolog.Logger
}

func NewLogMessenger(logger zerolog.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(ctx context.Context, phone, message string) error {
	m.logger.Info().Str("phone", phone).Str("message", message).Msg("message (log only)")
	return nil
}
