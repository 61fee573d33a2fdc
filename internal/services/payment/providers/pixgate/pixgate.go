package pixgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PixGateProvider is the HTTP client for the PIX payment gateway. The
// gateway is an opaque collaborator: this client only creates charges and
// reads their status, it never interprets money.
type PixGateProvider struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	postbackURL string
	client      *http.Client
}

// PixGateConfig holds configuration for the PixGate provider
type PixGateConfig struct {
	APIKey      string
	APISecret   string
	BaseURL     string
	PostbackURL string
	Timeout     time.Duration
}

// NewPixGateProvider creates a new PixGate provider
func NewPixGateProvider(config PixGateConfig) *PixGateProvider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.pixgate.example"
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &PixGateProvider{
		apiKey:      config.APIKey,
		apiSecret:   config.APISecret,
		baseURL:     baseURL,
		postbackURL: config.PostbackURL,
		client:      &http.Client{Timeout: timeout},
	}
}

// ChargeRequest represents a request to create a PIX charge
type ChargeRequest struct {
	AmountCents      int64  `json:"amount"`
	Description      string `json:"description"`
	ClientIdentifier string `json:"identifier"`
	PayerName        string `json:"payer_name"`
	PayerEmail       string `json:"payer_email"`
	PostbackURL      string `json:"postback_url"`
}

// ChargeResponse represents the created charge
type ChargeResponse struct {
	ExternalID string `json:"id"`
	PayCode    string `json:"pix_code"`
	QRCode     string `json:"qr_code_base64"`
	ExpiresAt  string `json:"expires_at"`
}

type chargeEnvelope struct {
	Status  bool           `json:"status"`
	Message string         `json:"message"`
	Data    ChargeResponse `json:"data"`
}

type statusEnvelope struct {
	Status bool `json:"status"`
	Data   struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
		Status     string `json:"status"`
	} `json:"data"`
}

// CreateCharge creates a PIX charge with the gateway
func (p *PixGateProvider) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	if req.PostbackURL == "" {
		req.PostbackURL = p.postbackURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling charge request: %w", err)
	}

	// The gateway has been seen accepting either header scheme depending on
	// account age; try bearer first, then the legacy key pair.
	var lastErr error
	for _, auth := range []string{"bearer", "keypair"} {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/transactions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("error building charge request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		p.setAuth(httpReq, auth)

		var envelope chargeEnvelope
		if err := p.do(httpReq, &envelope); err != nil {
			lastErr = err
			continue
		}
		if !envelope.Status {
			lastErr = fmt.Errorf("gateway refused charge: %s", envelope.Message)
			continue
		}
		return &envelope.Data, nil
	}

	return nil, fmt.Errorf("error creating charge: %w", lastErr)
}

// GetStatus returns the gateway-side status of a transaction
func (p *PixGateProvider) GetStatus(ctx context.Context, externalID, clientIdentifier string) (string, error) {
	url := fmt.Sprintf("%s/v1/transactions/%s?identifier=%s", p.baseURL, externalID, clientIdentifier)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("error building status request: %w", err)
	}
	p.setAuth(httpReq, "bearer")

	var envelope statusEnvelope
	if err := p.do(httpReq, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.Status, nil
}

func (p *PixGateProvider) setAuth(req *http.Request, scheme string) {
	if scheme == "bearer" {
		req.Header.Set("Authorization", "Bearer "+p.apiSecret)
		return
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("x-api-secret", p.apiSecret)
}

func (p *PixGateProvider) do(req *http.Request, out interface{}) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding gateway response: %w", err)
	}
	return nil
}
