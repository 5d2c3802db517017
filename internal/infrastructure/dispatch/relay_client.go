// Package dispatch submits settlements to the signing relay that holds the
// custodian keys and talks to the chain.
package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Relay endpoints
const (
	PathMint     = "/v1/mint"
	PathBurn     = "/v1/burn"
	PathTransfer = "/v1/transfer"

	HeaderSigner    = "X-Signer"
	HeaderSignature = "X-Signature"
)

var (
	// ErrRelayUnavailable is returned when the relay cannot be reached
	ErrRelayUnavailable = errors.New("dispatch: relay unavailable")
	// ErrRelayRejected is returned for a non-2xx relay response
	ErrRelayRejected = errors.New("dispatch: relay rejected request")
	// ErrEmptyTxHash is returned when the relay accepted but returned no hash
	ErrEmptyTxHash = errors.New("dispatch: relay returned empty tx hash")
	// ErrUnknownSigner is returned when no key is configured for a signer
	ErrUnknownSigner = errors.New("dispatch: no key for signer")
)

type relayRequest struct {
	Token       string `json:"token,omitempty"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

type relayResponse struct {
	TxHash string `json:"tx_hash"`
}

type relayErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RelayClient implements ledger.Dispatcher over HTTP
type RelayClient struct {
	baseURL    string
	keys       map[ledger.Signer]string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ ledger.Dispatcher = (*RelayClient)(nil)

// NewRelayClient creates a relay client from dispatch configuration
func NewRelayClient(cfg config.DispatchConfig, logger *zap.Logger) *RelayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	keys := make(map[ledger.Signer]string, 2)
	if cfg.PointOfSaleKey != "" {
		keys[ledger.SignerPointOfSale] = cfg.PointOfSaleKey
	}
	if cfg.TreasuryCustodianKey != "" {
		keys[ledger.SignerTreasury] = cfg.TreasuryCustodianKey
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(cfg.RelayURL, "/"),
		keys:       keys,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// HasSigner reports whether a key is configured for signer
func (c *RelayClient) HasSigner(signer ledger.Signer) bool {
	_, ok := c.keys[signer]
	return ok
}

// Mint creates tokens for req.To
func (c *RelayClient) Mint(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return c.submit(ctx, PathMint, req)
}

// Burn destroys tokens held by req.From
func (c *RelayClient) Burn(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return c.submit(ctx, PathBurn, req)
}

// Transfer moves tokens from req.From to req.To
func (c *RelayClient) Transfer(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return c.submit(ctx, PathTransfer, req)
}

func (c *RelayClient) submit(ctx context.Context, path string, req ledger.TransferRequest) (string, error) {
	key, ok := c.keys[req.Signer]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownSigner, req.Signer)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return "", fmt.Errorf("dispatch: invalid amount %q: %w", req.Amount, err)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("dispatch: amount must be positive, got %s", req.Amount)
	}

	body, err := json.Marshal(relayRequest{
		Token:       req.Token,
		From:        req.From,
		To:          req.To,
		Amount:      amount.String(),
		Description: req.Description,
	})
	if err != nil {
		return "", fmt.Errorf("dispatch: failed to encode request: %w", err)
	}

	respBody, err := c.doRequest(ctx, path, req.Signer, key, body)
	if err != nil {
		c.logger.Error("Relay submission failed",
			zap.String("path", path),
			zap.String("signer", string(req.Signer)),
			zap.String("amount", req.Amount),
			zap.Error(err),
		)
		return "", err
	}

	var resp relayResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("dispatch: failed to parse response: %w", err)
	}
	if resp.TxHash == "" {
		return "", ErrEmptyTxHash
	}

	c.logger.Info("Settlement submitted",
		zap.String("path", path),
		zap.String("signer", string(req.Signer)),
		zap.String("tx_hash", resp.TxHash),
	)
	return resp.TxHash, nil
}

func (c *RelayClient) doRequest(ctx context.Context, path string, signer ledger.Signer, key string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderSigner, string(signer))
	req.Header.Set(HeaderSignature, Sign(key, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp relayErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrRelayRejected, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrRelayRejected, resp.StatusCode)
	}

	return respBody, nil
}

// Sign returns the hex HMAC-SHA256 of body keyed by key
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
