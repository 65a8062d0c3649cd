package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	PathGetAddress          = "/get_address"
	PathSignDocument        = "/sign_document_contract"
	PathInvalidateSignature = "/invalidate_signature_contract"
	PathReceipts            = "/receipts"
	PathHealth              = "/healthz"

	HeaderRequestID = "X-Request-Id"
)

// RelayError is a non-2xx answer from the relay. Error() returns the relay's
// own message when it sent one.
type RelayError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *RelayError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

type ClientConfig struct {
	BaseURL string
	// Token is sent as a bearer token when set
	Token   string
	Timeout time.Duration
}

// Client talks to the relay HTTP API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Sugar().Debugw("Sending relay request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		relayErr := &RelayError{StatusCode: resp.StatusCode, RequestID: resp.Header.Get(HeaderRequestID)}
		var errBody types.RelayErrorResponse
		if json.Unmarshal(respBody, &errBody) == nil {
			relayErr.Message = errBody.Error
			if errBody.RequestID != "" {
				relayErr.RequestID = errBody.RequestID
			}
		}
		c.logger.Sugar().Warnw("Relay returned error",
			"path", path,
			"status", resp.StatusCode,
			"requestId", relayErr.RequestID,
			"error", relayErr.Error(),
		)
		return relayErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &RelayError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("invalid relay response: %v", err),
			RequestID:  resp.Header.Get(HeaderRequestID),
		}
	}
	return nil
}

// GetAddress returns the account the relay pays gas from
func (c *Client) GetAddress(ctx context.Context) (common.Address, error) {
	var resp types.RelayAddressResponse
	if err := c.do(ctx, http.MethodGet, PathGetAddress, nil, &resp); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(resp.EthereumAddress) {
		return common.Address{}, fmt.Errorf("relay returned invalid address %q", resp.EthereumAddress)
	}
	return common.HexToAddress(resp.EthereumAddress), nil
}

func (c *Client) SignDocument(ctx context.Context, req *types.RelayRequest) (*types.RelayResponse, error) {
	var resp types.RelayResponse
	if err := c.do(ctx, http.MethodPost, PathSignDocument, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) InvalidateSignature(ctx context.Context, req *types.RelayRequest) (*types.RelayResponse, error) {
	var resp types.RelayResponse
	if err := c.do(ctx, http.MethodPost, PathInvalidateSignature, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListReceipts returns the relay's stored receipts for a document
func (c *Client) ListReceipts(ctx context.Context, digest types.DocumentDigest) ([]*types.RelayReceipt, error) {
	var resp []*types.RelayReceipt
	path := PathReceipts + "?document_hash=" + url.QueryEscape(digest.Hex())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, PathHealth, nil, nil)
}
