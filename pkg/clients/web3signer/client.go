package web3signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:9000"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client is a JSON-RPC client for a Web3Signer instance
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	requestID  atomic.Uint64
}

func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("web3signer base url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// NewWeb3SignerClientFromRemoteSignerConfig builds a client from the relay's
// remote signer settings. A nil config falls back to DefaultConfig.
func NewWeb3SignerClientFromRemoteSignerConfig(cfg *config.RemoteSignerConfig, logger *zap.Logger) (*Client, error) {
	clientCfg := DefaultConfig()
	if cfg != nil && cfg.Url != "" {
		clientCfg.BaseURL = cfg.Url
	}
	return NewClient(clientCfg, logger)
}

func (c *Client) SetHttpClient(client *http.Client) {
	c.httpClient = client
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *JSONRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// JSONRPCError is an error object returned by Web3Signer
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("web3signer error %d: %s", e.Code, e.Message)
}

// ErrorCode satisfies go-ethereum's rpc.Error
func (e *JSONRPCError) ErrorCode() int {
	return e.Code
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	reqBody, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.requestID.Add(1),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrapf(err, "failed to create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Sugar().Debugw("Sending web3signer request", "method", method, "url", c.config.BaseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to send %s request", method)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s response", method)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("web3signer returned status %d for %s: %s", resp.StatusCode, method, string(body))
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", method)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return errors.Wrapf(err, "failed to decode %s result", method)
	}
	return nil
}

func (c *Client) EthAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, "eth_accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *Client) EthSignTransaction(ctx context.Context, from string, transaction map[string]interface{}) (string, error) {
	tx := make(map[string]interface{}, len(transaction)+1)
	for k, v := range transaction {
		tx[k] = v
	}
	tx["from"] = from

	var signed string
	if err := c.call(ctx, "eth_signTransaction", []interface{}{tx}, &signed); err != nil {
		return "", err
	}
	return signed, nil
}

func (c *Client) EthSignTypedData(ctx context.Context, account string, typedData interface{}) (string, error) {
	var sig string
	if err := c.call(ctx, "eth_signTypedData", []interface{}{account, typedData}, &sig); err != nil {
		return "", err
	}
	return sig, nil
}
