package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// userRejectedCode is the EIP-1193 error code wallets return when the user
// declines a prompt.
const userRejectedCode = 4001

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("wallet agent error %d: %s", e.Code, e.Message)
}

// rpcClient speaks JSON-RPC 2.0 to the wallet agent over HTTP.
type rpcClient struct {
	url        string
	httpClient *http.Client
}

func newRPCClient(url string, timeout time.Duration) *rpcClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &rpcClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// call makes a single RPC call. Transport failures map to
// ErrAgentUnavailable and an error code of 4001 maps to ErrUserRejected.
func (c *rpcClient) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: agent returned status %d", ErrAgentUnavailable, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.Code == userRejectedCode {
			return nil, fmt.Errorf("%w: %s", ErrUserRejected, rpcResp.Error.Message)
		}
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// warnOnNetworkMismatch compares the agent's chain with the configured one.
// A mismatch is advisory only, so it is logged and the caller proceeds.
func warnOnNetworkMismatch(ctx context.Context, rpc *rpcClient, expected int64, logger *zap.Logger) {
	id, err := rpc.chainID(ctx)
	if err != nil {
		logger.Debug("Could not verify agent network", zap.Error(err))
		return
	}
	if id != expected {
		logger.Warn("Wallet agent network mismatch",
			zap.Int64("expected", expected),
			zap.Int64("actual", id),
			zap.Error(ErrWrongNetwork))
	}
}

// chainID asks the agent which chain it is connected to.
func (c *rpcClient) chainID(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "eth_chainId", nil)
	if err != nil {
		return 0, err
	}

	var hexID string
	if err := json.Unmarshal(result, &hexID); err != nil {
		return 0, fmt.Errorf("failed to decode chain id: %w", err)
	}

	var id int64
	if _, err := fmt.Sscanf(hexID, "0x%x", &id); err != nil {
		return 0, fmt.Errorf("failed to parse chain id %q: %w", hexID, err)
	}
	return id, nil
}
