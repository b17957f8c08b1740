// Package jsonrpc is a minimal JSON-RPC 2.0 HTTP client used to probe
// testnet nodes. Every call is a single request with its own timeout;
// there is no retry and no connection reuse guarantee.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int    `json:"id"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result
// and Error is set on a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC response.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type ProbeErrorKind string

const (
	// Unreachable means the endpoint could not be reached at all:
	// connection refused, DNS failure, or timeout.
	Unreachable ProbeErrorKind = "unreachable"

	// Protocol means the endpoint answered with a non-success HTTP
	// status or a body that is not a JSON-RPC response.
	Protocol ProbeErrorKind = "protocol"

	// Application means the endpoint returned a well-formed
	// response carrying an error field.
	Application ProbeErrorKind = "application"
)

// ProbeError is the typed failure of a single probe call.
type ProbeError struct {
	Kind     ProbeErrorKind
	Endpoint string
	Method   string

	// Err is the underlying transport error for Unreachable.
	Err error

	// HTTPStatus is set for Protocol errors caused by a non-200
	// response.
	HTTPStatus int

	// RPCError is set for Application errors.
	RPCError *ErrorObject
}

func (e *ProbeError) Error() string {
	switch e.Kind {
	case Unreachable:
		return fmt.Sprintf("%s %s: endpoint unreachable: %v", e.Method, e.Endpoint, e.Err)
	case Protocol:
		if e.HTTPStatus != 0 {
			return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Endpoint, e.HTTPStatus)
		}
		return fmt.Sprintf("%s %s: malformed response: %v", e.Method, e.Endpoint, e.Err)
	case Application:
		return fmt.Sprintf("%s %s: RPC error %d: %s", e.Method, e.Endpoint, e.RPCError.Code, e.RPCError.Message)
	default:
		return fmt.Sprintf("%s %s: probe failed", e.Method, e.Endpoint)
	}
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Client issues one-shot JSON-RPC calls over HTTP.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Call posts a single JSON-RPC request to endpoint and returns the raw
// result payload. Interpretation of the payload is the caller's
// responsibility. Failures are returned as *ProbeError.
func (c *Client) Call(ctx context.Context, endpoint, method string, params any, id int) (json.RawMessage, error) {
	reqBody, err := json.Marshal(Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProbeError{Kind: Unreachable, Endpoint: endpoint, Method: method, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &ProbeError{Kind: Protocol, Endpoint: endpoint, Method: method, HTTPStatus: httpResp.StatusCode}
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ProbeError{Kind: Unreachable, Endpoint: endpoint, Method: method, Err: err}
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProbeError{Kind: Protocol, Endpoint: endpoint, Method: method, Err: err}
	}

	if resp.Error != nil {
		return nil, &ProbeError{Kind: Application, Endpoint: endpoint, Method: method, RPCError: resp.Error}
	}

	return resp.Result, nil
}
