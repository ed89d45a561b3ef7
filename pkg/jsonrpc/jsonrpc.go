// Package jsonrpc holds the JSON-RPC 2.0 envelopes exchanged between the
// WebSockets transport and a contract gateway that speaks JSON-RPC.
package jsonrpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Version is the only supported JSON-RPC version.
const Version = "2.0"

// Error codes returned by gateways.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeContractError  = -32000
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. It doubles as a Go error so that remote
// rejections can be surfaced to callers as-is.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("remote error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// InvokeParams are the parameters of a contract invocation. The method of
// the enclosing request is the contract function name.
type InvokeParams struct {
	Contract string   `json:"contract"`
	Args     []string `json:"args"`
	ReadOnly bool     `json:"read_only"`
}

// InvokeResult carries the raw bytes returned by the contract.
type InvokeResult struct {
	Payload string `json:"payload"` // base64-encoded
}

// NewInvokeRequest builds a contract invocation request.
func NewInvokeRequest(id int64, function string, params InvokeParams) (Request, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return Request{}, err
	}
	return Request{
		JSONRPC: Version,
		ID:      id,
		Method:  function,
		Params:  json.RawMessage(paramsJSON),
	}, nil
}

// NewResultResponse wraps a contract payload in a successful response.
func NewResultResponse(id int64, payload []byte) Response {
	// marshalling a struct with a single string field cannot fail
	resultJSON, _ := json.Marshal(InvokeResult{Payload: base64.StdEncoding.EncodeToString(payload)})
	return Response{
		JSONRPC: Version,
		ID:      id,
		Result:  json.RawMessage(resultJSON),
	}
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(id int64, code int, message string) Response {
	return Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// Payload decodes the contract payload of a successful response, or returns
// the remote error.
func (r Response) Payload() ([]byte, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	var res InvokeResult
	if err := json.Unmarshal(r.Result, &res); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result of request %d: %w", r.ID, err)
	}
	return base64.StdEncoding.DecodeString(res.Payload)
}
