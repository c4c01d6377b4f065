package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion is the only protocol version spoken.
const JSONRPCVersion = "2.0"

// A2A methods this package serves and calls.
const (
	MethodSendMessage = "message/send"
	MethodGetTask     = "tasks/get"
)

// Error codes: the reserved JSON-RPC range plus the A2A extensions.
const (
	ErrCodeParse          = -32700
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeTaskNotFound   = -32001
	ErrCodeBusy           = -32005
)

// ErrBusy marks an agent that refused work for capacity reasons, either with
// ErrCodeBusy or with HTTP 429/503.
var ErrBusy = errors.New("a2a: agent busy")

// JSONRPCRequest is the request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is the response envelope. Exactly one of Result and Error
// is set.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is the error object of a response.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newRequest(id int64, method string, params any) (JSONRPCRequest, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return JSONRPCRequest{}, fmt.Errorf("a2a: %s: marshal params: %w", method, err)
	}
	return JSONRPCRequest{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: raw}, nil
}

// decode unmarshals the result of method into out, or returns the remote
// error as an *RPCError.
func (r *JSONRPCResponse) decode(method string, out any) error {
	if r.Error != nil {
		return &RPCError{Method: method, Code: r.Error.Code, Message: r.Error.Message}
	}
	if len(r.Result) == 0 {
		return fmt.Errorf("a2a: %s: response has neither result nor error", method)
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("a2a: %s: decode result: %w", method, err)
	}
	return nil
}

// RPCError is an error object returned by a remote agent.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("a2a: %s failed (code %d): %s", e.Method, e.Code, e.Message)
}

// Is reports ErrBusy for ErrCodeBusy replies.
func (e *RPCError) Is(target error) bool {
	return target == ErrBusy && e.Code == ErrCodeBusy
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return ErrCodeTaskNotFound
	case errors.Is(err, ErrBusy):
		return ErrCodeBusy
	}
	return ErrCodeInternal
}
