// Package mcp exposes quarry retrieval as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	qerrors "github.com/quarrydocs/quarry/internal/errors"
)

// MCP error codes: custom quarry codes plus standard JSON-RPC codes.
const (
	ErrCodeIndexNotBuilt = -32001
	ErrCodeEmbedFailed   = -32002
	ErrCodeTimeout       = -32003

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid tool parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors, attaching suggestions
// where the underlying error carries one.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var qe *qerrors.QuarryError
	if errors.As(err, &qe) {
		return mapQuarryError(qe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request was canceled"}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "internal server error"}
	}
}

func mapQuarryError(qe *qerrors.QuarryError) *MCPError {
	message := qe.Message
	if qe.Suggestion != "" {
		message = fmt.Sprintf("%s. %s", qe.Message, qe.Suggestion)
	}

	switch qe.Code {
	case qerrors.ErrCodeIndexNotBuilt:
		return &MCPError{Code: ErrCodeIndexNotBuilt, Message: message}
	case qerrors.ErrCodeEmbedProvider, qerrors.ErrCodeEmbedUnavailable:
		return &MCPError{Code: ErrCodeEmbedFailed, Message: message}
	case qerrors.ErrCodeTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case qerrors.ErrCodeInvalidFilter:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
