// Package naverr defines the error kinds surfaced by navigation operations. Each error
// carries a gRPC status code so transports can derive their own status from it.
package naverr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind classifies a navigation failure
type Kind int

const (
	// MissingInput is a user-correctable problem with the request
	MissingInput Kind = iota + 1
	// ProviderError means the directions provider failed or found no route
	ProviderError
	// CollaboratorUnavailable means the robot executor or voice announcer could not be
	// reached. It is logged and discarded, never returned to HTTP callers.
	CollaboratorUnavailable
)

func (k Kind) String() string {
	switch k {
	case MissingInput:
		return "missing_input"
	case ProviderError:
		return "provider_error"
	case CollaboratorUnavailable:
		return "collaborator_unavailable"
	default:
		return "unknown"
	}
}

// Error is a classified navigation error
type Error struct {
	Kind    Kind
	Code    codes.Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// GRPCStatus lets status.Code and status.FromError classify wrapped navigation errors
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// Missing reports a malformed or absent request field
func Missing(format string, args ...interface{}) error {
	return &Error{Kind: MissingInput, Code: codes.InvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NoRoute reports that the directions provider found no route
func NoRoute(message string) error {
	return &Error{Kind: ProviderError, Code: codes.NotFound, Message: message}
}

// Provider wraps a directions provider failure
func Provider(message string, err error) error {
	return &Error{Kind: ProviderError, Code: codes.Unavailable, Message: message, Err: err}
}

// Unavailable wraps a robot or voice collaborator failure
func Unavailable(collaborator string, err error) error {
	return &Error{Kind: CollaboratorUnavailable, Code: codes.Unavailable, Message: collaborator + " unavailable", Err: err}
}

// Is reports whether err is a navigation error of the given kind
func Is(err error, kind Kind) bool {
	var navErr *Error
	if errors.As(err, &navErr) {
		return navErr.Kind == kind
	}
	return false
}

// HTTPStatus maps an error to the HTTP status returned to API callers
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var navErr *Error
	if !errors.As(err, &navErr) {
		return http.StatusInternalServerError
	}
	return runtime.HTTPStatusFromCode(status.Code(err))
}
