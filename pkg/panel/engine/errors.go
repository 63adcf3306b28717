// Package engine implements the server provisioning and lifecycle
// engine: quota and authorization gating, node placement, port
// allocation, and the server state machine with its append-only event
// log. Everything else in the panel (HTTP transport, rendering) is a
// thin collaborator around this package.
package engine

import (
	"errors"
	"fmt"

	"github.com/wardenhq/warden/pkg/panel/models"
)

// ErrorCode classifies engine failures. Every code is a normal,
// expected business outcome surfaced to the end user with its specific
// reason; nothing here is fatal to the process.
type ErrorCode int

const (
	// CodeQuotaExceeded indicates the tenant's plan quota is exhausted.
	CodeQuotaExceeded ErrorCode = iota + 1

	// CodeResourceLimitExceeded indicates a requested limit exceeds the
	// platform bounds or the tenant's plan ceiling for one field.
	CodeResourceLimitExceeded

	// CodeNoCapacity indicates no schedulable node can fit the request.
	CodeNoCapacity

	// CodeExplicitNodeInsufficientCapacity indicates the caller named a
	// node that cannot accommodate the request.
	CodeExplicitNodeInsufficientCapacity

	// CodePortSpaceExhausted indicates the port scan hit the configured
	// ceiling without finding a free port.
	CodePortSpaceExhausted

	// CodeInvalidTransition indicates the requested state change is not
	// legal from the server's current state.
	CodeInvalidTransition

	// CodeNotAuthorized indicates the actor may not perform the action.
	CodeNotAuthorized

	// CodeNotFound indicates a referenced entity does not exist.
	CodeNotFound
)

// String returns a human-readable name for the error code.
func (c ErrorCode) String() string {
	switch c {
	case CodeQuotaExceeded:
		return "QuotaExceeded"
	case CodeResourceLimitExceeded:
		return "ResourceLimitExceeded"
	case CodeNoCapacity:
		return "NoCapacity"
	case CodeExplicitNodeInsufficientCapacity:
		return "ExplicitNodeInsufficientCapacity"
	case CodePortSpaceExhausted:
		return "PortSpaceExhausted"
	case CodeInvalidTransition:
		return "InvalidTransition"
	case CodeNotAuthorized:
		return "NotAuthorized"
	case CodeNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// Error is a typed engine failure. The optional fields carry the
// structured detail each code promises: which field, which transition
// endpoints, which action, which entity.
type Error struct {
	Code    ErrorCode
	Message string

	// Field names the offending resource dimension for
	// CodeResourceLimitExceeded.
	Field string
	// From and Requested carry the transition endpoints for
	// CodeInvalidTransition.
	From      models.ServerState
	Requested models.ServerState
	// Action names the denied action for CodeNotAuthorized.
	Action Action
	// Entity names the missing entity kind for CodeNotFound.
	Entity string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch e.Code {
	case CodeResourceLimitExceeded:
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	case CodeInvalidTransition:
		return fmt.Sprintf("%s: cannot move from %s to %s", e.Code, e.From, e.Requested)
	case CodeNotAuthorized:
		return fmt.Sprintf("%s: action %s denied: %s", e.Code, e.Action, e.Message)
	case CodeNotFound:
		return fmt.Sprintf("%s: %s not found", e.Code, e.Entity)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// NewQuotaExceededError creates a QuotaExceeded error.
func NewQuotaExceededError(message string) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: message}
}

// NewResourceLimitExceededError creates a ResourceLimitExceeded error
// naming the offending field.
func NewResourceLimitExceededError(field, message string) *Error {
	return &Error{Code: CodeResourceLimitExceeded, Field: field, Message: message}
}

// NewNoCapacityError creates a NoCapacity error.
func NewNoCapacityError() *Error {
	return &Error{Code: CodeNoCapacity, Message: "no node has sufficient spare capacity"}
}

// NewExplicitNodeInsufficientCapacityError creates the explicit-node
// variant of the placement failure.
func NewExplicitNodeInsufficientCapacityError(nodeID string) *Error {
	return &Error{
		Code:    CodeExplicitNodeInsufficientCapacity,
		Message: fmt.Sprintf("node %s cannot accommodate the requested resources", nodeID),
	}
}

// NewPortSpaceExhaustedError creates a PortSpaceExhausted error.
func NewPortSpaceExhaustedError(ceiling int) *Error {
	return &Error{
		Code:    CodePortSpaceExhausted,
		Message: fmt.Sprintf("no free port below ceiling %d", ceiling),
	}
}

// NewInvalidTransitionError creates an InvalidTransition error with
// both endpoints.
func NewInvalidTransitionError(from, requested models.ServerState) *Error {
	return &Error{Code: CodeInvalidTransition, From: from, Requested: requested}
}

// NewNotAuthorizedError creates a NotAuthorized error for the action.
func NewNotAuthorizedError(action Action, reason string) *Error {
	return &Error{Code: CodeNotAuthorized, Action: action, Message: reason}
}

// NewNotFoundError creates a NotFound error for the entity kind.
func NewNotFoundError(entity string) *Error {
	return &Error{Code: CodeNotFound, Entity: entity}
}

// CodeOf extracts the engine error code, or 0 for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsNotFound returns true if the error is an engine NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsNotAuthorized returns true if the error is an authorization denial.
func IsNotAuthorized(err error) bool {
	return CodeOf(err) == CodeNotAuthorized
}

// IsInvalidTransition returns true for state machine precondition
// failures.
func IsInvalidTransition(err error) bool {
	return CodeOf(err) == CodeInvalidTransition
}
