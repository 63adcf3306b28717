package models

import "errors"

// Common errors for control plane store operations.
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrUserDisabled       = errors.New("user account is disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInUse          = errors.New("user still owns servers")

	// Plan errors
	ErrPlanNotFound  = errors.New("plan not found")
	ErrDuplicatePlan = errors.New("plan already exists")

	// Node errors
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("node already exists")
	ErrNodeInUse     = errors.New("node still hosts servers")

	// Server errors
	ErrServerNotFound  = errors.New("server not found")
	ErrDuplicateServer = errors.New("server already exists")
	ErrPortTaken       = errors.New("port already allocated")

	// ErrStaleState indicates a guarded state update lost a race: the
	// row's state no longer matched the observed value at commit time.
	ErrStaleState = errors.New("server state changed concurrently")
)
