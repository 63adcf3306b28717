package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// across all log statements so aggregated logs stay queryable.
const (
	// Request correlation
	KeyRequestID = "request_id" // per-request correlation id
	KeyClientIP  = "client_ip"  // client IP address
	KeyRoute     = "route"      // matched HTTP route pattern
	KeyMethod    = "method"     // HTTP method
	KeyStatus    = "status"     // HTTP status code

	// Actor identification
	KeyUserID   = "user"     // acting user id
	KeyUsername = "username" // acting username
	KeyRole     = "role"     // user or admin
	KeyActor    = "actor"    // event actor kind: user, admin, system

	// Panel entities
	KeyServerID = "server" // server id
	KeyNodeID   = "node"   // node id
	KeyPlanID   = "plan"   // plan id
	KeyOwnerID  = "owner"  // server owner id
	KeyPort     = "port"   // allocated game port

	// Lifecycle
	KeyAction    = "action" // requested lifecycle action
	KeyFromState = "from"   // state before a transition
	KeyToState   = "to"     // state after a transition

	// Operation metadata
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorCode  = "error_code"  // engine error code name
)

// Field constructors for type safety.

// ServerID returns a slog.Attr for a server id.
func ServerID(id string) slog.Attr {
	return slog.String(KeyServerID, id)
}

// NodeID returns a slog.Attr for a node id.
func NodeID(id string) slog.Attr {
	return slog.String(KeyNodeID, id)
}

// Port returns a slog.Attr for an allocated port.
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}

// Action returns a slog.Attr for a lifecycle action.
func Action(a string) slog.Attr {
	return slog.String(KeyAction, a)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
