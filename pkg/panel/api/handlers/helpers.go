package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wardenhq/warden/pkg/panel/api/middleware"
	"github.com/wardenhq/warden/pkg/panel/engine"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// actorFromRequest builds the engine actor for the authenticated caller.
// Returns a zero actor and false when the request carries no claims.
func actorFromRequest(r *http.Request) (engine.Actor, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return engine.Actor{}, false
	}
	return engine.Actor{ID: claims.UserID, Admin: claims.IsAdmin()}, true
}

// writeEngineError maps the engine's typed failures onto HTTP problem
// responses. Every engine code is an expected business outcome with a
// stable status; anything untyped is a 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var e *engine.Error
	if !errors.As(err, &e) {
		InternalServerError(w, "Internal error")
		return
	}

	switch e.Code {
	case engine.CodeNotFound:
		NotFound(w, e.Error())
	case engine.CodeNotAuthorized:
		Forbidden(w, e.Error())
	case engine.CodeQuotaExceeded:
		Forbidden(w, e.Error())
	case engine.CodeResourceLimitExceeded:
		UnprocessableEntity(w, e.Error())
	case engine.CodeInvalidTransition:
		Conflict(w, e.Error())
	case engine.CodeNoCapacity,
		engine.CodeExplicitNodeInsufficientCapacity,
		engine.CodePortSpaceExhausted:
		Conflict(w, e.Error())
	default:
		InternalServerError(w, "Internal error")
	}
}
