// Package httputil centralizes JSON response writing and operation error
// translation for HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"castellan/internal/proto"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore
	// encoding errors. The response body may be incomplete, but headers are
	// already sent.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates a transport-agnostic operation error into an HTTP
// status code and error envelope. The full error value rides in the body so
// clients can decode the exact variant.
func WriteError(w http.ResponseWriter, err error) {
	var opErr *proto.OperationError
	if errors.As(err, &opErr) {
		WriteJSON(w, StatusForOperationError(opErr), map[string]*proto.OperationError{
			"error": opErr,
		})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, map[string]*proto.OperationError{
		"error": proto.NewOperationError(proto.OpBackend),
	})
}

// StatusForOperationError maps operation error kinds to HTTP status codes.
func StatusForOperationError(err *proto.OperationError) int {
	switch err.Kind {
	case proto.OpNotAuthenticated:
		return http.StatusUnauthorized
	case proto.OpAccessDenied, proto.OpSystemProtectedObject:
		return http.StatusForbidden
	case proto.OpNoMatchingEntries:
		return http.StatusNotFound
	case proto.OpEmptyRequest, proto.OpSchemaViolation, proto.OpFilterGeneration,
		proto.OpFilterUUIDResolution, proto.OpInvalidUUID, proto.OpInvalidRequestState,
		proto.OpInvalidAuthState, proto.OpInvalidAttributeName, proto.OpInvalidAttribute,
		proto.OpInvalidEntryState:
		return http.StatusBadRequest
	case proto.OpInvalidSessionState:
		return http.StatusConflict
	case proto.OpConsistencyError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
