// Package handlers holds the response helpers shared by the HTTP handlers
// and the endpoints that belong to no domain.
package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"blogcore/internal/backend"
	"blogcore/internal/session/service"
	"blogcore/pkg/logger"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Handler: failed to encode response: %v", err)
	}
}

// WriteError maps err to a status by its kind and writes it as JSON. The
// client only sees a fixed message for the kind; the detail is logged.
func WriteError(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: %v", err)
	} else {
		logger.Sugar.Infof("Handler: %v", err)
	}
	WriteJSON(w, status, ErrorResponse{Error: MessageFor(kind), Kind: kind.String()})
}

// MessageFor is the client-facing message for a kind.
func MessageFor(kind backend.Kind) string {
	switch kind {
	case backend.KindValidation:
		return "Invalid request"
	case backend.KindInvalidCredentials:
		return "Invalid email or password"
	case backend.KindUnauthorized:
		return "Unauthorized"
	case backend.KindNotFound:
		return "Not found"
	case backend.KindConflict:
		return "Already exists"
	case backend.KindNetwork:
		return "Backend unavailable"
	default:
		return "Internal server error"
	}
}

// KindOf reads the kind from either a session or a backend error.
func KindOf(err error) backend.Kind {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return backend.KindOf(err)
}

func StatusFor(kind backend.Kind) int {
	switch kind {
	case backend.KindValidation:
		return http.StatusBadRequest
	case backend.KindInvalidCredentials, backend.KindUnauthorized:
		return http.StatusUnauthorized
	case backend.KindNotFound:
		return http.StatusNotFound
	case backend.KindConflict:
		return http.StatusConflict
	case backend.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into v, answering itself on failure:
// 415 unless the body is declared as application/json, 400 if it does not
// decode.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		WriteJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{Error: "Content-Type must be application/json", Kind: backend.KindValidation.String()})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Kind: backend.KindValidation.String()})
		return false
	}
	return true
}
