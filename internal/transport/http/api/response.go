package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/leave"
)

func init() {
	// Day quantities are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     *Error `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out; a failed body write has nowhere to go
	_ = json.NewEncoder(w).Encode(payload)
}

func Success(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Created(w http.ResponseWriter, data any, requestID string) {
	WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, RequestID: requestID})
}

func Fail(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message}, RequestID: requestID})
}

func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any, requestID string) {
	WriteJSON(w, status, Envelope{Success: false, Error: &Error{Code: code, Message: message, Details: details}, RequestID: requestID})
}

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(kind leave.Kind) int {
	switch kind {
	case leave.KindValidation, leave.KindInsufficientBalance:
		return http.StatusBadRequest
	case leave.KindInvalidTransition, leave.KindConflict:
		return http.StatusConflict
	case leave.KindNotFound:
		return http.StatusNotFound
	case leave.KindForbidden:
		return http.StatusForbidden
	case leave.KindRetryable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// FailError writes err as an envelope. Server-side failures are logged through the request
// logger and reported to the caller without internals.
func FailError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	kind := leave.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("kind", kind.String()).Msg("request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	var verr *leave.ValidationError
	if errors.As(err, &verr) {
		FailWithDetails(w, status, kind.String(), verr.Reason, map[string]any{"rule": verr.Rule}, requestID)
		return
	}
	Fail(w, status, kind.String(), leave.Reason(err), requestID)
}
