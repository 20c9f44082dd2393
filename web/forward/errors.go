package forward

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mottu/patio-proxy/backend"
	"github.com/mottu/patio-proxy/internal/utils"
)

const maxDetailsLength = 512

// ErrorBody is the only error envelope the proxy answers with.
type ErrorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error carries the HTTP status and envelope of a failed request through
// handler code until it is written by WriteErr.
type Error struct {
	Status int
	Body   ErrorBody
}

func (e *Error) Error() string {
	if e.Body.Details != "" {
		return e.Body.Error + ": " + e.Body.Details
	}
	return e.Body.Error
}

// Validation is an input validation failure, answered with 400.
func Validation(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, Body: ErrorBody{Error: msg}}
}

func NotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, Body: ErrorBody{Error: msg}}
}

// Upstream relays the status of a non-2xx backend answer together with its
// text, truncated.
func Upstream(msg string, resp *backend.Response) *Error {
	return &Error{Status: resp.Status, Body: ErrorBody{
		Error:   msg,
		Status:  resp.Status,
		Details: utils.Truncate(string(resp.Body), maxDetailsLength),
	}}
}

// Transport covers network failures, timeouts and undecodable backend
// bodies, answered with 500.
func Transport(msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Body: ErrorBody{
		Error:   msg,
		Details: utils.Truncate(err.Error(), maxDetailsLength),
	}}
}

func WriteJson(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrorBody{Error: "failed to encode response", Details: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func WriteError(w http.ResponseWriter, status int, body ErrorBody) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// WriteErr writes err with the envelope policy. Errors that are not an
// *Error are treated as internal failures.
func WriteErr(w http.ResponseWriter, err error) {
	var e *Error
	if errors.As(err, &e) {
		WriteError(w, e.Status, e.Body)
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrorBody{Error: "internal error", Details: utils.Truncate(err.Error(), maxDetailsLength)})
}
