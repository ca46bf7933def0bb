package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/fetcher"
	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/ruleset"
	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// maxBodyBytes bounds request bodies; batch payloads can be large.
const maxBodyBytes = 32 << 20

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// inputError marks a client mistake that maps to 400.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	var (
		input     *inputError
		missing   *normalize.MissingRequiredFieldError
		transform *normalize.TransformError
	)
	switch {
	case errors.As(err, &input),
		errors.Is(err, workflow.ErrInvalidDefinition),
		errors.Is(err, workflow.ErrDisabled),
		errors.Is(err, ruleset.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrProtected):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &missing), errors.As(err, &transform):
		return http.StatusUnprocessableEntity
	case fetcher.IsLogical(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) ok(w http.ResponseWriter, data any, message string) {
	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: data, Message: message})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.failAs(w, r, err, err.Error())
}

// failAs reports err with a caller chosen message; the status still comes
// from err.
func (s *Server) failAs(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r.Context())),
			zap.Error(err),
		)
	}
	s.writeJSON(w, status, envelope{Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write JSON failed", zap.Error(err))
	}
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
