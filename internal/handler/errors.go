package handler

import (
	"context"
	"errors"
	"net/http"

	apperrors "attendance-sync-api/pkg/errors"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse wraps a message and optional payload.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorHandler provides centralized error handling functionality for handlers
type ErrorHandler struct {
	Logger zerolog.Logger
}

// NewErrorHandler creates a new ErrorHandler instance
func NewErrorHandler(logger zerolog.Logger) *ErrorHandler {
	return &ErrorHandler{Logger: logger}
}

// SendErrorResponse sends a structured error response
func (e *ErrorHandler) SendErrorResponse(w http.ResponseWriter, statusCode int, message, code string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		e.Logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

// SendSuccessResponse sends a structured success response
func (e *ErrorHandler) SendSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	e.SendJSONResponse(w, statusCode, SuccessResponse{Message: message, Data: data})
}

// SendJSONResponse sends a generic JSON response
func (e *ErrorHandler) SendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		e.Logger.Error().Err(err).Msg("Failed to encode JSON response")
		e.SendErrorResponse(w, http.StatusInternalServerError, "Failed to encode response", "ENCODING_ERROR", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(append(body, '\n'))
}

// HandleServiceError maps an error returned by a service to an HTTP response.
// Client errors are logged at debug level, server errors at error level.
func (e *ErrorHandler) HandleServiceError(w http.ResponseWriter, err error, operation string) {
	if appErr, ok := apperrors.As(err); ok {
		status := appErr.GetHTTPStatus()
		event := e.Logger.Debug()
		if status >= http.StatusInternalServerError {
			event = e.Logger.Error()
		}
		event.Err(err).Str("operation", operation).Int("status", status).Msg("Request failed")
		e.SendErrorResponse(w, status, appErr.Message, string(appErr.Code), appErr.Details)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		e.Logger.Warn().Err(err).Str("operation", operation).Msg("Request timed out")
		e.SendErrorResponse(w, http.StatusRequestTimeout, "Operation timed out", string(apperrors.ErrorCodeTimeout), nil)
		return
	}

	e.Logger.Error().Err(err).Str("operation", operation).Msg("Unexpected error")
	e.SendErrorResponse(w, http.StatusInternalServerError, "Failed to "+operation, string(apperrors.ErrorCodeInternal), nil)
}

// HandleValidationErrors handles validation errors and sends appropriate response
func (e *ErrorHandler) HandleValidationErrors(w http.ResponseWriter, validationErrors map[string]string) {
	if len(validationErrors) > 0 {
		e.SendErrorResponse(w, http.StatusBadRequest, "Validation failed", string(apperrors.ErrorCodeValidation), validationErrors)
	}
}

// HandleBadRequest sends a 400 with the given message.
func (e *ErrorHandler) HandleBadRequest(w http.ResponseWriter, message string) {
	e.SendErrorResponse(w, http.StatusBadRequest, message, string(apperrors.ErrorCodeBadRequest), nil)
}

// HandleJSONDecodeError handles JSON decoding errors
func (e *ErrorHandler) HandleJSONDecodeError(w http.ResponseWriter, err error) {
	e.Logger.Debug().Err(err).Msg("JSON decode error")
	e.SendErrorResponse(w, http.StatusBadRequest, "Invalid JSON format", string(apperrors.ErrorCodeInvalidJSON), nil)
}

// ParseAndValidateUUID parses and validates UUID from string
func (e *ErrorHandler) ParseAndValidateUUID(w http.ResponseWriter, idStr string) (uuid.UUID, bool) {
	if idStr == "" {
		e.SendErrorResponse(w, http.StatusBadRequest, "ID is required", "INVALID_UUID", nil)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		e.Logger.Debug().Err(err).Str("id", idStr).Msg("UUID parse error")
		e.SendErrorResponse(w, http.StatusBadRequest, "Invalid UUID format", "INVALID_UUID", nil)
		return uuid.Nil, false
	}

	return id, true
}
