// Copyright (c) 2026 Fieldvine. All rights reserved.
// Author: dev@fieldvine.io

// Package respond provides HTTP response helpers used by all API handlers.
//
// # Architecture
//
// This package centralizes the presentation logic for HTTP responses.
// Every response (success or error) follows the same flat JSON envelope
// `{success, message, ...}` that the web and mobile clients parse. The
// envelope shape is a wire contract; changing it breaks every deployed client.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fieldvine/fieldvine/internal/platform/apperr"
	"github.com/fieldvine/fieldvine/internal/platform/ctxkey"
)

// Envelope is the flat JSON envelope for API responses.
//
// Success responses set Success=true and may carry additional fields in
// Extra, which are flattened into the top-level object during encoding.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	// Extra fields are merged into the top-level JSON object.
	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(e.Extra)+2)
	for key, value := range e.Extra {
		payload[key] = value
	}
	payload["success"] = e.Success
	payload["message"] = e.Message
	return json.Marshal(payload)
}

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// OK writes a 200 success envelope with the given message.
func OK(writer http.ResponseWriter, message string) {
	JSON(writer, http.StatusOK, Envelope{Success: true, Message: message})
}

// OKWith writes a 200 success envelope with additional top-level fields.
func OKWith(writer http.ResponseWriter, message string, extra map[string]any) {
	JSON(writer, http.StatusOK, Envelope{Success: true, Message: message, Extra: extra})
}

// Error converts any Go error into a standardized JSON API error response.
//
// The failure envelope carries `{success:false, message, code, details?}`.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		// Unexpected internal error: log full details but hide them from the client for security.
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", getRequestIDFromContext(request)),
		)
		appError = apperr.Internal(err)
	}

	// Always log 5xx errors as they indicate server-side issues.
	if appError.HTTPStatus >= 500 {
		logger := getLoggerFromContext(request)
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", getRequestIDFromContext(request)),
			slog.Any("cause", appError.Cause),
		)
	}

	extra := map[string]any{"code": appError.Code}
	if len(appError.Details) > 0 {
		extra["details"] = appError.Details
	}

	JSON(writer, appError.HTTPStatus, Envelope{
		Success: false,
		Message: appError.Message,
		Extra:   extra,
	})
}

// getLoggerFromContext extracts the per-request logger.
func getLoggerFromContext(request *http.Request) *slog.Logger {
	if logger, ok := request.Context().Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// getRequestIDFromContext extracts the X-Request-ID for log correlation.
func getRequestIDFromContext(request *http.Request) string {
	if id, ok := request.Context().Value(ctxkey.KeyRequestID).(string); ok {
		return id
	}
	return ""
}
