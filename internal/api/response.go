// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
)

// ErrorBody is the error envelope every failed request returns.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON encodes data with the JSON content type and status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes the error envelope with an explicit status and code.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteFault maps a classified error to its HTTP status and writes the
// envelope. Server-side kinds hide the internal message.
func WriteFault(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()

	switch status {
	case http.StatusInternalServerError:
		logging.CtxErr(r.Context(), err).Str("kind", kind.String()).Msg("Request failed")
		message = "internal server error"
	case http.StatusGatewayTimeout:
		logging.CtxWarn(r.Context()).Str("kind", kind.String()).Msg("Request timed out")
		message = "request timed out"
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	WriteError(w, status, kind.String(), message)
}

// statusForKind is the error-kind to HTTP-status table. NotFound is absent
// on purpose: unknown recommendation roots answer 200 with an empty list,
// and nothing else surfaces a NotFound to the client.
func statusForKind(kind fault.Kind) int {
	switch kind {
	case fault.InvalidWeights, fault.InvalidParam:
		return http.StatusBadRequest
	case fault.Unauthorized:
		return http.StatusUnauthorized
	case fault.Cancelled, fault.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
