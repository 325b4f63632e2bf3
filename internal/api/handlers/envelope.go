package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"eventanalyzer/pkg/errors"
	"eventanalyzer/pkg/logger"
	"eventanalyzer/pkg/requestid"
)

// Envelope wraps every API response
type Envelope struct {
	Code    int         `json:"code"`   // 0 success, 1 failure
	Status  string      `json:"status"` // machine-readable code, "ok" on success
	Message string      `json:"message"`
	Result  interface{} `json:"result,omitempty"`
}

// ModelRef is returned by routes that write a single record
type ModelRef struct {
	ModelObjectID string `json:"modelObjectId"`
}

// httpStatus maps an error code to a transport status
func httpStatus(code string) int {
	switch code {
	case "ok":
		return http.StatusOK
	case "invalid_input", "unknown_event", "unknown_category", "invalid_distribution",
		"input_shape", "unsupported_algorithm":
		return http.StatusBadRequest
	case "not_found", "no_models_for_tag", "empty_model_set":
		return http.StatusNotFound
	case "catalog_conflict", "conflict":
		return http.StatusConflict
	case "convergence", "scoring":
		return http.StatusUnprocessableEntity
	case "rate_limited":
		return http.StatusTooManyRequests
	case "unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, result interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Code: 0, Status: "ok", Message: "success", Result: result})
}

// writeError reports err to the caller. Errors outside the domain taxonomy are logged,
// sent to the error tracker and replaced by a generic message carrying the request id.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, route string, err error) {
	ctx := r.Context()
	code := errors.Code(err)
	message := err.Error()

	if errors.IsExpected(err) {
		log.WithContext(ctx).Infow("Request rejected", "route", route, "status", code, "error", err)
	} else {
		log.ErrorWithContext(ctx, err, map[string]string{"route": route})
		message = fmt.Sprintf("internal error (request_id=%s)", requestid.From(ctx))
		if code == "unavailable" {
			message = fmt.Sprintf("service unavailable (request_id=%s)", requestid.From(ctx))
		}
	}

	writeJSON(w, httpStatus(code), Envelope{Code: 1, Status: code, Message: message})
}

// decode reads a JSON object body into dst
func decode(r *http.Request, dst interface{}) error {
	return decodeBody(r, dst, false)
}

// decodeOptional is decode for routes whose parameters all have defaults
func decodeOptional(r *http.Request, dst interface{}) error {
	return decodeBody(r, dst, true)
}

func decodeBody(r *http.Request, dst interface{}, allowEmpty bool) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.NewValidationError("body", fmt.Sprintf("larger than %d bytes", tooLarge.Limit), nil)
		}
		return errors.NewValidationError("body", "unreadable", nil)
	}
	if allowEmpty && len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.NewValidationError("body", "not a JSON object", err.Error())
	}
	return nil
}
