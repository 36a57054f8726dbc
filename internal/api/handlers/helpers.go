// Package handlers contains the HTTP endpoints of the API surface.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/get-me-through/server/internal/api/problem"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

const maxBodyBytes = 1 << 20 // request bodies larger than 1 MiB are rejected

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	// The status line is already out; an encode error here can only be a
	// broken connection, which the caller cannot act on.
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads, decodes and validates a request body into dst. On
// failure it writes the problem response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, env string, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Malformed request body", err, env)
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			details := make(map[string]interface{}, len(fieldErrors))
			for _, fieldErr := range fieldErrors {
				details[fieldErr.Field()] = validationMessage(fieldErr)
			}
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", nil, env,
				problem.WithErrors(details))
			return false
		}
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Validation failed", err, env)
		return false
	}
	return true
}

func validationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	default:
		return fmt.Sprintf("failed validation rule %q", err.Tag())
	}
}

// pageParams reads ?page= and ?perPage= query values, defaulting sanely.
func pageParams(r *http.Request) (page, perPage int) {
	page = queryInt(r, "page", 1)
	perPage = queryInt(r, "perPage", 0)
	return page, perPage
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
