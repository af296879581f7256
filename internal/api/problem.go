package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "sjsage522/pricemonitor/pkg/errors"
	"sjsage522/pricemonitor/services/store"
)

// ProblemDetails follows RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
}

// WriteError writes a problem+json response
func WriteError(w http.ResponseWriter, status int, detail, instance string) {
	writeProblem(w, &ProblemDetails{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func writeProblem(w http.ResponseWriter, pd *ProblemDetails) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	json.NewEncoder(w).Encode(pd)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, detail, instance)
}

func WriteNotFound(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusNotFound, detail, instance)
}

// WriteCheckError maps a check failure onto a problem response. The detail is
// the user facing message of the error kind.
func WriteCheckError(w http.ResponseWriter, err error, instance string) {
	if errors.Is(err, store.ErrProductNotFound) {
		WriteNotFound(w, "The product does not exist.", instance)
		return
	}

	var ce *apperrors.CheckError
	if !errors.As(err, &ce) {
		WriteError(w, http.StatusInternalServerError, "An unexpected error occurred.", instance)
		return
	}

	status := statusFor(ce.Type)
	writeProblem(w, &ProblemDetails{
		Type:      "about:blank",
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    ce.UserMessage(),
		Instance:  instance,
		ErrorType: string(ce.Type),
	})
}

func statusFor(t apperrors.ErrorType) int {
	switch t {
	case apperrors.ErrorTypeInvalidURL,
		apperrors.ErrorTypeUnsupportedPlatform,
		apperrors.ErrorTypeInvalidPrice:
		return http.StatusBadRequest
	case apperrors.ErrorTypeExtractionFailed, apperrors.ErrorTypeParsing:
		return http.StatusUnprocessableEntity
	case apperrors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeNetworkTransient,
		apperrors.ErrorTypeNetworkPermanent,
		apperrors.ErrorTypeRetriesExhausted:
		return http.StatusBadGateway
	case apperrors.ErrorTypeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
