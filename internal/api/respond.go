package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/inventory-control/internal/domain/inventory"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps an inventory error kind onto an HTTP status.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := inventory.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondJSON(w, status, errorResponse{Error: message, Kind: kind.String()})
}

func statusForKind(kind inventory.Kind) int {
	switch kind {
	case inventory.KindInvalidValue, inventory.KindUnitMismatch, inventory.KindUnderflow:
		return http.StatusBadRequest
	case inventory.KindInsufficientAvailable, inventory.KindInsufficientOnHand,
		inventory.KindInvariantViolation, inventory.KindConflict, inventory.KindAlreadyExists:
		return http.StatusConflict
	case inventory.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondJSONError(w, msg, http.StatusBadRequest)
		return false
	}
	return true
}
