package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"stock-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Item      string `json:"item,omitempty"`
	Location  string `json:"location,omitempty"`
	Requested string `json:"requested,omitempty"`
	Available string `json:"available,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp.RequestID = requestIDFromContext(r.Context())
	_ = json.NewEncoder(w).Encode(resp)
}

// statusForKind maps an engine error kind to its HTTP status.
func statusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidInput, core.KindMissingReason, core.KindSameLocation:
		return http.StatusBadRequest
	case core.KindInvalidQuantity:
		return http.StatusUnprocessableEntity
	case core.KindLocationNotFound, core.KindWarehouseNotFound, core.KindTenantNotFound:
		return http.StatusNotFound
	case core.KindInsufficientStock, core.KindInvariantViolation, core.KindLocationNotEmpty,
		core.KindDuplicateLocation, core.KindCapacityExceeded:
		return http.StatusConflict
	case core.KindConcurrencyTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError renders an error returned by the ApplicationService.
// Engine errors keep their kind and quantities; anything else is a 500 and is logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var se *core.StockError
	if !errors.As(err, &se) {
		log.Printf("[%s] %s %s: %v", requestIDFromContext(r.Context()), r.Method, r.URL.Path, err)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
		return
	}

	resp := errorResponse{
		Error:    se.Error(),
		Code:     string(se.Kind),
		Item:     se.Item,
		Location: se.Location,
	}
	if !se.Requested.IsZero() || !se.Available.IsZero() {
		resp.Requested = se.Requested.String()
		resp.Available = se.Available.String()
	}
	status := statusForKind(se.Kind)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeErrorResponse(w, r, resp, status)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeCreated writes a JSON response with status 201.
func writeCreated(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(v)
}
