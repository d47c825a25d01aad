package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/go-chi/chi/v5"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Health (public) ───────────────────────────────────────────────────────
	r.Get("/api/health", h.health)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Route("/api/companies/{code}", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequireCompany)
		r.Use(CommandBody(1 << 20)) // 1 MB

		// ── Directory ─────────────────────────────────────────────────────────
		r.Get("/warehouses", h.apiListWarehouses)
		r.Post("/warehouses", h.apiCreateWarehouse)
		r.Post("/warehouses/{wh}/deactivate", h.apiDeactivateWarehouse)
		r.Get("/warehouses/{wh}/locations", h.apiListLocations)
		r.Post("/warehouses/{wh}/locations", h.apiCreateLocation)
		r.Post("/warehouses/{wh}/locations/{loc}/deactivate", h.apiDeactivateLocation)
		r.Post("/warehouses/{wh}/locations/{loc}/activate", h.apiReactivateLocation)
		r.Get("/barcodes/{barcode}", h.apiLookupBarcode)

		// ── Stock ─────────────────────────────────────────────────────────────
		r.Get("/stock", h.apiGetStock)
		r.Post("/stock/receive", h.apiReceive)
		r.Post("/stock/transfer", h.apiTransfer)
		r.Post("/stock/adjust", h.apiAdjust)
		r.Post("/stock/reserve", h.apiReserve)
		r.Post("/stock/release", h.apiRelease)
		r.Post("/stock/promote", h.apiPromote)
		r.Post("/stock/issue", h.apiIssue)

		// ── Audit ─────────────────────────────────────────────────────────────
		r.Get("/movements", h.apiListMovements)
		r.Get("/stock-levels/{id}/verify", h.apiVerifyStockLevel)
	})

	h.router = r
	return r
}

// health reports whether the database and cache are reachable.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	if err := h.svc.Health(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(response{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, response{Status: "ok"})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// locationParam builds a LocationRef from the {wh} and {loc} URL parameters.
func locationParam(r *http.Request) core.LocationRef {
	return core.LocationRef{WarehouseCode: chi.URLParam(r, "wh"), LocationCode: chi.URLParam(r, "loc")}
}

// boolQuery reports whether query parameter name is "true" or "1".
func boolQuery(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// decodeJSON decodes the request body into v. On failure it writes 413 when the
// CommandBody limit was hit, 400 otherwise, and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
