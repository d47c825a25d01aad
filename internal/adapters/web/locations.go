package web

import (
	"net/http"

	"stock-ledger/internal/app"

	"github.com/go-chi/chi/v5"
)

// apiListWarehouses handles GET /api/companies/{code}/warehouses[?include_inactive=true]
func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context(), companyCode(r), boolQuery(r, "include_inactive"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateWarehouse handles POST /api/companies/{code}/warehouses
func (h *Handler) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	wh, err := h.svc.CreateWarehouse(r.Context(), app.CreateWarehouseRequest{
		CompanyCode: companyCode(r),
		Code:        body.Code,
		Name:        body.Name,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, wh)
}

// apiDeactivateWarehouse handles POST /api/companies/{code}/warehouses/{wh}/deactivate
func (h *Handler) apiDeactivateWarehouse(w http.ResponseWriter, r *http.Request) {
	wh, err := h.svc.DeactivateWarehouse(r.Context(), companyCode(r), chi.URLParam(r, "wh"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, wh)
}

// apiListLocations handles GET /api/companies/{code}/warehouses/{wh}/locations[?include_inactive=true]
func (h *Handler) apiListLocations(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLocations(r.Context(), companyCode(r), chi.URLParam(r, "wh"), boolQuery(r, "include_inactive"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiCreateLocation handles POST /api/companies/{code}/warehouses/{wh}/locations
func (h *Handler) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code     string    `json:"code"`
		Barcode  string    `json:"barcode"`
		Type     string    `json:"type"`
		Capacity *quantity `json:"capacity"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.CreateLocationRequest{
		CompanyCode:   companyCode(r),
		WarehouseCode: chi.URLParam(r, "wh"),
		Code:          body.Code,
		Barcode:       body.Barcode,
		Type:          body.Type,
	}
	if body.Capacity != nil && *body.Capacity != "" {
		c, err := body.Capacity.parse("capacity")
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		req.Capacity = &c
	}

	loc, err := h.svc.CreateLocation(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeCreated(w, loc)
}

// apiDeactivateLocation handles POST /api/companies/{code}/warehouses/{wh}/locations/{loc}/deactivate
func (h *Handler) apiDeactivateLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.DeactivateLocation(r.Context(), companyCode(r), locationParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, loc)
}

// apiReactivateLocation handles POST /api/companies/{code}/warehouses/{wh}/locations/{loc}/activate
func (h *Handler) apiReactivateLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.ReactivateLocation(r.Context(), companyCode(r), locationParam(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, loc)
}

// apiLookupBarcode handles GET /api/companies/{code}/barcodes/{barcode}[?warehouse=WH1]
func (h *Handler) apiLookupBarcode(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.LookupBarcode(r.Context(), companyCode(r), r.URL.Query().Get("warehouse"), chi.URLParam(r, "barcode"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
