package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// quantity accepts a JSON number or a numeric string. Parsing is deferred so a
// non-numeric value is reported as INVALID_QUANTITY instead of a decode error.
type quantity string

func (q *quantity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*q = quantity(s)
		return nil
	}
	*q = quantity(b)
	return nil
}

func (q quantity) parse(field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(q)))
	if err != nil {
		return decimal.Zero, &core.StockError{
			Kind: core.KindInvalidQuantity,
			Msg:  fmt.Sprintf("%s must be numeric, got %q", field, string(q)),
		}
	}
	return v, nil
}

type locatedBody struct {
	Item      string   `json:"item"`
	Warehouse string   `json:"warehouse"`
	Location  string   `json:"location"`
	Qty       quantity `json:"qty"`
	Reference string   `json:"reference"`
}

// apiGetStock handles GET /api/companies/{code}/stock?item=&warehouse=&location=
func (h *Handler) apiGetStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.GetStockLevel(r.Context(), app.StockQueryRequest{
		CompanyCode:   companyCode(r),
		Item:          q.Get("item"),
		WarehouseCode: q.Get("warehouse"),
		LocationCode:  q.Get("location"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiReceive handles POST /api/companies/{code}/stock/receive
func (h *Handler) apiReceive(w http.ResponseWriter, r *http.Request) {
	var body locatedBody
	if !decodeJSON(w, r, &body) {
		return
	}
	qty, err := body.Qty.parse("qty")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCommand(w, r)(h.svc.Receive(r.Context(), app.ReceiveRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		WarehouseCode: body.Warehouse,
		LocationCode:  body.Location,
		Qty:           qty,
		Reference:     body.Reference,
		Actor:         actor(r),
	}))
}

// apiTransfer handles POST /api/companies/{code}/stock/transfer
func (h *Handler) apiTransfer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Item          string           `json:"item"`
		From          core.LocationRef `json:"from"`
		To            core.LocationRef `json:"to"`
		Qty           quantity         `json:"qty"`
		Reason        string           `json:"reason"`
		Reference     string           `json:"reference"`
		CorrelationID string           `json:"correlation_id"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	qty, err := body.Qty.parse("qty")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCommand(w, r)(h.svc.Transfer(r.Context(), app.TransferRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		FromWarehouse: body.From.WarehouseCode,
		FromLocation:  body.From.LocationCode,
		ToWarehouse:   body.To.WarehouseCode,
		ToLocation:    body.To.LocationCode,
		Qty:           qty,
		Reason:        body.Reason,
		Reference:     body.Reference,
		Actor:         actor(r),
		CorrelationID: body.CorrelationID,
	}))
}

// apiAdjust handles POST /api/companies/{code}/stock/adjust
func (h *Handler) apiAdjust(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Item      string   `json:"item"`
		Warehouse string   `json:"warehouse"`
		Location  string   `json:"location"`
		NewOnHand quantity `json:"new_on_hand"`
		Reason    string   `json:"reason"`
		Reference string   `json:"reference"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	newOnHand, err := body.NewOnHand.parse("new_on_hand")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCommand(w, r)(h.svc.Adjust(r.Context(), app.AdjustRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		WarehouseCode: body.Warehouse,
		LocationCode:  body.Location,
		NewOnHand:     newOnHand,
		Reason:        body.Reason,
		Reference:     body.Reference,
		Actor:         actor(r),
	}))
}

type reservationBody struct {
	locatedBody
	Kind string `json:"kind"`
}

func (h *Handler) reservationRequest(w http.ResponseWriter, r *http.Request) (app.ReservationRequest, bool) {
	var body reservationBody
	if !decodeJSON(w, r, &body) {
		return app.ReservationRequest{}, false
	}
	qty, err := body.Qty.parse("qty")
	if err != nil {
		writeServiceError(w, r, err)
		return app.ReservationRequest{}, false
	}
	return app.ReservationRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		WarehouseCode: body.Warehouse,
		LocationCode:  body.Location,
		Qty:           qty,
		Kind:          body.Kind,
		Reference:     body.Reference,
		Actor:         actor(r),
	}, true
}

// apiReserve handles POST /api/companies/{code}/stock/reserve
func (h *Handler) apiReserve(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reservationRequest(w, r)
	if !ok {
		return
	}
	h.respondCommand(w, r)(h.svc.Reserve(r.Context(), req))
}

// apiRelease handles POST /api/companies/{code}/stock/release
func (h *Handler) apiRelease(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reservationRequest(w, r)
	if !ok {
		return
	}
	h.respondCommand(w, r)(h.svc.Release(r.Context(), req))
}

// apiPromote handles POST /api/companies/{code}/stock/promote
func (h *Handler) apiPromote(w http.ResponseWriter, r *http.Request) {
	var body locatedBody
	if !decodeJSON(w, r, &body) {
		return
	}
	qty, err := body.Qty.parse("qty")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCommand(w, r)(h.svc.Promote(r.Context(), app.PromoteRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		WarehouseCode: body.Warehouse,
		LocationCode:  body.Location,
		Qty:           qty,
		Reference:     body.Reference,
		Actor:         actor(r),
	}))
}

// apiIssue handles POST /api/companies/{code}/stock/issue
func (h *Handler) apiIssue(w http.ResponseWriter, r *http.Request) {
	var body locatedBody
	if !decodeJSON(w, r, &body) {
		return
	}
	qty, err := body.Qty.parse("qty")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCommand(w, r)(h.svc.Issue(r.Context(), app.IssueRequest{
		CompanyCode:   companyCode(r),
		Item:          body.Item,
		WarehouseCode: body.Warehouse,
		LocationCode:  body.Location,
		Qty:           qty,
		Reference:     body.Reference,
		Actor:         actor(r),
	}))
}

// respondCommand returns a sink for a command's (result, error) pair.
func (h *Handler) respondCommand(w http.ResponseWriter, r *http.Request) func(*app.CommandResult, error) {
	return func(result *app.CommandResult, err error) {
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, result)
	}
}

// apiListMovements handles GET /api/companies/{code}/movements
//
// Query parameters (one selector): stock_level_id, correlation_id, actor (+limit),
// or from/to as RFC 3339 timestamps.
func (h *Handler) apiListMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.MovementQuery{
		CompanyCode:   companyCode(r),
		CorrelationID: q.Get("correlation_id"),
		Actor:         q.Get("actor"),
	}

	if v := q.Get("stock_level_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, "stock_level_id must be a positive integer", string(core.KindInvalidInput), http.StatusBadRequest)
			return
		}
		req.StockLevelID = id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, "limit must be a positive integer", string(core.KindInvalidInput), http.StatusBadRequest)
			return
		}
		req.Limit = n
	}
	for name, dst := range map[string]*time.Time{"from": &req.From, "to": &req.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, name+" must be an RFC 3339 timestamp", string(core.KindInvalidInput), http.StatusBadRequest)
			return
		}
		*dst = t
	}

	result, err := h.svc.ListMovements(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// apiVerifyStockLevel handles GET /api/companies/{code}/stock-levels/{id}/verify
func (h *Handler) apiVerifyStockLevel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid stock level id", string(core.KindInvalidInput), http.StatusBadRequest)
		return
	}
	result, err := h.svc.VerifyStockLevel(r.Context(), companyCode(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
