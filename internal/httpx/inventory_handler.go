package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
)

type InventoryHandler struct {
	Recorder *inventory.Recorder
	Logger   *zap.Logger
}

type ReceiptLineReq struct {
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
}

type ReceiptReq struct {
	Note  string           `json:"note"`
	Lines []ReceiptLineReq `json:"lines"`
}

type MovementResp struct {
	Movement   inventory.Record  `json:"movement"`
	Entries    []inventory.Entry `json:"entries"`
	Shortfalls []inventory.Entry `json:"shortfalls,omitempty"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Post("/receipts", h.receipt)
	r.Get("/movements/{code}", h.movement)
	r.Get("/variants/{id}/stock", h.stock)
	r.Put("/variants/{id}/stock", h.setStock)
}

type StockReq struct {
	Stock *int `json:"stock"`
}

type StocktakeResp struct {
	VariantID string            `json:"variant_id"`
	Stock     int               `json:"stock"`
	Movement  *inventory.Record `json:"movement,omitempty"`
	Entries   []inventory.Entry `json:"entries,omitempty"`
}

func (h *InventoryHandler) receipt(w http.ResponseWriter, r *http.Request) {
	var req ReceiptReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	lines := make([]inventory.MovementLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, inventory.MovementLine{
			VariantID:   l.VariantID,
			Quantity:    l.Quantity,
			ProductName: l.ProductName,
			VariantName: l.VariantName,
		})
	}
	res, err := h.Recorder.RecordReceipt(ctx, inventory.ReceiptInput{Actor: actorFrom(r), Note: req.Note, Lines: lines})
	resp := MovementResp{Movement: res.Record, Entries: res.Entries, Shortfalls: res.Shortfalls()}
	if err != nil {
		var data any
		if res.Record.Code != "" {
			data = resp
		}
		if statusOf(err) >= http.StatusInternalServerError && h.Logger != nil {
			h.Logger.Error("record receipt", zap.Error(err))
		}
		writeError(w, err, data)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *InventoryHandler) movement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r)
	defer cancel()

	rec, err := h.Recorder.Movement(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) stock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	n, err := h.Recorder.StockLevel(ctx, id)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variant_id": id, "stock": n})
}

// setStock takes a stocktake count; the difference to the ledger is booked as a movement.
func (h *InventoryHandler) setStock(w http.ResponseWriter, r *http.Request) {
	var req StockReq
	if err := decodeBody(r, &req); err != nil || req.Stock == nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "body must be {\"stock\": <int>}"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	id := chi.URLParam(r, "id")
	res, err := h.Recorder.Stocktake(ctx, id, *req.Stock, actorFrom(r))
	resp := StocktakeResp{VariantID: id, Stock: *req.Stock, Entries: res.Entries}
	if res.Record.Code != "" {
		rec := res.Record
		resp.Movement = &rec
	}
	if err != nil {
		var data any
		if resp.Movement != nil {
			data = resp
		}
		if statusOf(err) >= http.StatusInternalServerError && h.Logger != nil {
			h.Logger.Error("stocktake", zap.String("variant", id), zap.Error(err))
		}
		writeError(w, err, data)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
