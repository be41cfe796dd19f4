package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type OrdersHandler struct {
	Service *fulfillment.Service
	Logger  *zap.Logger
}

type bankReq struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

func (b bankReq) account() orders.BankAccount {
	return orders.BankAccount{BankName: b.BankName, AccountNumber: b.AccountNumber, AccountHolder: b.AccountHolder}
}

type HandoverReq struct {
	Courier        string `json:"courier"`
	TrackingNumber string `json:"tracking_number"`
	DeliveryPerson string `json:"delivery_person"`
}

type ReasonReq struct {
	Reason string  `json:"reason"`
	Bank   bankReq `json:"bank"`
}

type TransitionResp struct {
	Order      orders.Order      `json:"order"`
	Movement   *inventory.Record `json:"movement,omitempty"`
	Shortfalls []inventory.Entry `json:"shortfalls,omitempty"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Post("/approve", h.simple(h.Service.Approve))
		r.Post("/handover", h.handover)
		r.Post("/deliver", h.simple(h.Service.ConfirmDelivered))
		r.Post("/fail", h.simple(h.Service.MarkFailed))
		r.Post("/cancel", h.cancel)
		r.Post("/return-request", h.requestReturn)
		r.Post("/return-accept", h.simple(h.Service.AcceptReturn))
		r.Post("/return-complete", h.completeReturn)
		r.Post("/refund/confirm", h.simple(h.Service.ConfirmRefund))
		r.Put("/refund/bank", h.refundBank)
		r.Get("/movements", h.movements)
		r.Get("/movements/check", h.checkMovements)
	})
	r.Get("/track", h.track)
}

func (h *OrdersHandler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func requestCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

type simpleOp func(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error)

// simple wraps operations that take nothing but the order and the actor.
func (h *OrdersHandler) simple(op simpleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := requestCtx(r)
		defer cancel()

		o, err := op(ctx, chi.URLParam(r, "id"), actorFrom(r))
		if err != nil {
			h.fail(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *OrdersHandler) handover(w http.ResponseWriter, r *http.Request) {
	var req HandoverReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	t, err := h.Service.Handover(ctx, chi.URLParam(r, "id"), fulfillment.HandoverInput{
		Courier:        req.Courier,
		TrackingNumber: req.TrackingNumber,
		DeliveryPerson: req.DeliveryPerson,
	}, actorFrom(r))
	h.transition(w, r, t, err)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	o, err := h.Service.Cancel(ctx, chi.URLParam(r, "id"), fulfillment.CancelInput{Reason: req.Reason, Bank: req.Bank.account()}, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) requestReturn(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	o, err := h.Service.RequestReturn(ctx, chi.URLParam(r, "id"), fulfillment.ReturnInput{Reason: req.Reason, Bank: req.Bank.account()}, actorFrom(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) completeReturn(w http.ResponseWriter, r *http.Request) {
	var req ReasonReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	t, err := h.Service.CompleteReturn(ctx, chi.URLParam(r, "id"), fulfillment.ReturnInput{Reason: req.Reason, Bank: req.Bank.account()}, actorFrom(r))
	h.transition(w, r, t, err)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, t fulfillment.Transition, err error) {
	resp := TransitionResp{Order: t.Order, Shortfalls: t.Movement.Shortfalls()}
	if t.Movement.Record.Code != "" {
		rec := t.Movement.Record
		resp.Movement = &rec
	}
	if err != nil {
		var data any
		if t.Order.ID != "" {
			data = resp
		}
		h.fail(w, r, err, data)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrdersHandler) movements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r)
	defer cancel()

	recs, err := h.Service.Movements(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if recs == nil {
		recs = []inventory.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *OrdersHandler) refundBank(w http.ResponseWriter, r *http.Request) {
	var req bankReq
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Code: "BAD_REQUEST", Error: "invalid json"})
		return
	}
	ctx, cancel := requestCtx(r)
	defer cancel()

	o, err := h.Service.AttachRefundBank(ctx, chi.URLParam(r, "id"), req.account(), actorFrom(r))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// checkMovements answers 200 when the order's movements match its status, PARTIAL_APPLY otherwise.
func (h *OrdersHandler) checkMovements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Service.CheckMovements(ctx, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"consistent": true})
}

func (h *OrdersHandler) track(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	v, err := h.Service.TrackOrder(ctx, q.Get("code"), q.Get("phone"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error, data any) {
	if status := statusOf(err); status >= http.StatusInternalServerError {
		h.log().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeError(w, err, data)
}
