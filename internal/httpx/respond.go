package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
)

type errorResp struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Warning string `json:"warning,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, orders.ErrPartialApply):
		return http.StatusInternalServerError
	case errors.Is(err, orders.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to HTTP. data is attached only for partial applies, where the
// caller needs to see what did get written.
func writeError(w http.ResponseWriter, err error, data any) {
	status := statusOf(err)
	body := errorResp{Error: err.Error()}
	switch {
	case errors.Is(err, orders.ErrPartialApply):
		body.Code = "PARTIAL_APPLY"
		body.Warning = "order status and stock may be out of step; reconcile manually instead of retrying"
		body.Data = data
	case status == http.StatusUnprocessableEntity:
		body.Code = "VALIDATION"
	case status == http.StatusNotFound:
		body.Code = "NOT_FOUND"
	case status == http.StatusConflict:
		body.Code = "INVALID_TRANSITION"
	default:
		body.Code = "INTERNAL"
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func actorFrom(r *http.Request) orders.Actor {
	return orders.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Name: strings.TrimSpace(r.Header.Get(HeaderActorName)),
	}
}

// decodeBody treats an empty body as the zero value.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
