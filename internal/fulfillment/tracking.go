package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// errTrackNotFound is the only answer for a failed lookup, whichever half was wrong.
var errTrackNotFound = fmt.Errorf("%w: no order matches this code and phone number", orders.ErrNotFound)

// TrackingView is what an anonymous customer may see of an order.
type TrackingView struct {
	Code           string               `json:"code"`
	Status         orders.Status        `json:"status"`
	PaymentMethod  orders.PaymentMethod `json:"payment_method"`
	PaymentStatus  orders.PaymentStatus `json:"payment_status"`
	CustomerName   string               `json:"customer_name"`
	Courier        string               `json:"courier,omitempty"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	DeliveredAt    *time.Time           `json:"delivered_at,omitempty"`
	Total          decimal.Decimal      `json:"total"`
	ShippingFee    decimal.Decimal      `json:"shipping_fee"`
	Items          []TrackingItem       `json:"items"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type TrackingItem struct {
	Name      string          `json:"name"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func viewOf(o orders.Order) TrackingView {
	v := TrackingView{
		Code:           o.Code,
		Status:         o.Status,
		PaymentMethod:  o.PaymentMethod,
		PaymentStatus:  o.PaymentStatus,
		CustomerName:   o.CustomerName,
		Courier:        o.Courier,
		TrackingNumber: o.TrackingNumber,
		DeliveredAt:    o.DeliveredAt,
		Total:          o.Total,
		ShippingFee:    o.ShippingFee,
		Items:          make([]TrackingItem, 0, len(o.Items)),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, TrackingItem{Name: it.Name, Color: it.Color, Size: it.Size, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return v
}

// TrackOrder lets a customer without an account look an order up. The phone number on the
// order acts as the secret; the result never says whether the code or the phone was wrong.
func (s *Service) TrackOrder(ctx context.Context, code, phone string) (TrackingView, error) {
	code = strings.TrimSpace(code)
	want := NormalizePhone(phone)
	if code == "" || want == "" {
		return TrackingView{}, errTrackNotFound
	}

	o, err := s.snapshot(ctx, code)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return TrackingView{}, errTrackNotFound
		}
		return TrackingView{}, err
	}
	if !strings.EqualFold(o.Code, code) || NormalizePhone(o.Phone) != want {
		return TrackingView{}, errTrackNotFound
	}
	return viewOf(o), nil
}

func (s *Service) snapshot(ctx context.Context, code string) (orders.Order, error) {
	var gen int64
	fill := s.cache != nil
	if s.cache != nil {
		o, g, ok, err := s.cache.Get(ctx, code)
		switch {
		case err != nil:
			s.log.Warn("read tracking cache", zap.String("order", code), zap.Error(err))
			fill = false
		case ok:
			return o, nil
		default:
			gen = g
		}
	}
	o, err := s.orders.GetOrder(ctx, code)
	if err != nil {
		return orders.Order{}, err
	}
	if fill && strings.EqualFold(o.Code, code) {
		if err := s.cache.Put(ctx, o, gen); err != nil {
			s.log.Warn("fill tracking cache", zap.String("order", code), zap.Error(err))
		}
	}
	return o, nil
}

// NormalizePhone keeps digits only and rewrites the 84 country prefix to a leading 0, so
// "+84 912-345-678" and "0912345678" compare equal.
func NormalizePhone(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if strings.HasPrefix(d, "84") && len(d) >= 11 {
		d = "0" + d[2:]
	}
	return d
}
