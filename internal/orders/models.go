package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Actor is the caller identity attached to every mutation. It is recorded, not authenticated.
type Actor struct {
	ID   string
	Name string
}

func (a Actor) Valid() bool { return strings.TrimSpace(a.ID) != "" }

// DisplayName falls back to the id when no name was supplied.
func (a Actor) DisplayName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return strings.TrimSpace(a.ID)
}

type Order struct {
	ID   string `json:"id"`
	Code string `json:"code"`

	// snapshot pelanggan saat checkout, bukan referensi live
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`

	Total         decimal.Decimal `json:"total"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Status        Status          `json:"status"`

	Courier        string     `json:"courier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	DeliveryPerson string     `json:"delivery_person,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Refund         *Refund    `json:"refund,omitempty"`

	Items []LineItem `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

type LineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	Reviewed  bool            `json:"reviewed"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StockKey is the id the ledger tracks for this line; older orders only carry a product id.
func (l LineItem) StockKey() string {
	if l.VariantID != "" {
		return l.VariantID
	}
	return l.ProductID
}

type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundConfirmed RefundStatus = "CONFIRMED"
)

type BankAccount struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountHolder string `json:"account_holder"`
}

type Refund struct {
	RequestID   string       `json:"request_id"`
	Reason      string       `json:"reason"`
	Bank        BankAccount  `json:"bank"`
	Status      RefundStatus `json:"status"`
	RequestedAt time.Time    `json:"requested_at"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
	ConfirmedBy string       `json:"confirmed_by,omitempty"`
}

// Clone returns a deep copy so callers can't mutate a stored order through shared slices.
func (o Order) Clone() Order {
	out := o
	out.Items = append([]LineItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		out.DeliveredAt = &t
	}
	if o.Refund != nil {
		r := *o.Refund
		if o.Refund.ConfirmedAt != nil {
			t := *o.Refund.ConfirmedAt
			r.ConfirmedAt = &t
		}
		out.Refund = &r
	}
	return out
}

// Patch is a partial update of an order. Nil fields are left untouched.
type Patch struct {
	// ExpectStatus turns the write into a compare-and-swap on the status column.
	ExpectStatus *Status

	Status         *Status
	PaymentStatus  *PaymentStatus
	Courier        *string
	TrackingNumber *string
	DeliveryPerson *string
	DeliveredAt    *time.Time
	AppendNote     string
	Refund         *Refund
	ClearRefund    bool

	UpdatedAt time.Time
	UpdatedBy string
}

// Apply writes the patch onto o. Stores share it so memory and SQL stores agree on semantics.
func (p Patch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.Courier != nil {
		o.Courier = *p.Courier
	}
	if p.TrackingNumber != nil {
		o.TrackingNumber = *p.TrackingNumber
	}
	if p.DeliveryPerson != nil {
		o.DeliveryPerson = *p.DeliveryPerson
	}
	if p.DeliveredAt != nil {
		t := *p.DeliveredAt
		o.DeliveredAt = &t
	}
	if p.AppendNote != "" {
		o.Notes = AppendNote(o.Notes, p.AppendNote)
	}
	if p.Refund != nil {
		r := *p.Refund
		o.Refund = &r
	} else if p.ClearRefund {
		o.Refund = nil
	}
	if !p.UpdatedAt.IsZero() {
		o.UpdatedAt = p.UpdatedAt
	}
	if p.UpdatedBy != "" {
		o.UpdatedBy = p.UpdatedBy
	}
}

func AppendNote(notes, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return notes
	}
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

func Ptr[T any](v T) *T { return &v }
