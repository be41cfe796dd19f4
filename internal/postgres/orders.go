package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type OrderStore struct{ DB *pgxpool.Pool }

const orderColumns = `id, code, customer_name, phone, address, total::text, shipping_fee::text,
	payment_method, payment_status, status, courier, tracking_number, delivery_person,
	delivered_at, notes, refund, created_at, updated_at, updated_by`

func (s *OrderStore) GetOrder(ctx context.Context, idOrCode string) (orders.Order, error) {
	key := strings.TrimSpace(idOrCode)
	row := s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE id=$1 OR upper(code)=upper($1)
		ORDER BY (id=$1) DESC LIMIT 1`, key)
	o, err := scanOrder(row)
	if err != nil {
		return orders.Order{}, notFound(err, "order", key)
	}
	if o.Items, err = loadItems(ctx, s.DB, o.ID); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

// SetOrderFields locks the row, applies p in Go and writes the mutable columns back. The
// UPDATE repeats the status predicate so a CAS miss never writes.
func (s *OrderStore) SetOrderFields(ctx context.Context, id string, p orders.Patch) (orders.Order, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id = strings.TrimSpace(id)
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	if p.ExpectStatus != nil && o.Status != *p.ExpectStatus {
		return orders.Order{}, orders.ErrStaleStatus
	}
	prev := o.Status
	p.Apply(&o)

	refund, err := encodeRefund(o.Refund)
	if err != nil {
		return orders.Order{}, err
	}
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET
			status=$3, payment_status=$4, courier=$5, tracking_number=$6, delivery_person=$7,
			delivered_at=$8, notes=$9, refund=$10, updated_at=$11, updated_by=$12
		WHERE id=$1 AND status=$2`,
		o.ID, string(prev), string(o.Status), string(o.PaymentStatus), o.Courier, o.TrackingNumber,
		o.DeliveryPerson, o.DeliveredAt, o.Notes, refund, o.UpdatedAt, o.UpdatedBy,
	)
	if err != nil {
		return orders.Order{}, err
	}
	if ct.RowsAffected() != 1 {
		return orders.Order{}, orders.ErrStaleStatus
	}
	if o.Items, err = loadItems(ctx, tx, o.ID); err != nil {
		return orders.Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

// PutOrder inserts or replaces an order with its lines. Checkout owns order creation; this
// exists for seeding and tests.
func (s *OrderStore) PutOrder(ctx context.Context, o orders.Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	refund, err := encodeRefund(o.Refund)
	if err != nil {
		return err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, code, customer_name, phone, address, total, shipping_fee,
			payment_method, payment_status, status, courier, tracking_number, delivery_person,
			delivered_at, notes, refund, created_at, updated_at, updated_by)
		VALUES ($1,$2,$3,$4,$5,$6::numeric,$7::numeric,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (id) DO UPDATE SET
			code=EXCLUDED.code, customer_name=EXCLUDED.customer_name, phone=EXCLUDED.phone,
			address=EXCLUDED.address, total=EXCLUDED.total, shipping_fee=EXCLUDED.shipping_fee,
			payment_method=EXCLUDED.payment_method, payment_status=EXCLUDED.payment_status,
			status=EXCLUDED.status, courier=EXCLUDED.courier, tracking_number=EXCLUDED.tracking_number,
			delivery_person=EXCLUDED.delivery_person, delivered_at=EXCLUDED.delivered_at,
			notes=EXCLUDED.notes, refund=EXCLUDED.refund, updated_at=EXCLUDED.updated_at,
			updated_by=EXCLUDED.updated_by`,
		o.ID, o.Code, o.CustomerName, o.Phone, o.Address, o.Total.String(), o.ShippingFee.String(),
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status), o.Courier, o.TrackingNumber,
		o.DeliveryPerson, o.DeliveredAt, o.Notes, refund, o.CreatedAt, o.UpdatedAt, o.UpdatedBy,
	)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id=$1`, o.ID); err != nil {
		return err
	}
	for i, it := range o.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, variant_id, name, quantity, unit_price, color, size, reviewed)
			VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8,$9,$10)`,
			o.ID, i+1, it.ProductID, it.VariantID, it.Name, it.Quantity, it.UnitPrice.String(), it.Color, it.Size, it.Reviewed,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o                  orders.Order
		total, fee         string
		method, pay, state string
		refund             []byte
	)
	err := row.Scan(&o.ID, &o.Code, &o.CustomerName, &o.Phone, &o.Address, &total, &fee,
		&method, &pay, &state, &o.Courier, &o.TrackingNumber, &o.DeliveryPerson,
		&o.DeliveredAt, &o.Notes, &refund, &o.CreatedAt, &o.UpdatedAt, &o.UpdatedBy)
	if err != nil {
		return orders.Order{}, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return orders.Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	if o.ShippingFee, err = decimal.NewFromString(fee); err != nil {
		return orders.Order{}, fmt.Errorf("order %s shipping fee: %w", o.ID, err)
	}
	o.PaymentMethod = orders.PaymentMethod(method)
	o.PaymentStatus = orders.PaymentStatus(pay)
	o.Status = orders.Status(state)
	if len(refund) > 0 {
		var r orders.Refund
		if err := json.Unmarshal(refund, &r); err != nil {
			return orders.Order{}, fmt.Errorf("order %s refund: %w", o.ID, err)
		}
		o.Refund = &r
	}
	return o, nil
}

func loadItems(ctx context.Context, q querier, orderID string) ([]orders.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, variant_id, name, quantity, unit_price::text, color, size, reviewed
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.LineItem
	for rows.Next() {
		var (
			it    orders.LineItem
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.VariantID, &it.Name, &it.Quantity, &price, &it.Color, &it.Size, &it.Reviewed); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("order %s item price: %w", orderID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// encodeRefund returns nil for a missing refund so the column is written as NULL.
func encodeRefund(r *orders.Refund) (any, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func notFound(err error, what, key string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", what, key, orders.ErrNotFound)
	}
	return err
}
