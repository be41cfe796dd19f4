package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
)

type MovementStore struct{ DB *pgxpool.Pool }

const uniqueViolation = "23505"

// InsertMovementRecord writes header and lines in one transaction. Records are append-only.
func (s *MovementStore) InsertMovementRecord(ctx context.Context, rec inventory.Record) (inventory.Record, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return inventory.Record{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO stock_movements(id, code, direction, created_at, actor_id, actor_name, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.Code, string(rec.Direction), rec.CreatedAt, rec.ActorID, rec.ActorName, rec.Note,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return inventory.Record{}, fmt.Errorf("movement %s already exists", rec.Code)
		}
		return inventory.Record{}, err
	}
	for i, l := range rec.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO stock_movement_lines(movement_id, line_no, variant_id, quantity, product_name, variant_name, order_code)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			rec.ID, i+1, l.VariantID, l.Quantity, l.ProductName, l.VariantName, l.OrderCode,
		)
		if err != nil {
			return inventory.Record{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return inventory.Record{}, err
	}
	return rec, nil
}

func (s *MovementStore) GetMovementRecord(ctx context.Context, idOrCode string) (inventory.Record, error) {
	key := strings.TrimSpace(idOrCode)
	var rec inventory.Record
	var dir string
	err := s.DB.QueryRow(ctx, `
		SELECT id, code, direction, created_at, actor_id, actor_name, note
		FROM stock_movements WHERE id=$1 OR code=$1 LIMIT 1`, key).
		Scan(&rec.ID, &rec.Code, &dir, &rec.CreatedAt, &rec.ActorID, &rec.ActorName, &rec.Note)
	if err != nil {
		return inventory.Record{}, notFound(err, "movement", key)
	}
	rec.Direction = inventory.Direction(dir)
	if rec.Lines, err = loadMovementLines(ctx, s.DB, rec.ID); err != nil {
		return inventory.Record{}, err
	}
	return rec, nil
}

func (s *MovementStore) ListMovementsByOrder(ctx context.Context, orderCode string) ([]inventory.Record, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT m.id, m.code, m.direction, m.created_at, m.actor_id, m.actor_name, m.note
		FROM stock_movements m
		WHERE EXISTS (SELECT 1 FROM stock_movement_lines l WHERE l.movement_id = m.id AND l.order_code = $1)
		ORDER BY m.created_at, m.code`, strings.TrimSpace(orderCode))
	if err != nil {
		return nil, err
	}
	var out []inventory.Record
	for rows.Next() {
		var rec inventory.Record
		var dir string
		if err := rows.Scan(&rec.ID, &rec.Code, &dir, &rec.CreatedAt, &rec.ActorID, &rec.ActorName, &rec.Note); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Direction = inventory.Direction(dir)
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// baris dibaca setelah rows ditutup, koneksi pool tidak boleh dipakai dobel
	for i := range out {
		if out[i].Lines, err = loadMovementLines(ctx, s.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadMovementLines(ctx context.Context, q querier, movementID string) ([]inventory.MovementLine, error) {
	rows, err := q.Query(ctx, `
		SELECT variant_id, quantity, product_name, variant_name, order_code
		FROM stock_movement_lines WHERE movement_id=$1 ORDER BY line_no`, movementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.MovementLine
	for rows.Next() {
		var l inventory.MovementLine
		if err := rows.Scan(&l.VariantID, &l.Quantity, &l.ProductName, &l.VariantName, &l.OrderCode); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
