package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type RecorderDeps struct {
	Movements   MovementStore
	Ledger      *Ledger
	Sequencer   Sequencer
	Events      orders.Publisher
	Logger      *zap.Logger
	Clock       func() time.Time
	IDGenerator func() string
}

// Recorder creates movement records and drives one ledger pass per record.
type Recorder struct {
	movements MovementStore
	ledger    *Ledger
	seq       Sequencer
	events    orders.Publisher
	log       *zap.Logger
	clock     func() time.Time
	newID     func() string
}

func NewRecorder(deps RecorderDeps) (*Recorder, error) {
	if deps.Movements == nil {
		return nil, errors.New("recorder: movement store is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("recorder: ledger is required")
	}
	if deps.Sequencer == nil {
		return nil, errors.New("recorder: sequencer is required")
	}
	r := &Recorder{
		movements: deps.Movements,
		ledger:    deps.Ledger,
		seq:       deps.Sequencer,
		events:    deps.Events,
		log:       deps.Logger,
		clock:     deps.Clock,
		newID:     deps.IDGenerator,
	}
	if r.events == nil {
		r.events = orders.NopPublisher{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	return r, nil
}

// Result is a persisted record plus the ledger entries its lines produced.
type Result struct {
	Record  Record
	Entries []Entry
}

// Shortfalls returns the entries where stock was clamped at zero.
func (r Result) Shortfalls() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Shortfall > 0 {
			out = append(out, e)
		}
	}
	return out
}

type ReceiptInput struct {
	Actor orders.Actor
	Note  string
	Lines []MovementLine
}

// RecordIssueForOrder writes one ISSUE record covering every order line and takes the stock out.
func (r *Recorder) RecordIssueForOrder(ctx context.Context, o orders.Order, actor orders.Actor) (Result, error) {
	return r.record(ctx, DirectionIssue, actor, "order "+o.Code, orderLines(o))
}

// RecordReturnReceipt puts the goods of a returned order back into stock.
func (r *Recorder) RecordReturnReceipt(ctx context.Context, o orders.Order, actor orders.Actor) (Result, error) {
	return r.record(ctx, DirectionReceipt, actor, "return "+o.Code, orderLines(o))
}

func (r *Recorder) RecordReceipt(ctx context.Context, in ReceiptInput) (Result, error) {
	return r.record(ctx, DirectionReceipt, in.Actor, in.Note, in.Lines)
}

func orderLines(o orders.Order) []MovementLine {
	lines := make([]MovementLine, 0, len(o.Items))
	for _, it := range o.Items {
		variant := strings.TrimSpace(strings.Join([]string{it.Color, it.Size}, " "))
		lines = append(lines, MovementLine{
			VariantID:   it.StockKey(),
			Quantity:    it.Quantity,
			ProductName: it.Name,
			VariantName: variant,
			OrderCode:   o.Code,
		})
	}
	return lines
}

// CheckOrder reports whether every line of o can be turned into a movement line and points
// at a variant the ledger knows. Nothing is written.
func (r *Recorder) CheckOrder(ctx context.Context, o orders.Order) error {
	lines := orderLines(o)
	if err := validateLines(lines); err != nil {
		return fmt.Errorf("order %s: %w", o.Code, err)
	}
	if err := r.checkVariants(ctx, lines); err != nil {
		return fmt.Errorf("order %s: %w", o.Code, err)
	}
	return nil
}

// checkVariants fails with orders.ErrNotFound for the first line whose variant has no stock
// row, so a movement is never persisted for goods the ledger cannot book.
func (r *Recorder) checkVariants(ctx context.Context, lines []MovementLine) error {
	seen := make(map[string]struct{}, len(lines))
	for i, l := range lines {
		id := strings.TrimSpace(l.VariantID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := r.ledger.Level(ctx, id); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

func validateLines(lines []MovementLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: movement needs at least one line", orders.ErrValidation)
	}
	for i, l := range lines {
		if strings.TrimSpace(l.VariantID) == "" {
			return fmt.Errorf("%w: line %d: variant id is required", orders.ErrValidation, i+1)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d: quantity must be positive", orders.ErrValidation, i+1)
		}
	}
	return nil
}

func (r *Recorder) record(ctx context.Context, dir Direction, actor orders.Actor, note string, lines []MovementLine) (Result, error) {
	if !actor.Valid() {
		return Result{}, fmt.Errorf("%w: actor is required", orders.ErrValidation)
	}
	if err := validateLines(lines); err != nil {
		return Result{}, err
	}
	if err := r.checkVariants(ctx, lines); err != nil {
		return Result{}, err
	}

	now := r.clock().UTC()
	code, err := r.nextCode(ctx, dir, now.Year())
	if err != nil {
		return Result{}, err
	}

	rec := Record{
		ID:        r.newID(),
		Code:      code,
		Direction: dir,
		CreatedAt: now,
		ActorID:   strings.TrimSpace(actor.ID),
		ActorName: actor.DisplayName(),
		Note:      strings.TrimSpace(note),
		Lines:     append([]MovementLine(nil), lines...),
	}
	saved, err := r.movements.InsertMovementRecord(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("insert movement %s: %w", code, err)
	}

	entries, applyErr := r.ApplyRecord(ctx, saved)
	res := Result{Record: saved, Entries: entries}
	r.publish(ctx, res)
	if applyErr != nil {
		return res, applyErr
	}
	return res, nil
}

func (r *Recorder) nextCode(ctx context.Context, dir Direction, year int) (string, error) {
	n, err := r.seq.Next(ctx, SequenceKey(dir.Prefix(), year))
	if err != nil {
		return "", fmt.Errorf("next %s sequence: %w", dir.Prefix(), err)
	}
	return FormatCode(dir.Prefix(), year, n), nil
}

// ApplyRecord applies the ledger effect of rec, line by line. A failing line does not undo
// the lines before it; failures come back as *orders.PartialApplyError. Calling it twice for
// the same record applies the stock change twice.
func (r *Recorder) ApplyRecord(ctx context.Context, rec Record) ([]Entry, error) {
	entries := make([]Entry, 0, len(rec.Lines))
	var failures []orders.LineFailure
	for _, l := range rec.Lines {
		delta := rec.Direction.Delta(l.Quantity)
		e, err := r.ledger.ApplyDelta(ctx, l.VariantID, delta)
		if err != nil {
			failures = append(failures, orders.LineFailure{VariantID: l.VariantID, Delta: delta, Err: err})
			continue
		}
		if e.Shortfall > 0 {
			r.log.Warn("stock clamped at zero",
				zap.String("movement", rec.Code),
				zap.String("variant", e.VariantID),
				zap.Int("requested", -delta),
				zap.Int("available", e.Before),
				zap.Int("shortfall", e.Shortfall),
			)
		}
		entries = append(entries, e)
	}
	if len(failures) > 0 {
		r.log.Error("movement partially applied",
			zap.String("movement", rec.Code),
			zap.Int("failed_lines", len(failures)),
			zap.Int("applied_lines", len(entries)),
		)
		return entries, &orders.PartialApplyError{MovementCode: rec.Code, Failures: failures}
	}
	return entries, nil
}

func (r *Recorder) publish(ctx context.Context, res Result) {
	rec := res.Record
	key := []byte(rec.Code)
	orderCode := ""
	if len(rec.Lines) > 0 {
		orderCode = rec.Lines[0].OrderCode
	}
	if orderCode != "" {
		key = orders.PartitionKey(orderCode)
	}
	lines := make([]orders.MovementLinePayload, 0, len(res.Entries))
	for _, e := range res.Entries {
		qty := e.Delta
		if qty < 0 {
			qty = -qty
		}
		lines = append(lines, orders.MovementLinePayload{VariantID: e.VariantID, Qty: qty, StockNow: e.After})
	}
	if err := r.events.Publish(ctx, orders.TopicStock, key, orders.EventStockMoved, orders.StockMovedPayload{
		MovementCode: rec.Code,
		Direction:    string(rec.Direction),
		OrderCode:    orderCode,
		Lines:        lines,
	}); err != nil {
		r.log.Warn("publish stock moved", zap.String("movement", rec.Code), zap.Error(err))
	}
	for _, e := range res.Shortfalls() {
		if err := r.events.Publish(ctx, orders.TopicStock, key, orders.EventStockDiscrepancy, orders.StockDiscrepancyPayload{
			MovementCode: rec.Code,
			VariantID:    e.VariantID,
			Requested:    -e.Delta,
			Available:    e.Before,
			Shortfall:    e.Shortfall,
		}); err != nil {
			r.log.Warn("publish stock discrepancy", zap.String("movement", rec.Code), zap.Error(err))
		}
	}
}

func (r *Recorder) Movement(ctx context.Context, idOrCode string) (Record, error) {
	return r.movements.GetMovementRecord(ctx, strings.TrimSpace(idOrCode))
}

func (r *Recorder) MovementsForOrder(ctx context.Context, orderCode string) ([]Record, error) {
	return r.movements.ListMovementsByOrder(ctx, strings.TrimSpace(orderCode))
}

func (r *Recorder) StockLevel(ctx context.Context, variantID string) (int, error) {
	return r.ledger.Level(ctx, variantID)
}

// Stocktake brings a variant to the counted quantity. The difference is booked as a
// receipt or an issue like any other movement; a count that matches the ledger writes
// nothing and returns an empty Result.
func (r *Recorder) Stocktake(ctx context.Context, variantID string, counted int, actor orders.Actor) (Result, error) {
	variantID = strings.TrimSpace(variantID)
	if !actor.Valid() {
		return Result{}, fmt.Errorf("%w: actor is required", orders.ErrValidation)
	}
	if variantID == "" {
		return Result{}, fmt.Errorf("%w: variant id is required", orders.ErrValidation)
	}
	if counted < 0 {
		return Result{}, fmt.Errorf("%w: counted stock must not be negative", orders.ErrValidation)
	}
	current, err := r.ledger.Level(ctx, variantID)
	if err != nil {
		return Result{}, err
	}

	diff := counted - current
	if diff == 0 {
		return Result{}, nil
	}
	dir, qty := DirectionReceipt, diff
	if diff < 0 {
		dir, qty = DirectionIssue, -diff
	}
	// selisih dihitung dari level saat baca; movement lain di antaranya tetap tercatat sendiri
	note := fmt.Sprintf("stocktake %s: counted %d, ledger %d", variantID, counted, current)
	res, err := r.record(ctx, dir, actor, note, []MovementLine{{VariantID: variantID, Quantity: qty}})
	if err != nil {
		return res, err
	}
	r.log.Info("stocktake recorded",
		zap.String("variant", variantID),
		zap.String("movement", res.Record.Code),
		zap.Int("ledger", current),
		zap.Int("counted", counted),
		zap.String("actor", actor.ID),
	)
	return res, nil
}
