package orders

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound: order atau variant tidak ada.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition: guard gagal atau status sudah berubah (stale). Aman di-retry setelah re-read.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation: data transisi wajib kosong / tidak valid.
	ErrValidation = errors.New("validation failed")
	// ErrPartialApply: movement record tersimpan tapi stok tidak konsisten. Butuh rekonsiliasi manual, bukan retry.
	ErrPartialApply = errors.New("partial apply failure")
)

// ErrStaleStatus is returned by stores when a compare-and-swap on the status column misses.
var ErrStaleStatus = fmt.Errorf("%w: order status changed concurrently", ErrInvalidTransition)

type LineFailure struct {
	VariantID string
	Delta     int
	Err       error
}

// PartialApplyError reports a movement record whose ledger effect was not fully applied,
// or a status write whose side effect could not be completed nor reverted.
type PartialApplyError struct {
	OrderCode    string
	MovementCode string
	Failures     []LineFailure
	Err          error
}

func (e *PartialApplyError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ErrPartialApply.Error())
	if e.OrderCode != "" {
		fmt.Fprintf(&b, ": order %s", e.OrderCode)
	}
	if e.MovementCode != "" {
		fmt.Fprintf(&b, ": movement %s", e.MovementCode)
	}
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, ": %d line(s) not applied", len(e.Failures))
		for _, f := range e.Failures {
			fmt.Fprintf(&b, "; %s (%+d): %v", f.VariantID, f.Delta, f.Err)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialApplyError) Is(target error) bool { return target == ErrPartialApply }

func (e *PartialApplyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
