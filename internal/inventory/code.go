package inventory

import (
	"context"
	"fmt"
	"regexp"
)

// Sequencer hands out monotonically increasing numbers per key.
type Sequencer interface {
	Next(ctx context.Context, key string) (int64, error)
}

const codeSuffixModulo = 1_000_000

var codePattern = regexp.MustCompile(`^(PXK|PNK)-\d{4}-\d{6}$`)

// SequenceKey scopes movement numbering per prefix and year, so every year restarts at 1.
func SequenceKey(prefix string, year int) string {
	return fmt.Sprintf("movement:%s:%d", prefix, year)
}

// FormatCode renders <PREFIX>-<year>-<6 digits>. Sequences past 999999 wrap.
func FormatCode(prefix string, year int, seq int64) string {
	if seq < 0 {
		seq = -seq
	}
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq%codeSuffixModulo)
}

func ValidCode(code string) bool { return codePattern.MatchString(code) }
