package collection

import (
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

const (
	maxTitleLength    = 4096
	maxAbstractLength = 1 << 20
)

// Validate checks a record before it is indexed. position is the record's
// index in the input sequence and is reported in the returned RecordError.
func Validate(record DocumentRecord, position int) error {
	if strings.TrimSpace(record.Title) == "" && strings.TrimSpace(record.AbstractText) == "" {
		return apperrors.NewRecordError(position, "title", "title and abstract are both empty")
	}
	if len(record.Title) > maxTitleLength {
		return apperrors.Newf(position, "title", "longer than %d bytes", maxTitleLength)
	}
	if len(record.AbstractText) > maxAbstractLength {
		return apperrors.Newf(position, "abstract", "longer than %d bytes", maxAbstractLength)
	}
	for _, f := range []struct{ name, value string }{
		{"title", record.Title},
		{"abstract", record.AbstractText},
		{"query", record.Query},
	} {
		if !utf8.ValidString(f.value) {
			return apperrors.NewRecordError(position, f.name, "invalid utf-8")
		}
	}
	return nil
}
