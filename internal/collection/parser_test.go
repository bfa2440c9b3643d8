package collection

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed>
  <item>
    <title>Cats and dogs</title>
    <abstract>Household pets and their owners.</abstract>
    <search_task_number>1</search_task_number>
    <query>pets</query>
    <relevance>1</relevance>
  </item>
  <item>
    <title>Car engines</title>
    <abstract></abstract>
    <search_task_number>2</search_task_number>
    <query>motors</query>
    <relevance>0</relevance>
  </item>
</feed>`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	want := DocumentRecord{
		Title:        "Cats and dogs",
		AbstractText: "Household pets and their owners.",
		SearchTask:   1,
		Query:        "pets",
		Relevant:     true,
	}
	if records[0] != want {
		t.Errorf("records[0] = %+v, want %+v", records[0], want)
	}
	if records[1].Relevant || records[1].SearchTask != 2 || records[1].AbstractText != "" {
		t.Errorf("records[1] = %+v", records[1])
	}
	if got := CountRelevant(records, 1); got != 1 {
		t.Errorf("CountRelevant(1) = %d, want 1", got)
	}
	if got := CountRelevant(records, 2); got != 0 {
		t.Errorf("CountRelevant(2) = %d, want 0", got)
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name     string
		feed     string
		position int
		field    string
	}{
		{
			name:     "bad task number",
			feed:     `<feed><item><title>a</title><abstract>b</abstract><search_task_number>one</search_task_number><query>q</query><relevance>1</relevance></item></feed>`,
			position: 0,
			field:    "search_task_number",
		},
		{
			name: "missing relevance on second item",
			feed: `<feed><item><title>a</title><abstract>b</abstract><search_task_number>1</search_task_number><query>q</query><relevance>0</relevance></item>` +
				`<item><title>a</title><abstract>b</abstract><search_task_number>1</search_task_number><query>q</query></item></feed>`,
			position: 1,
			field:    "relevance",
		},
		{
			name:     "bad relevance",
			feed:     `<feed><item><title>a</title><abstract>b</abstract><search_task_number>1</search_task_number><query>q</query><relevance>maybe</relevance></item></feed>`,
			position: 0,
			field:    "relevance",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.feed))
			if err == nil {
				t.Fatal("expected error")
			}
			var recErr *apperrors.RecordError
			if !errors.As(err, &recErr) {
				t.Fatalf("expected RecordError, got %v", err)
			}
			if recErr.Position != tt.position || recErr.Field != tt.field {
				t.Errorf("got position %d field %q, want %d %q", recErr.Position, recErr.Field, tt.position, tt.field)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ok := DocumentRecord{Title: "t", SearchTask: 1}
	if err := Validate(ok, 0); err != nil {
		t.Errorf("Validate(ok) = %v", err)
	}
	empty := DocumentRecord{Title: "  ", AbstractText: ""}
	err := Validate(empty, 9)
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("Validate(empty) = %v, want ErrMalformedRecord", err)
	}
	if !strings.Contains(err.Error(), "record 9") {
		t.Errorf("error should name the record: %v", err)
	}
	bad := DocumentRecord{Title: "ok", Query: string([]byte{0xff, 0xfe})}
	if err := Validate(bad, 2); err == nil {
		t.Error("expected invalid utf-8 error")
	}
}

func TestValidateReportsFirstInvalidField(t *testing.T) {
	invalid := string([]byte{0xff, 0xfe})
	tests := []struct {
		name   string
		record DocumentRecord
		field  string
	}{
		{"title before query", DocumentRecord{Title: invalid, Query: invalid}, "title"},
		{"title before abstract", DocumentRecord{Title: "ok" + invalid, AbstractText: invalid}, "title"},
		{"abstract before query", DocumentRecord{Title: "ok", AbstractText: invalid, Query: invalid}, "abstract"},
		{"query only", DocumentRecord{Title: "ok", Query: invalid}, "query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// repeated so a randomised field order would show up
			for i := 0; i < 20; i++ {
				var recErr *apperrors.RecordError
				if err := Validate(tt.record, 4); !errors.As(err, &recErr) {
					t.Fatalf("Validate = %v, want RecordError", err)
				}
				if recErr.Field != tt.field || recErr.Position != 4 {
					t.Fatalf("reported %s at %d, want %s at 4", recErr.Field, recErr.Position, tt.field)
				}
			}
		})
	}
}

func TestFingerprintAndCountRelevant(t *testing.T) {
	records := []DocumentRecord{
		{Title: "a", SearchTask: 1, Relevant: true},
		{Title: "b", SearchTask: 1, Relevant: false},
		{Title: "c", SearchTask: 2, Relevant: true},
	}
	if got := CountRelevant(records, 1); got != 1 {
		t.Errorf("CountRelevant(1) = %d", got)
	}
	if got := CountRelevant(records, 3); got != 0 {
		t.Errorf("CountRelevant(3) = %d", got)
	}

	fp := Fingerprint(records)
	if len(fp) != 16 || fp != Fingerprint(records) {
		t.Errorf("Fingerprint = %q", fp)
	}
	swapped := []DocumentRecord{records[1], records[0], records[2]}
	if Fingerprint(swapped) == fp {
		t.Error("fingerprint should depend on order")
	}
}
