// Package parser turns per-field include/exclude/require term lists into a
// boolean Query of field-scoped clauses. Terms pass through the same text
// pipeline the index was built with.
package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/config"
)

// Occur is the requirement a clause places on matching documents.
type Occur int

const (
	Should Occur = iota
	Must
	MustNot
)

func (o Occur) String() string {
	switch o {
	case Should:
		return "SHOULD"
	case Must:
		return "MUST"
	case MustNot:
		return "MUST_NOT"
	default:
		return fmt.Sprintf("occur(%d)", int(o))
	}
}

// Clause matches documents whose Field contains Term.
type Clause struct {
	Field index.Field
	Term  string
	Occur Occur
}

// Query is an ordered list of clauses. Order only affects tie-break
// determinism, never the result set.
type Query struct {
	Name    string
	Clauses []Clause
}

// Input holds the raw per-field term lists of one query. Include terms are
// OR-combined, Exclude terms eliminate documents, Require terms filter.
type Input struct {
	Name    string
	Include map[index.Field][]string
	Exclude map[index.Field][]string
	Require map[index.Field][]string
}

// Parse normalises every term of in with p and emits clauses field by field
// in index.Fields order: SHOULD, then MUST, then MUST_NOT. A raw term may
// normalise to zero terms (a stop-word) or to several.
func Parse(in Input, p tokenizer.Pipeline) Query {
	q := Query{Name: in.Name, Clauses: make([]Clause, 0)}
	for _, field := range index.Fields {
		q.Clauses = appendClauses(q.Clauses, field, in.Include[field], Should, p)
		q.Clauses = appendClauses(q.Clauses, field, in.Require[field], Must, p)
		q.Clauses = appendClauses(q.Clauses, field, in.Exclude[field], MustNot, p)
	}
	return q
}

func appendClauses(clauses []Clause, field index.Field, raw []string, occur Occur, p tokenizer.Pipeline) []Clause {
	for _, text := range raw {
		for _, term := range p.Normalize(text) {
			clauses = append(clauses, Clause{Field: field, Term: term, Occur: occur})
		}
	}
	return clauses
}

// FromConfig converts a configured query. Unknown field names are dropped
// with a warning; "abstract" is accepted for abstract_text.
func FromConfig(qc config.QueryConfig) Input {
	return Input{
		Name:    qc.Name,
		Include: fieldMap(qc.Name, qc.Include),
		Exclude: fieldMap(qc.Name, qc.Exclude),
		Require: fieldMap(qc.Name, qc.Require),
	}
}

func fieldMap(queryName string, raw map[string][]string) map[index.Field][]string {
	out := make(map[index.Field][]string, len(raw))
	for name, terms := range raw {
		field, ok := index.ParseField(name)
		if !ok {
			slog.Warn("ignoring unknown query field", "query", queryName, "field", name)
			continue
		}
		out[field] = append(out[field], terms...)
	}
	return out
}

// IsEmpty reports whether q has no SHOULD or MUST clause. Such a query
// matches nothing.
func (q Query) IsEmpty() bool {
	for _, c := range q.Clauses {
		if c.Occur != MustNot {
			return false
		}
	}
	return true
}

// Positive returns the SHOULD and MUST terms grouped by field, which is the
// term set ranking models score against.
func (q Query) Positive() map[index.Field][]string {
	terms := make(map[index.Field][]string)
	for _, c := range q.Clauses {
		if c.Occur == MustNot {
			continue
		}
		terms[c.Field] = append(terms[c.Field], c.Term)
	}
	return terms
}

// Describe renders q in a Lucene-like form, e.g.
// "title:human abstract_text:motion -title:robot +query:pets".
func Describe(q Query) string {
	parts := make([]string, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		prefix := ""
		switch c.Occur {
		case Must:
			prefix = "+"
		case MustNot:
			prefix = "-"
		}
		parts = append(parts, prefix+string(c.Field)+":"+c.Term)
	}
	return strings.Join(parts, " ")
}
