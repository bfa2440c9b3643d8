// Package ranker implements the three ranking models the harness compares:
// TF-IDF cosine (VSM), Okapi BM25 and Dirichlet-smoothed query likelihood.
// Every model reads only the term statistics exposed by the index.
package ranker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

// Kind selects a ranking model.
type Kind int

const (
	KindVSM Kind = iota
	KindBM25
	KindLMDirichlet
)

func (k Kind) String() string {
	switch k {
	case KindVSM:
		return "vsm"
	case KindBM25:
		return "bm25"
	case KindLMDirichlet:
		return "lm_dirichlet"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configuration selector to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vsm", "tfidf", "classic":
		return KindVSM, nil
	case "bm25":
		return KindBM25, nil
	case "lm_dirichlet", "lm-dirichlet", "lmdirichlet", "lm":
		return KindLMDirichlet, nil
	default:
		return KindVSM, fmt.Errorf("%w: %q", apperrors.ErrUnknownModel, s)
	}
}

// Stats is the read-only view of an index that models score against.
type Stats interface {
	DocumentCount() int
	DocFreq(field index.Field, term string) int
	TermFrequency(docID int, field index.Field, term string) int
	TermFrequencies(docID int, field index.Field) map[string]int
	FieldLength(docID int, field index.Field) int
	AvgFieldLength(field index.Field) float64
	CollectionLength(field index.Field) int
	CollectionTermFrequency(field index.Field, term string) int
}

// QueryTerms holds the normalised positive query terms of each field.
// Repeated terms raise that term's query weight.
type QueryTerms map[index.Field][]string

// Model scores one document against a query. Higher is more relevant. A
// query term absent from the index contributes nothing.
//
// The set of implementations is closed: VSM, BM25 and LMDirichlet.
type Model interface {
	Kind() Kind
	Score(query QueryTerms, docID int, stats Stats) float64
	sealed()
}

// New returns the model for k. Unknown kinds fall back to VSM.
func New(k Kind) Model {
	switch k {
	case KindBM25:
		return NewBM25()
	case KindLMDirichlet:
		return NewLMDirichlet()
	default:
		return NewVSM()
	}
}

type ScoredDoc struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// Rank scores candidates and orders them by descending score, breaking ties
// by ascending document id.
func Rank(model Model, query QueryTerms, candidates []int, stats Stats) []ScoredDoc {
	result := make([]ScoredDoc, 0, len(candidates))
	for _, docID := range candidates {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: model.Score(query, docID, stats),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].DocID < result[j].DocID
	})
	return result
}

// queryFreqs counts each term of one field's query in first-seen order so
// iteration is deterministic.
func queryFreqs(terms []string) ([]string, map[string]int) {
	order := make([]string, 0, len(terms))
	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		if _, seen := freqs[t]; !seen {
			order = append(order, t)
		}
		freqs[t]++
	}
	return order, freqs
}

// fieldsOf returns the query's fields in index.Fields order.
func fieldsOf(query QueryTerms) []index.Field {
	fields := make([]index.Field, 0, len(query))
	for _, f := range index.Fields {
		if len(query[f]) > 0 {
			fields = append(fields, f)
		}
	}
	return fields
}
