package ranker

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

func approxEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func buildIndex(t *testing.T, titles ...string) *index.Index {
	t.Helper()
	records := make([]collection.DocumentRecord, 0, len(titles))
	for _, title := range titles {
		records = append(records, collection.DocumentRecord{Title: title, SearchTask: 1})
	}
	ix, err := index.Build(records, index.BuildOptions{
		Pipeline:   tokenizer.New(tokenizer.Options{}),
		TargetTask: 1,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func allModels() []Model {
	return []Model{NewVSM(), NewBM25(), &LMDirichlet{Mu: 10}}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
		err  bool
	}{
		{"vsm", KindVSM, false},
		{"BM25", KindBM25, false},
		{"lm_dirichlet", KindLMDirichlet, false},
		{"LM-Dirichlet", KindLMDirichlet, false},
		{"okapi", KindVSM, true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if tt.err != (err != nil) {
			t.Errorf("ParseKind(%q) error = %v", tt.in, err)
		}
		if tt.err && !errors.Is(err, apperrors.ErrUnknownModel) {
			t.Errorf("ParseKind(%q) error should wrap ErrUnknownModel", tt.in)
		}
	}
}

func TestNewReturnsMatchingKind(t *testing.T) {
	for _, k := range []Kind{KindVSM, KindBM25, KindLMDirichlet} {
		if got := New(k).Kind(); got != k {
			t.Errorf("New(%v).Kind() = %v", k, got)
		}
	}
	if got := New(Kind(99)).Kind(); got != KindVSM {
		t.Errorf("New(unknown) should fall back to VSM, got %v", got)
	}
}

func TestAbsentTermScoresZero(t *testing.T) {
	ix := buildIndex(t, "cats dogs", "car engines")
	q := QueryTerms{index.FieldTitle: {"unicorn"}, index.FieldAbstract: {"cats"}}
	for _, m := range allModels() {
		for docID := 0; docID < ix.DocumentCount(); docID++ {
			if s := m.Score(q, docID, ix); s != 0 {
				t.Errorf("%v: Score(doc %d) = %v, want 0", m.Kind(), docID, s)
			}
		}
	}
}

func TestAbsentTermDoesNotChangeScore(t *testing.T) {
	ix := buildIndex(t, "cats dogs", "cats", "car engines")
	for _, m := range allModels() {
		base := m.Score(QueryTerms{index.FieldTitle: {"cats"}}, 0, ix)
		extra := m.Score(QueryTerms{index.FieldTitle: {"cats", "unicorn"}}, 0, ix)
		if !approxEqual(base, extra, 1e-12) {
			t.Errorf("%v: unseen term changed score %v -> %v", m.Kind(), base, extra)
		}
	}
}

func TestMatchingDocumentOutranksShorterMatch(t *testing.T) {
	// doc 1 is the shorter document containing "cats"; every model prefers it.
	ix := buildIndex(t, "cats dogs birds fish", "cats", "car engines")
	q := QueryTerms{index.FieldTitle: {"cats"}}
	for _, m := range allModels() {
		ranked := Rank(m, q, []int{0, 1, 2}, ix)
		if len(ranked) != 3 {
			t.Fatalf("%v: ranked %d docs", m.Kind(), len(ranked))
		}
		if ranked[0].DocID != 1 || ranked[1].DocID != 0 {
			t.Errorf("%v: order = %+v", m.Kind(), ranked)
		}
		if ranked[2].Score != 0 {
			t.Errorf("%v: non-matching doc scored %v", m.Kind(), ranked[2].Score)
		}
	}
}

func TestVSMExactMatchIsCosineOne(t *testing.T) {
	ix := buildIndex(t, "cats", "car engines")
	s := NewVSM().Score(QueryTerms{index.FieldTitle: {"cats"}}, 0, ix)
	if !approxEqual(s, 1, 1e-9) {
		t.Errorf("cosine = %v, want 1", s)
	}
}

func TestBM25KnownValue(t *testing.T) {
	// N=2, df=1, tf=1, dl=1, avgdl=1.5
	ix := buildIndex(t, "cats", "car engines")
	got := NewBM25().Score(QueryTerms{index.FieldTitle: {"cats"}}, 0, ix)
	idf := math.Log(1 + (2-1+0.5)/(1+0.5))
	tfNorm := (1 * 2.2) / (1 + 1.2*(1-0.75+0.75*(1/1.5)))
	if !approxEqual(got, idf*tfNorm, 1e-12) {
		t.Errorf("BM25 = %v, want %v", got, idf*tfNorm)
	}
}

func TestRankTieBreakByDocID(t *testing.T) {
	ix := buildIndex(t, "cats", "dogs", "cats", "cats")
	q := QueryTerms{index.FieldTitle: {"cats"}}
	for _, m := range allModels() {
		ranked := Rank(m, q, []int{3, 2, 0}, ix)
		for i, want := range []int{0, 2, 3} {
			if ranked[i].DocID != want {
				t.Errorf("%v: ranked[%d] = %d, want %d", m.Kind(), i, ranked[i].DocID, want)
			}
		}
	}
}

func TestLMDirichletNonNegative(t *testing.T) {
	ix := buildIndex(t, "cats and dogs", "cats", "car engines")
	m := NewLMDirichlet()
	for docID := 0; docID < ix.DocumentCount(); docID++ {
		if s := m.Score(QueryTerms{index.FieldTitle: {"cats", "engines"}}, docID, ix); s < 0 {
			t.Errorf("doc %d scored %v", docID, s)
		}
	}
}
