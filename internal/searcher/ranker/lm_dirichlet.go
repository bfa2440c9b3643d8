package ranker

import "math"

const defaultMu = 2000.0

// LMDirichlet is query likelihood with Dirichlet-prior smoothing against
// the field's collection language model. Per-term contributions are clamped
// at zero, so only matching terms add to the score.
type LMDirichlet struct {
	Mu float64
}

func NewLMDirichlet() *LMDirichlet {
	return &LMDirichlet{Mu: defaultMu}
}

func (m *LMDirichlet) Kind() Kind { return KindLMDirichlet }

func (m *LMDirichlet) sealed() {}

func (m *LMDirichlet) Score(query QueryTerms, docID int, stats Stats) float64 {
	var score float64
	for _, field := range fieldsOf(query) {
		collectionLen := float64(stats.CollectionLength(field))
		docLen := float64(stats.FieldLength(docID, field))
		order, qf := queryFreqs(query[field])
		for _, term := range order {
			cf := stats.CollectionTermFrequency(field, term)
			if cf == 0 {
				continue
			}
			tf := stats.TermFrequency(docID, field, term)
			if tf == 0 {
				continue
			}
			pc := (float64(cf) + 1) / (collectionLen + 1)
			s := math.Log(1+float64(tf)/(m.Mu*pc)) + math.Log(m.Mu/(docLen+m.Mu))
			if s > 0 {
				score += float64(qf[term]) * s
			}
		}
	}
	return score
}
