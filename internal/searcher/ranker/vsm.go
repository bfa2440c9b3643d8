package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
)

// VSM is TF-IDF weighting with cosine normalisation, computed per field and
// summed. Query terms that never occur in a field are left out of the query
// vector so they neither match nor dilute its norm.
type VSM struct{}

func NewVSM() *VSM {
	return &VSM{}
}

func (m *VSM) Kind() Kind { return KindVSM }

func (m *VSM) sealed() {}

func (m *VSM) Score(query QueryTerms, docID int, stats Stats) float64 {
	n := stats.DocumentCount()
	var score float64
	for _, field := range fieldsOf(query) {
		order, qf := queryFreqs(query[field])
		var dot, queryNorm float64
		for _, term := range order {
			df := stats.DocFreq(field, term)
			if df == 0 {
				continue
			}
			idf := vsmIDF(n, df)
			qw := float64(qf[term]) * idf
			queryNorm += qw * qw
			if tf := stats.TermFrequency(docID, field, term); tf > 0 {
				dot += qw * float64(tf) * idf
			}
		}
		if dot == 0 {
			continue
		}
		docNorm := m.docNorm(docID, field, stats, n)
		if docNorm == 0 || queryNorm == 0 {
			continue
		}
		score += dot / (math.Sqrt(queryNorm) * docNorm)
	}
	return score
}

// docNorm sums over terms in sorted order so equal documents get
// bit-identical norms.
func (m *VSM) docNorm(docID int, field index.Field, stats Stats, n int) float64 {
	freqs := stats.TermFrequencies(docID, field)
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	var sum float64
	for _, term := range terms {
		w := float64(freqs[term]) * vsmIDF(n, stats.DocFreq(field, term))
		sum += w * w
	}
	return math.Sqrt(sum)
}

func vsmIDF(totalDocs int, docFreq int) float64 {
	return 1 + math.Log(float64(totalDocs+1)/float64(docFreq+1))
}
