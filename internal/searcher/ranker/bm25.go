package ranker

import "math"

const (
	defaultK1 = 1.2
	defaultB  = 0.75
)

// BM25 is Okapi BM25 summed over fields, each field normalised by its own
// average length.
type BM25 struct {
	K1 float64
	B  float64
}

func NewBM25() *BM25 {
	return &BM25{K1: defaultK1, B: defaultB}
}

func (m *BM25) Kind() Kind { return KindBM25 }

func (m *BM25) sealed() {}

func (m *BM25) Score(query QueryTerms, docID int, stats Stats) float64 {
	n := int64(stats.DocumentCount())
	var score float64
	for _, field := range fieldsOf(query) {
		avgLen := stats.AvgFieldLength(field)
		if avgLen == 0 {
			continue
		}
		docLen := float64(stats.FieldLength(docID, field))
		order, qf := queryFreqs(query[field])
		for _, term := range order {
			df := stats.DocFreq(field, term)
			if df == 0 {
				continue
			}
			tf := stats.TermFrequency(docID, field, term)
			if tf == 0 {
				continue
			}
			idf := computeIDF(n, int64(df))
			score += float64(qf[term]) * idf * m.tfNorm(float64(tf), docLen, avgLen)
		}
	}
	return score
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(1 + numerator/denominator)
}

func (m *BM25) tfNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + m.K1*(1-m.B+m.B*lengthRatio)
	return (termFreq * (m.K1 + 1)) / denominator
}
