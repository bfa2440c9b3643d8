// Package collection defines the document records consumed by the indexer
// and the XML feed parser that produces them.
package collection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// DocumentRecord is one judged document from the collection feed. Records
// are immutable once parsed and are passed by value into indexing.
type DocumentRecord struct {
	Title        string `json:"title"`
	AbstractText string `json:"abstract_text"`
	SearchTask   int    `json:"search_task_number"`
	Query        string `json:"query"`
	Relevant     bool   `json:"relevant"`
}

// CountRelevant returns how many records of the given task are judged
// relevant.
func CountRelevant(records []DocumentRecord, task int) int {
	n := 0
	for _, r := range records {
		if r.SearchTask == task && r.Relevant {
			n++
		}
	}
	return n
}

// Fingerprint is a short, order-sensitive digest of records. Two runs over
// the same feed share a fingerprint, so cached results stay valid between
// them.
func Fingerprint(records []DocumentRecord) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, r := range records {
		// Encoding a plain struct into a hash cannot fail.
		_ = enc.Encode(r)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
