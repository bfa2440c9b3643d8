// Package index holds the in-memory inverted index built once per index
// configuration: per-field postings, stored document fields and the length
// statistics the ranking models read.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
)

// Document is one indexed record. ID is dense, assigned in input order
// starting at zero. Documents are immutable once added.
type Document struct {
	ID     int                       `json:"id"`
	Record collection.DocumentRecord `json:"record"`
	Terms  map[Field][]string        `json:"terms"`
}

// BuildOptions controls which records are kept and how their text is
// normalised.
type BuildOptions struct {
	Pipeline   tokenizer.Pipeline
	TargetTask int
}

// Index is read-only after Build or Load returns.
type Index struct {
	docs              []Document
	postings          map[Field]map[string]PostingList
	fieldLengths      map[Field][]int
	collectionLengths map[Field]int
	collectionFreq    map[Field]map[string]int
}

func newIndex() *Index {
	ix := &Index{
		postings:          make(map[Field]map[string]PostingList, len(Fields)),
		fieldLengths:      make(map[Field][]int, len(Fields)),
		collectionLengths: make(map[Field]int, len(Fields)),
		collectionFreq:    make(map[Field]map[string]int, len(Fields)),
	}
	for _, f := range Fields {
		ix.postings[f] = make(map[string]PostingList)
		ix.collectionFreq[f] = make(map[string]int)
	}
	return ix
}

// Build validates every record, keeps those whose search task equals
// opts.TargetTask and indexes their title, abstract and query fields. Any
// invalid record aborts the build; no partial index is returned.
func Build(records []collection.DocumentRecord, opts BuildOptions) (*Index, error) {
	for i, rec := range records {
		if err := collection.Validate(rec, i); err != nil {
			return nil, fmt.Errorf("validating input: %w", err)
		}
	}
	ix := newIndex()
	for _, rec := range records {
		if rec.SearchTask != opts.TargetTask {
			continue
		}
		ix.addRecord(rec, opts.Pipeline)
	}
	return ix, nil
}

func (ix *Index) addRecord(rec collection.DocumentRecord, p tokenizer.Pipeline) {
	doc := Document{
		ID:     len(ix.docs),
		Record: rec,
		Terms:  make(map[Field][]string, len(Fields)),
	}
	positions := make(map[Field]map[string][]int, len(Fields))
	for _, f := range Fields {
		tokens := p.Tokenize(fieldText(rec, f))
		terms := make([]string, len(tokens))
		byTerm := make(map[string][]int)
		for i, tok := range tokens {
			terms[i] = tok.Term
			byTerm[tok.Term] = append(byTerm[tok.Term], tok.Position)
		}
		doc.Terms[f] = terms
		positions[f] = byTerm
	}
	ix.add(doc, positions)
}

// add appends doc and its postings. positions may be nil, in which case
// postings carry frequencies only.
func (ix *Index) add(doc Document, positions map[Field]map[string][]int) {
	ix.docs = append(ix.docs, doc)
	for _, f := range Fields {
		terms := doc.Terms[f]
		ix.fieldLengths[f] = append(ix.fieldLengths[f], len(terms))
		ix.collectionLengths[f] += len(terms)

		freqs := make(map[string]int)
		for _, term := range terms {
			freqs[term]++
		}
		for term, freq := range freqs {
			p := Posting{DocID: doc.ID, Frequency: freq}
			if positions != nil {
				p.Positions = positions[f][term]
			}
			ix.postings[f][term] = append(ix.postings[f][term], p)
			ix.collectionFreq[f][term] += freq
		}
	}
}

func fieldText(rec collection.DocumentRecord, f Field) string {
	switch f {
	case FieldTitle:
		return rec.Title
	case FieldAbstract:
		return rec.AbstractText
	case FieldQuery:
		return rec.Query
	}
	return ""
}

// Lookup returns the postings of term in field, or nil if the term was never
// indexed. The returned slice must not be modified.
func (ix *Index) Lookup(field Field, term string) PostingList {
	return ix.postings[field][term]
}

func (ix *Index) DocumentCount() int {
	return len(ix.docs)
}

func (ix *Index) Document(id int) (Document, bool) {
	if id < 0 || id >= len(ix.docs) {
		return Document{}, false
	}
	return ix.docs[id], true
}

func (ix *Index) Documents() []Document {
	out := make([]Document, len(ix.docs))
	copy(out, ix.docs)
	return out
}

func (ix *Index) DocFreq(field Field, term string) int {
	return len(ix.postings[field][term])
}

// TermFrequency returns the in-document frequency of term, 0 if absent.
func (ix *Index) TermFrequency(docID int, field Field, term string) int {
	postings := ix.postings[field][term]
	i := sort.Search(len(postings), func(i int) bool {
		return postings[i].DocID >= docID
	})
	if i < len(postings) && postings[i].DocID == docID {
		return postings[i].Frequency
	}
	return 0
}

// TermFrequencies returns the term counts of one document field.
func (ix *Index) TermFrequencies(docID int, field Field) map[string]int {
	doc, ok := ix.Document(docID)
	if !ok {
		return nil
	}
	freqs := make(map[string]int)
	for _, term := range doc.Terms[field] {
		freqs[term]++
	}
	return freqs
}

func (ix *Index) FieldLength(docID int, field Field) int {
	lengths := ix.fieldLengths[field]
	if docID < 0 || docID >= len(lengths) {
		return 0
	}
	return lengths[docID]
}

func (ix *Index) AvgFieldLength(field Field) float64 {
	if len(ix.docs) == 0 {
		return 0
	}
	return float64(ix.collectionLengths[field]) / float64(len(ix.docs))
}

// CollectionLength is the total number of term occurrences in field.
func (ix *Index) CollectionLength(field Field) int {
	return ix.collectionLengths[field]
}

func (ix *Index) CollectionTermFrequency(field Field, term string) int {
	return ix.collectionFreq[field][term]
}

// RelevantCount returns how many indexed documents are judged relevant.
func (ix *Index) RelevantCount() int {
	n := 0
	for _, doc := range ix.docs {
		if doc.Record.Relevant {
			n++
		}
	}
	return n
}

// Snapshot returns every (field, term) posting list sorted by field then
// term, ready to be written as a segment.
func (ix *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0)
	for _, f := range Fields {
		for term, postings := range ix.postings[f] {
			entries = append(entries, TermEntry{
				Field:    f,
				Term:     term,
				Postings: postings,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Restore rebuilds an Index from stored documents and term entries read back
// from a segment. Statistics are recomputed from the documents; postings are
// taken from entries so positions survive the round trip.
func Restore(docs []Document, entries []TermEntry) (*Index, error) {
	ix := newIndex()
	for i, doc := range docs {
		if doc.ID != i {
			return nil, fmt.Errorf("restoring index: document %d stored with id %d", i, doc.ID)
		}
		ix.add(doc, nil)
	}
	for _, entry := range entries {
		if _, ok := ix.postings[entry.Field]; !ok {
			return nil, fmt.Errorf("restoring index: unknown field %q", entry.Field)
		}
		for _, p := range entry.Postings {
			if p.DocID < 0 || p.DocID >= len(ix.docs) {
				return nil, fmt.Errorf("restoring index: term %q references missing document %d", entry.Term, p.DocID)
			}
		}
		ix.postings[entry.Field][entry.Term] = entry.Postings
	}
	return ix, nil
}
