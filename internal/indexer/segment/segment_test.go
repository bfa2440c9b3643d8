package segment

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/tokenizer"
)

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	records := []collection.DocumentRecord{
		{Title: "human motion capture", AbstractText: "tracking human bodies", SearchTask: 1, Query: "motion", Relevant: true},
		{Title: "gesture interfaces", AbstractText: "touch and motion", SearchTask: 1, Query: "motion", Relevant: false},
	}
	ix, err := index.Build(records, index.BuildOptions{
		Pipeline:   tokenizer.New(tokenizer.Options{RemoveStopwords: true}),
		TargetTask: 1,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	ix := buildIndex(t)

	meta := Meta{Corpus: "abc123", Model: "bm25", Stopwords: true, TargetTask: 1}
	name, err := NewWriter(dir).Write(ix.Snapshot(), ix.Documents(), meta)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Ext(name) != Extension {
		t.Errorf("segment name %q lacks %s", name, Extension)
	}
	if _, err := os.Stat(filepath.Join(dir, name+".tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	r, err := OpenReader(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	if r.DocCount() != 2 {
		t.Errorf("DocCount = %d, want 2", r.DocCount())
	}
	if r.Terms() != len(ix.Snapshot()) {
		t.Errorf("Terms = %d, want %d", r.Terms(), len(ix.Snapshot()))
	}

	if r.Meta() != meta {
		t.Errorf("Meta = %+v, want %+v", r.Meta(), meta)
	}

	docs, err := r.Documents()
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if !reflect.DeepEqual(docs, ix.Documents()) {
		t.Errorf("Documents round trip mismatch:\n got %+v\nwant %+v", docs, ix.Documents())
	}

	entries, err := r.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if !reflect.DeepEqual(entries, ix.Snapshot()) {
		t.Error("Entries differ from snapshot")
	}
}

func TestOpenReaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Extension)
	if err := os.WriteFile(path, make([]byte, HeaderSize+FooterSize), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected bad magic error")
	}
}

func TestOpenReaderRejectsOutOfRangeSections(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(buildIndex(t).Snapshot(), nil, Meta{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	valid, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(h *SegmentHeader)
	}{
		{"huge dictionary", func(h *SegmentHeader) { h.DictSize = 1<<63 - 1 }},
		{"negative documents", func(h *SegmentHeader) { h.DocsSize = -1 }},
		{"dictionary past end", func(h *SegmentHeader) { h.DictOffset += 1 << 20 }},
		{"postings overlap header", func(h *SegmentHeader) { h.PostOffset = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := decodeHeader(valid[:HeaderSize])
			tt.mutate(&h)
			data := append(encodeHeader(h), valid[HeaderSize:]...)
			path := filepath.Join(t.TempDir(), "seg"+Extension)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			if r, err := OpenReader(path); err == nil {
				r.Close()
				t.Fatal("expected corrupt segment error")
			}
		})
	}
}

func TestOpenReaderRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	name, err := NewWriter(dir).Write(buildIndex(t).Snapshot(), nil, Meta{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-int64(FooterSize)-1); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected truncated segment error")
	}
}
