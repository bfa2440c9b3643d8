package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
)

type Reader struct {
	file     *os.File
	filePath string
	header   SegmentHeader
	meta     Meta
	dict     []DictEntry
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := open(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func open(f *os.File, path string) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	if err := header.check(info.Size()); err != nil {
		return nil, fmt.Errorf("corrupt segment %s: %w", path, err)
	}

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("dictionary checksum mismatch in %s", path)
	}
	var dict dictionary
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	for _, d := range dict.Entries {
		if d.PostOffset < 0 || d.PostLen < 0 || d.PostOffset > header.PostSize-int64(d.PostLen) {
			return nil, fmt.Errorf("corrupt segment %s: postings of %s/%q out of range", path, d.Field, d.Term)
		}
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		meta:     dict.Meta,
		dict:     dict.Entries,
	}, nil
}

// check verifies that the postings, dictionary and documents sections are
// laid out back to back after the header and that the footer ends the file.
func (h SegmentHeader) check(fileSize int64) error {
	if fileSize < int64(HeaderSize+FooterSize) {
		return fmt.Errorf("file is %d bytes, shorter than header and footer", fileSize)
	}
	limit := fileSize - int64(HeaderSize+FooterSize)
	for _, size := range []int64{h.PostSize, h.DictSize, h.DocsSize} {
		if size < 0 || size > limit {
			return fmt.Errorf("section size %d outside 0..%d", size, limit)
		}
	}
	switch {
	case h.PostOffset != int64(HeaderSize):
		return fmt.Errorf("postings offset %d, want %d", h.PostOffset, HeaderSize)
	case h.DictOffset != h.PostOffset+h.PostSize:
		return fmt.Errorf("dictionary offset %d does not follow postings", h.DictOffset)
	case h.DocsOffset != h.DictOffset+h.DictSize:
		return fmt.Errorf("documents offset %d does not follow dictionary", h.DocsOffset)
	case h.DocsOffset+h.DocsSize+int64(FooterSize) != fileSize:
		return fmt.Errorf("sections end at %d, file is %d bytes", h.DocsOffset+h.DocsSize+int64(FooterSize), fileSize)
	}
	return nil
}

// Meta returns what the segment was built from.
func (r *Reader) Meta() Meta {
	return r.meta
}

// Entries reads every posting list in dictionary order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	entries := make([]index.TermEntry, 0, len(r.dict))
	for _, d := range r.dict {
		postings, err := r.readPostings(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{
			Field:    d.Field,
			Term:     d.Term,
			Postings: postings,
		})
	}
	return entries, nil
}

// Documents reads the stored documents.
func (r *Reader) Documents() ([]index.Document, error) {
	data := make([]byte, r.header.DocsSize)
	if _, err := r.file.ReadAt(data, r.header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := r.file.ReadAt(footer, r.header.DocsOffset+r.header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	if crc32.ChecksumIEEE(data) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("documents checksum mismatch in %s", r.filePath)
	}
	var docs []index.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing documents: %w", err)
	}
	return docs, nil
}

func (r *Reader) readPostings(d DictEntry) (index.PostingList, error) {
	postingsBytes := make([]byte, d.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.header.PostOffset+d.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings: %w", err)
	}
	return postings, nil
}

func (r *Reader) Terms() int {
	return len(r.dict)
}

func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

func (r *Reader) Close() error {
	return r.file.Close()
}
