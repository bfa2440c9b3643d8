package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/ir-eval-harness/internal/indexer/index"
)

// MagicBytes identifies a valid .irx segment file.
const (
	MagicBytes    uint32 = 0x49525831
	FormatVersion uint32 = 3
	HeaderSize    int    = 64
	FooterSize    int    = 16
	Extension            = ".irx"
)

// SegmentHeader is the 64-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	PostOffset int64
	PostSize   int64
	DictOffset int64
	DictSize   int64
	DocsOffset int64
	DocsSize   int64
}

// DictEntry maps a (field, term) pair to its postings offset, length, and
// document frequency in the segment file.
type DictEntry struct {
	Field      index.Field `json:"f"`
	Term       string      `json:"t"`
	PostOffset int64       `json:"o"`
	PostLen    int         `json:"l"`
	DocFreq    int         `json:"d"`
}

// Meta records what a segment was built from, so a reader can tell whether
// it still matches a corpus and pipeline.
type Meta struct {
	Corpus     string `json:"corpus"`
	Model      string `json:"model"`
	Stopwords  bool   `json:"stopwords"`
	Stemming   bool   `json:"stemming"`
	TargetTask int    `json:"task"`
}

// dictionary is the JSON block between the postings and the documents.
type dictionary struct {
	Meta    Meta        `json:"meta"`
	Entries []DictEntry `json:"entries"`
}

// Writer serialises a built index into a single segment file.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file holding the term entries,
// stored documents and meta. It writes to a .tmp file first and renames on
// success.
func (w *Writer) Write(entries []index.TermEntry, docs []index.Document, meta Meta) (string, error) {
	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), Extension)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(entries)),
		DocCount:  uint32(len(docs)),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("reserving header: %w", err)
	}

	header.PostOffset = int64(HeaderSize)
	var written int64
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for %s/%q: %w", entry.Field, entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for %s/%q: %w", entry.Field, entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: written,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		written += int64(len(postingsData))
	}
	header.PostSize = written

	dictData, err := json.Marshal(dictionary{Meta: meta, Entries: dict})
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictData))

	docsData, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("marshaling documents: %w", err)
	}
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing documents: %w", err)
	}
	header.DocsOffset = header.DictOffset + header.DictSize
	header.DocsSize = int64(len(docsData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(docsData))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(header.DocsOffset+header.DocsSize))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}

func encodeHeader(h SegmentHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.DocsSize))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		PostOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		DictOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}
