package collection

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ir-eval-harness/pkg/errors"
)

// feedItem mirrors one <item> element. Pointer fields distinguish a missing
// element from an empty one.
type feedItem struct {
	Title      *string `xml:"title"`
	Abstract   *string `xml:"abstract"`
	SearchTask *string `xml:"search_task_number"`
	Query      *string `xml:"query"`
	Relevance  *string `xml:"relevance"`
}

// ParseFile opens the feed at path and parses it.
func ParseFile(path string) ([]DocumentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed %s: %w", path, err)
	}
	defer f.Close()
	records, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", path, err)
	}
	return records, nil
}

// Parse streams <item> elements from r. The first malformed item aborts the
// parse with a RecordError naming its 0-based position.
func Parse(r io.Reader) ([]DocumentRecord, error) {
	dec := xml.NewDecoder(r)
	records := make([]DocumentRecord, 0, 64)
	position := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Newf(position, "", "reading xml: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "item" {
			continue
		}
		var item feedItem
		if err := dec.DecodeElement(&item, &start); err != nil {
			return nil, apperrors.Newf(position, "", "decoding item: %v", err)
		}
		record, err := item.toRecord(position)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		position++
	}
	slog.Debug("feed parsed", "records", len(records))
	return records, nil
}

func (it feedItem) toRecord(position int) (DocumentRecord, error) {
	if it.Title == nil {
		return DocumentRecord{}, apperrors.NewRecordError(position, "title", "element missing")
	}
	if it.Abstract == nil {
		return DocumentRecord{}, apperrors.NewRecordError(position, "abstract", "element missing")
	}
	if it.Query == nil {
		return DocumentRecord{}, apperrors.NewRecordError(position, "query", "element missing")
	}
	if it.SearchTask == nil {
		return DocumentRecord{}, apperrors.NewRecordError(position, "search_task_number", "element missing")
	}
	if it.Relevance == nil {
		return DocumentRecord{}, apperrors.NewRecordError(position, "relevance", "element missing")
	}
	task, err := strconv.Atoi(strings.TrimSpace(*it.SearchTask))
	if err != nil {
		return DocumentRecord{}, apperrors.Newf(position, "search_task_number", "not an integer: %q", *it.SearchTask)
	}
	relevant, err := parseRelevance(*it.Relevance)
	if err != nil {
		return DocumentRecord{}, apperrors.Newf(position, "relevance", "%v", err)
	}
	return DocumentRecord{
		Title:        strings.TrimSpace(*it.Title),
		AbstractText: strings.TrimSpace(*it.Abstract),
		SearchTask:   task,
		Query:        strings.TrimSpace(*it.Query),
		Relevant:     relevant,
	}, nil
}

func parseRelevance(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("not a relevance judgment: %q", v)
	}
}
