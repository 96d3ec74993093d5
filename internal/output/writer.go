// Package output writes name splits, corpus statistics and kept rows.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/paranames/app/models"
)

// Mode selects the columns of a name file
type Mode int

const (
	// AnomalyReview writes the most common block of each name to .txt files
	AnomalyReview Mode = iota
	// PermutationAudit writes original text and change flag to .tsv files
	PermutationAudit
)

// Split category names
const (
	CategoryAnomalous    = "anomalous"
	CategoryNonAnomalous = "non_anomalous"
	CategoryAllNames     = "all_names"
)

// Columns returns the header written in mode
func (m Mode) Columns() []string {
	cols := []string{"wikidata_id", "language", "type", "alias"}
	if m == PermutationAudit {
		return append(cols, "original_text", "is_unchanged")
	}
	return append(cols, "most_common_unicode_block")
}

func (m Mode) extension() string {
	if m == PermutationAudit {
		return "tsv"
	}
	return "txt"
}

// NameWriter writes one file per category into a folder created on demand
type NameWriter struct {
	folder string
}

// NewNameWriter returns a writer for folder
func NewNameWriter(folder string) *NameWriter {
	return &NameWriter{folder: folder}
}

// Folder returns the destination folder
func (w *NameWriter) Folder() string { return w.folder }

// Write writes every category, names sorted by text. It returns the paths in
// category order.
func (w *NameWriter) Write(splits map[string][]*models.TransliteratedName, mode Mode) ([]string, error) {
	if err := os.MkdirAll(w.folder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	categories := make([]string, 0, len(splits))
	for c := range splits {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	paths := make([]string, 0, len(categories))
	for _, category := range categories {
		path := filepath.Join(w.folder, category+"."+mode.extension())
		if err := writeNameFile(path, splits[category], mode); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeNameFile(path string, names []*models.TransliteratedName, mode Mode) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteNames(f, names, mode); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteNames writes a header and one row per name, sorted by text
func WriteNames(out io.Writer, names []*models.TransliteratedName, mode Mode) error {
	sorted := make([]*models.TransliteratedName, len(names))
	copy(sorted, names)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Text < sorted[j].Text })

	cw := csv.NewWriter(out)
	cw.Comma = '\t'
	if err := cw.Write(mode.Columns()); err != nil {
		return err
	}
	for _, n := range sorted {
		rec := []string{n.EntityID, n.Language, n.EntityType, n.Text}
		if mode == PermutationAudit {
			rec = append(rec, n.OriginalText, strconv.FormatBool(n.IsUnchanged))
		} else {
			rec = append(rec, n.MostCommonBlock())
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// AnomalySplits groups kept and filtered names under their file categories
func AnomalySplits(kept, filtered []*models.TransliteratedName) map[string][]*models.TransliteratedName {
	return map[string][]*models.TransliteratedName{
		CategoryAnomalous:    filtered,
		CategoryNonAnomalous: kept,
	}
}

// WriteRows writes rows back in the input format
func WriteRows(out io.Writer, rows []models.NameRow, format string) error {
	if format == "jsonl" {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}

	cw := csv.NewWriter(out)
	if format != "csv" {
		cw.Comma = '\t'
	}
	if err := cw.Write([]string{"wikidata_id", "eng", "alias", "type", "language"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.WikidataID, r.English, r.Alias, r.Type, r.Language}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRowsFile writes rows to path, creating its folder
func WriteRowsFile(path string, rows []models.NameRow, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteRows(f, rows, format); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
