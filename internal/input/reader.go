// Package input decodes name rows from TSV, CSV and JSON lines files.
package input

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paranames/app/models"
)

// Supported formats
const (
	FormatTSV   = "tsv"
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Columns maps row fields to input column names. Each field lists the
// accepted names in order of preference.
type Columns struct {
	ID       []string `mapstructure:"id" yaml:"id"`
	Type     []string `mapstructure:"type" yaml:"type"`
	Alias    []string `mapstructure:"alias" yaml:"alias"`
	English  []string `mapstructure:"english" yaml:"english"`
	Language []string `mapstructure:"language" yaml:"language"`
	IsLatin  []string `mapstructure:"is_latin" yaml:"is_latin"`
}

// DefaultColumns accepts both naming schemes of the upstream dumps
func DefaultColumns() Columns {
	return Columns{
		ID:       []string{"wikidata_id", "id"},
		Type:     []string{"type"},
		Alias:    []string{"alias"},
		English:  []string{"eng", "name"},
		Language: []string{"language"},
		IsLatin:  []string{"is_latin"},
	}
}

// missingValues are read as empty cells
var missingValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "1.#IND": true, "1.#QNAN": true, "<NA>": true,
	"N/A": true, "NA": true, "NULL": true, "NaN": true, "n/a": true, "null": true,
}

// DecodeStats counts decoded and skipped rows
type DecodeStats struct {
	Decoded int
	Skipped int
	Reasons map[string]int
}

func (s *DecodeStats) skip(reason string) {
	if s.Reasons == nil {
		s.Reasons = make(map[string]int)
	}
	s.Skipped++
	s.Reasons[reason]++
}

// Reader decodes rows in one format
type Reader struct {
	format  string
	columns Columns
}

// NewReader validates the format
func NewReader(format string, columns Columns) (*Reader, error) {
	switch format {
	case FormatTSV, FormatCSV, FormatJSONL:
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	return &Reader{format: format, columns: columns}, nil
}

// FormatFromPath guesses the format from the file extension
func FormatFromPath(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return FormatTSV
	}
	switch ext := strings.ToLower(path[i+1:]); ext {
	case "csv", "jsonl":
		return ext
	case "json":
		return FormatJSONL
	}
	return FormatTSV
}

// ReadFile decodes all rows of a file
func (r *Reader) ReadFile(path string) ([]models.NameRow, DecodeStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, DecodeStats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return r.Read(f)
}

// Read decodes all rows. Malformed rows are skipped and counted; only I/O
// and header errors are returned.
func (r *Reader) Read(in io.Reader) ([]models.NameRow, DecodeStats, error) {
	if r.format == FormatJSONL {
		return r.readJSONL(in)
	}
	return r.readDelimited(in)
}

func (r *Reader) readDelimited(in io.Reader) ([]models.NameRow, DecodeStats, error) {
	var stats DecodeStats
	cr := csv.NewReader(in)
	if r.format == FormatTSV {
		cr.Comma = '\t'
		cr.LazyQuotes = true
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	var rows []models.NameRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.skip("parse_error")
				continue
			}
			return rows, stats, fmt.Errorf("read row: %w", err)
		}
		get := func(names []string) string {
			for _, n := range names {
				if i, ok := index[n]; ok && i < len(rec) {
					return rec[i]
				}
			}
			return ""
		}
		row, reason := r.build(get)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		stats.Decoded++
		rows = append(rows, row)
	}
	return rows, stats, nil
}

func (r *Reader) readJSONL(in io.Reader) ([]models.NameRow, DecodeStats, error) {
	var stats DecodeStats
	var rows []models.NameRow

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			stats.skip("parse_error")
			continue
		}
		get := func(names []string) string {
			for _, n := range names {
				if v, ok := obj[n]; ok && v != nil {
					switch x := v.(type) {
					case string:
						return x
					case bool:
						return strconv.FormatBool(x)
					default:
						return fmt.Sprint(x)
					}
				}
			}
			return ""
		}
		row, reason := r.build(get)
		if reason != "" {
			stats.skip(reason)
			continue
		}
		stats.Decoded++
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return rows, stats, fmt.Errorf("scan jsonl: %w", err)
	}
	return rows, stats, nil
}

func (r *Reader) build(get func([]string) string) (models.NameRow, string) {
	cell := func(names []string) string {
		v := strings.TrimSpace(get(names))
		if missingValues[v] {
			return ""
		}
		return v
	}

	row := models.NameRow{
		WikidataID: cell(r.columns.ID),
		Type:       cell(r.columns.Type),
		Alias:      cell(r.columns.Alias),
		English:    cell(r.columns.English),
		Language:   cell(r.columns.Language),
	}
	switch {
	case row.WikidataID == "":
		return row, "missing_id"
	case row.Alias == "":
		return row, "missing_alias"
	case row.Language == "":
		return row, "missing_language"
	}
	if v := cell(r.columns.IsLatin); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return row, "bad_is_latin"
		}
		row.IsLatin = &b
	}
	return row, ""
}
