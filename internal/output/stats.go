package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/paranames/app/models"
)

// LanguageNamer maps a language code to a readable name
type LanguageNamer interface {
	Name(code string) string
}

// WriteStats writes one line per language: name, mean crossings, permuted
// and unchanged counts. Languages are sorted by code.
func WriteStats(out io.Writer, stats map[string]*models.CorpusStatistics, namer LanguageNamer) error {
	codes := make([]string, 0, len(stats))
	for code := range stats {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	cw := csv.NewWriter(out)
	cw.Comma = '\t'
	if err := cw.Write([]string{"language", "mean_crossings", "permuted", "unchanged"}); err != nil {
		return err
	}
	for _, code := range codes {
		s := stats[code]
		name := code
		if namer != nil {
			name = namer.Name(code)
		}
		rec := []string{
			name,
			strconv.FormatFloat(s.MeanCrossings(), 'f', 4, 64),
			strconv.Itoa(s.Permuted()),
			strconv.Itoa(s.Unchanged()),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteStatsFile writes the statistics table to path
func WriteStatsFile(path string, stats map[string]*models.CorpusStatistics, namer LanguageNamer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteStats(f, stats, namer); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
