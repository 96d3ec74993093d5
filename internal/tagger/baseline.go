package tagger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paranames/internal/script"
)

// ReadAllowedBlocks decodes a TSV with language_code and scripts_to_keep
// columns. Block names are comma-space separated and may be given as Unicode
// block names or labels.
func ReadAllowedBlocks(in io.Reader) (map[string][]string, error) {
	cr := csv.NewReader(in)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read scripts header: %w", err)
	}
	langIdx, scriptsIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case "language_code":
			langIdx = i
		case "scripts_to_keep":
			scriptsIdx = i
		}
	}
	if langIdx < 0 || scriptsIdx < 0 {
		return nil, errors.New("scripts file needs language_code and scripts_to_keep columns")
	}

	allowed := make(map[string][]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read scripts row: %w", err)
		}
		if langIdx >= len(rec) || scriptsIdx >= len(rec) {
			continue
		}
		lang := strings.TrimSpace(rec[langIdx])
		if lang == "" {
			continue
		}
		for _, name := range strings.Split(rec[scriptsIdx], ", ") {
			if label := script.BlockLabel(name); label != "" {
				allowed[lang] = append(allowed[lang], label)
			}
		}
	}
	return allowed, nil
}

// LoadAllowedBlocksTagger builds the baseline tagger from a scripts file
func LoadAllowedBlocksTagger(path string) (*AllowedBlocksTagger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scripts file: %w", err)
	}
	defer f.Close()

	allowed, err := ReadAllowedBlocks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewAllowedBlocksTagger(allowed), nil
}
