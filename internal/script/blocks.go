package script

import (
	_ "embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/blocks.yaml
var blocksYAML []byte

// BlockTable holds the Unicode block ranges loaded from the embedded YAML
type BlockTable struct {
	Version string   `yaml:"version"`
	Entries []string `yaml:"blocks"`

	ranges []blockRange
}

type blockRange struct {
	lo, hi rune
	label  string
}

var (
	defaultTable     *BlockTable
	defaultTableErr  error
	defaultTableOnce sync.Once
)

// DefaultBlocks returns the embedded block table, parsed once.
func DefaultBlocks() (*BlockTable, error) {
	defaultTableOnce.Do(func() {
		defaultTable, defaultTableErr = LoadBlockTable(blocksYAML)
	})
	return defaultTable, defaultTableErr
}

// LoadBlockTable parses a block table in "start..end; Name" form
func LoadBlockTable(data []byte) (*BlockTable, error) {
	table := &BlockTable{}
	if err := yaml.Unmarshal(data, table); err != nil {
		return nil, fmt.Errorf("parse block table: %w", err)
	}

	table.ranges = make([]blockRange, 0, len(table.Entries))
	for _, entry := range table.Entries {
		r, err := parseBlockEntry(entry)
		if err != nil {
			return nil, err
		}
		table.ranges = append(table.ranges, r)
	}

	sort.Slice(table.ranges, func(i, j int) bool { return table.ranges[i].lo < table.ranges[j].lo })
	for i := 1; i < len(table.ranges); i++ {
		if table.ranges[i].lo <= table.ranges[i-1].hi {
			return nil, fmt.Errorf("block %s overlaps %s", table.ranges[i].label, table.ranges[i-1].label)
		}
	}

	return table, nil
}

func parseBlockEntry(entry string) (blockRange, error) {
	span, name, ok := strings.Cut(entry, ";")
	if !ok {
		return blockRange{}, fmt.Errorf("malformed block entry %q", entry)
	}
	loStr, hiStr, ok := strings.Cut(strings.TrimSpace(span), "..")
	if !ok {
		return blockRange{}, fmt.Errorf("malformed block range %q", entry)
	}
	lo, err := strconv.ParseUint(loStr, 16, 32)
	if err != nil {
		return blockRange{}, fmt.Errorf("block %q: %w", entry, err)
	}
	hi, err := strconv.ParseUint(hiStr, 16, 32)
	if err != nil {
		return blockRange{}, fmt.Errorf("block %q: %w", entry, err)
	}
	if hi < lo {
		return blockRange{}, fmt.Errorf("block %q: end before start", entry)
	}
	return blockRange{lo: rune(lo), hi: rune(hi), label: BlockLabel(name)}, nil
}

// BlockLabel turns a Unicode block name into its label, e.g.
// "Latin-1 Supplement" -> "LATIN_1_SUPPLEMENT".
func BlockLabel(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// Of returns the block label of r, or "" when r falls outside every block.
func (t *BlockTable) Of(r rune) string {
	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].hi >= r })
	if i < len(t.ranges) && t.ranges[i].lo <= r {
		return t.ranges[i].label
	}
	return ""
}

// Labels lists all block labels in code point order
func (t *BlockTable) Labels() []string {
	labels := make([]string, len(t.ranges))
	for i, r := range t.ranges {
		labels[i] = r.label
	}
	return labels
}
