// Package script classifies characters into Unicode blocks and builds
// per-string block histograms.
package script

import (
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the memo of each analyzer
const DefaultCacheSize = 10000

// Options configures an Analyzer
type Options struct {
	Strip              bool `mapstructure:"strip" yaml:"strip"`
	IgnorePunctuation  bool `mapstructure:"ignore_punctuation" yaml:"ignore_punctuation"`
	IgnoreNumbers      bool `mapstructure:"ignore_numbers" yaml:"ignore_numbers"`
	NormalizeHistogram bool `mapstructure:"normalize_histogram" yaml:"normalize_histogram"`
	CacheSize          int  `mapstructure:"cache_size" yaml:"cache_size"`
}

// DefaultOptions matches the settings used for script standardization
func DefaultOptions() Options {
	return Options{
		Strip:              true,
		IgnorePunctuation:  true,
		IgnoreNumbers:      true,
		NormalizeHistogram: true,
		CacheSize:          DefaultCacheSize,
	}
}

// Analyzer tallies Unicode blocks of strings. The memo belongs to the
// analyzer, so analyzers with different options never share entries.
type Analyzer struct {
	opts   Options
	blocks *BlockTable
	cache  *lru.Cache[string, BlockCounts]
}

// NewAnalyzer creates an Analyzer over the embedded block table
func NewAnalyzer(opts Options) (*Analyzer, error) {
	table, err := DefaultBlocks()
	if err != nil {
		return nil, err
	}
	return NewAnalyzerWithTable(opts, table)
}

// NewAnalyzerWithTable creates an Analyzer over a custom block table
func NewAnalyzerWithTable(opts Options, table *BlockTable) (*Analyzer, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, BlockCounts](size)
	if err != nil {
		return nil, fmt.Errorf("create analyzer cache: %w", err)
	}
	return &Analyzer{opts: opts, blocks: table, cache: cache}, nil
}

// MustNewAnalyzer is NewAnalyzer for package-level setup and tests
func MustNewAnalyzer(opts Options) *Analyzer {
	a, err := NewAnalyzer(opts)
	if err != nil {
		panic(err)
	}
	return a
}

// Options returns the analyzer configuration
func (a *Analyzer) Options() Options { return a.opts }

// Blocks tallies the qualifying characters of text by block, in order of
// first appearance.
func (a *Analyzer) Blocks(text string) BlockCounts {
	if counts, ok := a.cache.Get(text); ok {
		return counts
	}

	word := text
	if a.opts.Strip {
		word = strings.TrimSpace(word)
	}

	counts := BlockCounts{}
	for _, r := range word {
		if a.opts.IgnorePunctuation && isPunctuation(r) {
			continue
		}
		if a.opts.IgnoreNumbers && unicode.IsNumber(r) {
			continue
		}
		block := a.blocks.Of(r)
		if block == "" {
			continue
		}
		counts.add(block, 1)
	}

	a.cache.Add(text, counts)
	return counts
}

// MostCommonBlock returns the most frequent block of text, ties going to the
// block seen first. Returns "" when no character qualifies.
func (a *Analyzer) MostCommonBlock(text string) string {
	return a.Blocks(text).MostCommon()
}

// BlockHistogram returns per-block counts, divided by the number of
// qualifying characters when NormalizeHistogram is set. Text without
// qualifying characters yields an empty map.
func (a *Analyzer) BlockHistogram(text string) map[string]float64 {
	return a.Blocks(text).Histogram(a.opts.NormalizeHistogram)
}

func isPunctuation(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// BlockCounts is an insertion-ordered multiset of block labels
type BlockCounts struct {
	order  []string
	counts map[string]int
	total  int
}

func (bc *BlockCounts) add(block string, n int) {
	if bc.counts == nil {
		bc.counts = make(map[string]int)
	}
	if _, seen := bc.counts[block]; !seen {
		bc.order = append(bc.order, block)
	}
	bc.counts[block] += n
	bc.total += n
}

// Count returns the tally of block
func (bc BlockCounts) Count(block string) int { return bc.counts[block] }

// Total returns the number of tallied characters
func (bc BlockCounts) Total() int { return bc.total }

// Len returns the number of distinct blocks
func (bc BlockCounts) Len() int { return len(bc.order) }

// Labels returns the distinct blocks in order of first appearance
func (bc BlockCounts) Labels() []string {
	out := make([]string, len(bc.order))
	copy(out, bc.order)
	return out
}

// MostCommon returns the block with the highest count; ties resolve to the
// earliest inserted block.
func (bc BlockCounts) MostCommon() string {
	best, bestCount := "", 0
	for _, block := range bc.order {
		if c := bc.counts[block]; c > bestCount {
			best, bestCount = block, c
		}
	}
	return best
}

// Histogram converts the tally into a map, optionally normalized
func (bc BlockCounts) Histogram(normalize bool) map[string]float64 {
	hist := make(map[string]float64, len(bc.order))
	if bc.total == 0 {
		return hist
	}
	for _, block := range bc.order {
		c := float64(bc.counts[block])
		if normalize {
			c /= float64(bc.total)
		}
		hist[block] = c
	}
	return hist
}

// Merge tallies several strings as if they were concatenated
func (a *Analyzer) Merge(texts []string) BlockCounts {
	merged := BlockCounts{}
	for _, t := range texts {
		bc := a.Blocks(t)
		for _, block := range bc.order {
			merged.add(block, bc.counts[block])
		}
	}
	return merged
}
