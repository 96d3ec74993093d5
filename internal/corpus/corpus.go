// Package corpus runs the normalization, alignment and tagging stages over
// the names of one language, or over a pooled set of languages.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/external"
	"github.com/paranames/internal/permuter"
	"github.com/paranames/internal/script"
	"github.com/paranames/internal/tagger"
	"go.uber.org/zap"
)

// PooledLanguage is the key of a corpus spanning several languages
const PooledLanguage = "all"

// Corpus is an ordered collection of names sharing a language key
type Corpus struct {
	language string
	names    []*models.TransliteratedName
	analyzer *script.Analyzer
	logger   *zap.Logger

	stats         *models.CorpusStatistics
	languageStats map[string]*models.CorpusStatistics
}

// New creates a corpus. Every name is switched to the corpus analyzer so
// that block statistics are computed with one configuration.
func New(language string, names []*models.TransliteratedName, analyzer *script.Analyzer, logger *zap.Logger) *Corpus {
	own := make([]*models.TransliteratedName, len(names))
	copy(own, names)
	for _, n := range own {
		n.SetAnalyzer(analyzer)
	}
	return &Corpus{language: language, names: own, analyzer: analyzer, logger: logger}
}

// FromRows builds a corpus from input rows
func FromRows(language string, rows []models.NameRow, analyzer *script.Analyzer, logger *zap.Logger) *Corpus {
	names := make([]*models.TransliteratedName, len(rows))
	for i, r := range rows {
		names[i] = models.NewNameFromRow(r, analyzer)
	}
	return New(language, names, analyzer, logger)
}

// Language returns the corpus key
func (c *Corpus) Language() string { return c.language }

// IsPooled reports whether the corpus spans several languages
func (c *Corpus) IsPooled() bool { return c.language == PooledLanguage }

// Names returns the names in order
func (c *Corpus) Names() []*models.TransliteratedName { return c.names }

// Len returns the number of names
func (c *Corpus) Len() int { return len(c.names) }

// Analyzer returns the analyzer shared by the names
func (c *Corpus) Analyzer() *script.Analyzer { return c.analyzer }

// Texts returns the current text of every name
func (c *Corpus) Texts() []string {
	out := make([]string, len(c.names))
	for i, n := range c.names {
		out[i] = n.Text
	}
	return out
}

// Prototype is the block distribution of all names taken together, noise
// samples excluded
func (c *Corpus) Prototype() map[string]float64 {
	texts := make([]string, 0, len(c.names))
	for _, n := range c.names {
		if !n.NoiseSample {
			texts = append(texts, n.Text)
		}
	}
	return c.analyzer.Merge(texts).Histogram(true)
}

// ExpectedBlock is the block most names have as their most common block.
// Names without a block are ignored; ties go to the block seen first.
func (c *Corpus) ExpectedBlock() string {
	counts := make(map[string]int)
	var order []string
	for _, n := range c.names {
		if n.NoiseSample {
			continue
		}
		b := n.MostCommonBlock()
		if b == "" {
			continue
		}
		if _, seen := counts[b]; !seen {
			order = append(order, b)
		}
		counts[b]++
	}
	best, bestCount := "", 0
	for _, b := range order {
		if counts[b] > bestCount {
			best, bestCount = b, counts[b]
		}
	}
	return best
}

// ApplyPermuter rewrites the names. In place mode mutates the records,
// otherwise the corpus switches to new records and the old ones are left
// untouched.
func (c *Corpus) ApplyPermuter(ctx context.Context, p permuter.Permuter, inPlace bool) error {
	if inPlace {
		if err := permuter.ApplyInPlace(ctx, p, c.names); err != nil {
			return err
		}
	} else {
		out, err := permuter.Apply(ctx, p, c.names)
		if err != nil {
			return err
		}
		c.names = out
	}
	c.invalidate()

	c.logger.Info("Permuted names",
		zap.String("language", c.language),
		zap.String("permuter", p.Name()),
		zap.Int("names", len(c.names)),
		zap.Int("changed", c.countChanged()))
	return nil
}

func (c *Corpus) countChanged() int {
	changed := 0
	for _, n := range c.names {
		if !n.IsUnchanged {
			changed++
		}
	}
	return changed
}

// DropBlank removes names whose text is empty after normalization and
// returns how many were removed.
func (c *Corpus) DropBlank() int {
	kept := c.names[:0]
	dropped := 0
	for _, n := range c.names {
		if strings.TrimSpace(n.Text) == "" {
			dropped++
			continue
		}
		kept = append(kept, n)
	}
	for i := len(kept); i < len(c.names); i++ {
		c.names[i] = nil
	}
	c.names = kept
	if dropped > 0 {
		c.invalidate()
	}
	return dropped
}

// ComputeAlignments aligns every name that has an English reference
func (c *Corpus) ComputeAlignments(ctx context.Context, aligner external.Aligner) error {
	alignments, err := aligner.Align(ctx, c.names)
	if err != nil {
		return fmt.Errorf("align %s: %w", c.language, err)
	}
	if len(alignments) != len(c.names) {
		return fmt.Errorf("align %s: %w: %d alignments for %d names", c.language, external.ErrCountMismatch, len(alignments), len(c.names))
	}
	c.invalidate()

	stats := c.Stats()
	c.logger.Info("Computed alignments",
		zap.String("language", c.language),
		zap.Int("aligned", stats.Aligned()),
		zap.Float64("mean_crossings", stats.MeanCrossings()))
	return nil
}

func (c *Corpus) invalidate() {
	c.stats = nil
	c.languageStats = nil
}

// Stats returns statistics over the whole corpus
func (c *Corpus) Stats() *models.CorpusStatistics {
	if c.stats == nil {
		c.stats = models.NewCorpusStatistics(c.names)
	}
	return c.stats
}

// ComputeStats returns the global statistics and one entry per language
func (c *Corpus) ComputeStats() (*models.CorpusStatistics, map[string]*models.CorpusStatistics) {
	if c.languageStats == nil {
		byLang := make(map[string][]*models.TransliteratedName)
		for _, n := range c.names {
			byLang[n.Language] = append(byLang[n.Language], n)
		}
		c.languageStats = make(map[string]*models.CorpusStatistics, len(byLang))
		for lang, names := range byLang {
			c.languageStats[lang] = models.NewCorpusStatistics(names)
		}
	}
	return c.Stats(), c.languageStats
}

// Languages lists the distinct languages of the names, sorted
func (c *Corpus) Languages() []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range c.names {
		if !seen[n.Language] {
			seen[n.Language] = true
			out = append(out, n.Language)
		}
	}
	sort.Strings(out)
	return out
}

// Tag runs the ensemble over the names and records the labels
func (c *Corpus) Tag(e *tagger.Ensemble) []models.Label {
	labels := e.Tag(c.names)

	anomalous := 0
	for _, l := range labels {
		if l == models.Anomalous {
			anomalous++
		}
	}
	c.logger.Info("Tagged names",
		zap.String("language", c.language),
		zap.String("aggregator", e.Aggregator().Name()),
		zap.Int("names", len(labels)),
		zap.Int("anomalous", anomalous))
	return labels
}

// SplitNames partitions the names into kept and filtered ones. Abstained
// names are kept. Noise samples are left out unless includeNoise is set.
func (c *Corpus) SplitNames(includeNoise bool) (kept, filtered []*models.TransliteratedName) {
	for _, n := range c.names {
		if n.NoiseSample && !includeNoise {
			continue
		}
		if n.Anomalous == models.Anomalous {
			n.State = models.StateFiltered
			filtered = append(filtered, n)
		} else {
			n.State = models.StateKept
			kept = append(kept, n)
		}
	}
	return kept, filtered
}

// AddWords appends names, typically synthetic noise samples
func (c *Corpus) AddWords(names ...*models.TransliteratedName) {
	for _, n := range names {
		n.SetAnalyzer(c.analyzer)
	}
	c.names = append(c.names, names...)
	c.invalidate()
}

// SliceByLanguage splits a corpus into one corpus per language, in sorted
// language order. Names are shared, not copied.
func (c *Corpus) SliceByLanguage() []*Corpus {
	byLang := make(map[string][]*models.TransliteratedName)
	for _, n := range c.names {
		byLang[n.Language] = append(byLang[n.Language], n)
	}
	out := make([]*Corpus, 0, len(byLang))
	for _, lang := range c.Languages() {
		out = append(out, &Corpus{language: lang, names: byLang[lang], analyzer: c.analyzer, logger: c.logger})
	}
	return out
}

// Ensemble builds the standard taggers from this corpus' expected block and
// prototype.
func (c *Corpus) Ensemble(aggregator tagger.Aggregator, criticalValue float64, measure string) (*tagger.Ensemble, error) {
	taggers, err := tagger.DefaultTaggers(c.ExpectedBlock(), c.Prototype(), criticalValue, measure)
	if err != nil {
		return nil, err
	}
	return tagger.NewEnsemble(aggregator, taggers...), nil
}
