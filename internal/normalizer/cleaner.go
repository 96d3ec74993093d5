// Package normalizer cleans alias text before script analysis.
package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/paranames/app/models"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

const (
	zeroWidthNonJoiner = '\u200c'
	zeroWidthJoiner    = '\u200d'
)

// Cleaner applies NFC, the configured replacements and noise patterns, and
// collapses whitespace.
type Cleaner struct {
	replacer *strings.Replacer
	noise    []*regexp.Regexp
	logger   *zap.Logger
}

// NewCleaner builds a cleaner from the embedded rules
func NewCleaner(logger *zap.Logger) (*Cleaner, error) {
	rules, err := LoadRulesConfig()
	if err != nil {
		return nil, err
	}
	return NewCleanerWithRules(rules, logger)
}

// NewCleanerWithRules builds a cleaner from rules
func NewCleanerWithRules(rules *RulesConfig, logger *zap.Logger) (*Cleaner, error) {
	noise, err := rules.compile()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cleaner{replacer: rules.replacer(), noise: noise, logger: logger}, nil
}

// Clean returns the cleaned text
func (c *Cleaner) Clean(s string) string {
	s = norm.NFC.String(s)
	s = c.replacer.Replace(s)
	for _, re := range c.noise {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r == zeroWidthJoiner || r == zeroWidthNonJoiner:
			return r
		case unicode.IsSpace(r):
			return ' '
		case unicode.Is(unicode.Cc, r) || unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// CleanRows cleans aliases and English references. Rows whose alias is
// blank after cleaning are dropped.
func (c *Cleaner) CleanRows(rows []models.NameRow) []models.NameRow {
	out := make([]models.NameRow, 0, len(rows))
	changed := 0
	for _, r := range rows {
		alias := c.Clean(r.Alias)
		if alias != r.Alias {
			changed++
		}
		if alias == "" {
			continue
		}
		r.Alias = alias
		r.English = c.Clean(r.English)
		out = append(out, r)
	}
	c.logger.Debug("Cleaned aliases",
		zap.Int("rows", len(rows)),
		zap.Int("changed", changed),
		zap.Int("dropped", len(rows)-len(out)))
	return out
}
