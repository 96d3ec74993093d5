package permuter

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/paranames/internal/external"
	"github.com/xrash/smetrics"
)

// Token bounds of names the edit distance permuter rewrites
const (
	DefaultMinTokens = 2
	DefaultMaxTokens = 4
)

// DistanceFunc measures how far a romanized candidate is from the reference
type DistanceFunc func(candidate, reference string) float64

// Distance metric names accepted by DistanceByName
const (
	MetricLevenshtein   = "levenshtein"
	MetricJaroWinkler   = "jaro_winkler"
	MetricWagnerFischer = "wagner_fischer"
)

// DistanceByName returns a distance metric by its configured name
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case "", MetricLevenshtein:
		return func(a, b string) float64 { return float64(levenshtein.ComputeDistance(a, b)) }, nil
	case MetricJaroWinkler:
		return func(a, b string) float64 { return 1 - smetrics.JaroWinkler(a, b, 0.7, 4) }, nil
	case MetricWagnerFischer:
		return func(a, b string) float64 { return float64(smetrics.WagnerFischer(a, b, 1, 1, 2)) }, nil
	}
	return nil, fmt.Errorf("unknown distance metric %q", name)
}

// EditDistancePermuter reorders the tokens of short names so that their
// romanization is closest to the English reference.
type EditDistancePermuter struct {
	romanizer external.Romanizer
	distance  DistanceFunc
	minTokens int
	maxTokens int
}

// EditDistanceOption customizes an EditDistancePermuter
type EditDistanceOption func(*EditDistancePermuter)

// WithDistance replaces the default Levenshtein distance
func WithDistance(d DistanceFunc) EditDistanceOption {
	return func(p *EditDistancePermuter) { p.distance = d }
}

// WithTokenBounds changes the inclusive token count range
func WithTokenBounds(min, max int) EditDistanceOption {
	return func(p *EditDistancePermuter) { p.minTokens, p.maxTokens = min, max }
}

// NewEditDistancePermuter creates the permuter on top of a romanizer
func NewEditDistancePermuter(r external.Romanizer, opts ...EditDistanceOption) *EditDistancePermuter {
	p := &EditDistancePermuter{
		romanizer: r,
		minTokens: DefaultMinTokens,
		maxTokens: DefaultMaxTokens,
	}
	p.distance, _ = DistanceByName(MetricLevenshtein)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *EditDistancePermuter) Name() string { return "permute_lowest_distance" }

// Permute romanizes all texts in one batch, then picks the best ordering of
// each in-range name.
func (p *EditDistancePermuter) Permute(ctx context.Context, texts, english []string) ([]string, error) {
	romanized, err := p.romanizer.Romanize(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("romanize: %w", err)
	}
	if len(romanized) != len(texts) {
		return nil, fmt.Errorf("%w: romanizer returned %d strings for %d texts", external.ErrCountMismatch, len(romanized), len(texts))
	}

	out := make([]string, len(texts))
	for i, text := range texts {
		ref := ""
		if i < len(english) {
			ref = english[i]
		}
		out[i] = p.best(text, romanized[i], ref)
	}
	return out, nil
}

// best steps through the orderings of the name and of its romanization in
// lexicographic index order together, stopping when either runs out, and
// keeps the first ordering with the strictly lowest distance.
func (p *EditDistancePermuter) best(text, romanized, reference string) string {
	tokens := strings.Fields(text)
	if len(tokens) < p.minTokens || len(tokens) > p.maxTokens {
		return text
	}
	romTokens := strings.Fields(romanized)

	bestText, bestDistance := text, math.Inf(1)
	namePerm, romPerm := identity(len(tokens)), identity(len(romTokens))
	for {
		d := p.distance(joinPermuted(romTokens, romPerm), reference)
		if d < bestDistance {
			bestDistance = d
			bestText = joinPermuted(tokens, namePerm)
		}
		if !nextPermutation(namePerm) || !nextPermutation(romPerm) {
			break
		}
	}
	return bestText
}

func joinPermuted(tokens []string, perm []int) string {
	parts := make([]string, len(perm))
	for i, ix := range perm {
		parts[i] = tokens[ix]
	}
	return strings.Join(parts, " ")
}

func identity(n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// nextPermutation advances p in place; false once p is the last ordering
func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for l, r := i+1, len(p)-1; l < r; l, r = l+1, r-1 {
		p[l], p[r] = p[r], p[l]
	}
	return true
}
