// Package tagger flags names written in an unexpected script and combines
// the votes of several taggers into one label.
package tagger

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/paranames/app/models"
	"gonum.org/v1/gonum/stat"
)

// Tagger classifies one name. Implementations are pure and never fail;
// Abstain is a regular answer.
type Tagger interface {
	Name() string
	Classify(n *models.TransliteratedName) models.Label
}

// CJKFamily matches Japanese, the Chinese variants, Classical Chinese and Wu
var CJKFamily = regexp.MustCompile(`^(ja|zh|lzh|wuu)(-.*)?$`)

// IncorrectBlockTagger flags names whose most common block is not the
// expected one.
type IncorrectBlockTagger struct {
	ExpectedBlock string
}

func (t IncorrectBlockTagger) Name() string { return "incorrect_block" }

func (t IncorrectBlockTagger) Classify(n *models.TransliteratedName) models.Label {
	return models.LabelFromBool(n.MostCommonBlock() != t.ExpectedBlock)
}

// MissingBlockTagger flags names without any character from RequiredBlock
type MissingBlockTagger struct {
	RequiredBlock string
}

func (t MissingBlockTagger) Name() string { return "missing_block" }

func (t MissingBlockTagger) Classify(n *models.TransliteratedName) models.Label {
	_, ok := n.BlockHistogram()[t.RequiredBlock]
	return models.LabelFromBool(!ok)
}

// Divergence names accepted by DistanceTagger
const (
	JensenShannon   = "jensen_shannon"
	KullbackLeibler = "kullback_leibler"
)

// DistanceTagger flags names whose block distribution is at least
// CriticalValue away from a reference distribution.
type DistanceTagger struct {
	reference     map[string]float64
	criticalValue float64
	measure       string
}

// NewDistanceTagger validates the divergence name
func NewDistanceTagger(reference map[string]float64, criticalValue float64, measure string) (*DistanceTagger, error) {
	if measure == "" {
		measure = JensenShannon
	}
	if measure != JensenShannon && measure != KullbackLeibler {
		return nil, fmt.Errorf("unknown distance measure %q", measure)
	}
	return &DistanceTagger{reference: reference, criticalValue: criticalValue, measure: measure}, nil
}

func (t *DistanceTagger) Name() string { return "distance_" + t.measure }

// Classify abstains for names without qualifying characters
func (t *DistanceTagger) Classify(n *models.TransliteratedName) models.Label {
	hist := n.BlockHistogram()
	if len(hist) == 0 || len(t.reference) == 0 {
		return models.Abstain
	}
	return models.LabelFromBool(t.Distance(hist) >= t.criticalValue)
}

// Distance computes the divergence of p from the reference over the union of
// both supports.
func (t *DistanceTagger) Distance(p map[string]float64) float64 {
	ps, qs := alignDistributions(p, t.reference)
	switch t.measure {
	case KullbackLeibler:
		return stat.KullbackLeibler(ps, qs)
	default:
		return stat.JensenShannon(ps, qs)
	}
}

func alignDistributions(p, q map[string]float64) ([]float64, []float64) {
	keys := make([]string, 0, len(p)+len(q))
	for k := range p {
		keys = append(keys, k)
	}
	for k := range q {
		if _, ok := p[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	ps := make([]float64, len(keys))
	qs := make([]float64, len(keys))
	for i, k := range keys {
		ps[i] = p[k]
		qs[i] = q[k]
	}
	return normalize(ps), normalize(qs)
}

func normalize(xs []float64) []float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	if sum == 0 || math.Abs(sum-1) < 1e-12 {
		return xs
	}
	for i := range xs {
		xs[i] /= sum
	}
	return xs
}

// KanaTagger checks the presence of Hiragana or Katakana. Japanese names
// must contain kana, the Chinese family must not. Other languages abstain.
type KanaTagger struct{}

func (KanaTagger) Name() string { return "kana" }

func (KanaTagger) Classify(n *models.TransliteratedName) models.Label {
	if !CJKFamily.MatchString(n.Language) {
		return models.Abstain
	}
	hist := n.BlockHistogram()
	_, hiragana := hist["HIRAGANA"]
	_, katakana := hist["KATAKANA"]
	hasKana := hiragana || katakana
	if isJapanese(n.Language) {
		return models.LabelFromBool(!hasKana)
	}
	return models.LabelFromBool(hasKana)
}

// CJKTagger flags CJK family names without any CJK block
type CJKTagger struct{}

func (CJKTagger) Name() string { return "cjk" }

func (CJKTagger) Classify(n *models.TransliteratedName) models.Label {
	if !CJKFamily.MatchString(n.Language) {
		return models.Abstain
	}
	for block := range n.BlockHistogram() {
		if strings.HasPrefix(block, "CJK") {
			return models.NotAnomalous
		}
	}
	return models.Anomalous
}

func isJapanese(lang string) bool {
	return lang == "ja" || strings.HasPrefix(lang, "ja-")
}

// AllowedBlocksTagger flags names whose most common block is not in the
// allow list of their language. Languages without a list abstain.
type AllowedBlocksTagger struct {
	allowed map[string]map[string]bool
}

// NewAllowedBlocksTagger takes language -> allowed block labels
func NewAllowedBlocksTagger(allowed map[string][]string) *AllowedBlocksTagger {
	t := &AllowedBlocksTagger{allowed: make(map[string]map[string]bool, len(allowed))}
	for lang, blocks := range allowed {
		set := make(map[string]bool, len(blocks))
		for _, b := range blocks {
			set[b] = true
		}
		t.allowed[lang] = set
	}
	return t
}

func (t *AllowedBlocksTagger) Name() string { return "allowed_blocks" }

// Covers reports whether lang has an allow list
func (t *AllowedBlocksTagger) Covers(lang string) bool {
	_, ok := t.allowed[lang]
	return ok
}

func (t *AllowedBlocksTagger) Classify(n *models.TransliteratedName) models.Label {
	set, ok := t.allowed[n.Language]
	if !ok {
		return models.Abstain
	}
	block := n.MostCommonBlock()
	if block == "" {
		return models.Abstain
	}
	return models.LabelFromBool(!set[block])
}
