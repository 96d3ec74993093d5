package services

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/normalizer"
	"github.com/paranames/internal/script"
)

// NoiseSampler picks names of other languages to inject into a language as
// known anomalies
type NoiseSampler struct {
	n      int
	seed   uint64
	logger *zap.Logger
}

// NewNoiseSampler samples up to n names per language. The same seed gives
// the same samples.
func NewNoiseSampler(n int, seed uint64, logger *zap.Logger) *NoiseSampler {
	return &NoiseSampler{n: n, seed: seed, logger: logger}
}

// Sample returns, per language, texts found in other languages but not in
// this one. Texts are compared by normalizer.MatchKey.
func (s *NoiseSampler) Sample(textsByLanguage map[string][]string) map[string][]string {
	out := make(map[string][]string, len(textsByLanguage))
	if s.n <= 0 {
		return out
	}

	languages := make([]string, 0, len(textsByLanguage))
	for lang := range textsByLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	keysByLanguage := make(map[string]map[string]bool, len(languages))
	for _, lang := range languages {
		keys := make(map[string]bool, len(textsByLanguage[lang]))
		for _, t := range textsByLanguage[lang] {
			keys[normalizer.MatchKey(t)] = true
		}
		keysByLanguage[lang] = keys
	}

	for i, lang := range languages {
		own := keysByLanguage[lang]
		seen := make(map[string]bool)
		var pool []string
		for _, other := range languages {
			if other == lang {
				continue
			}
			for _, t := range textsByLanguage[other] {
				if t == "" || seen[t] || own[normalizer.MatchKey(t)] {
					continue
				}
				seen[t] = true
				pool = append(pool, t)
			}
		}
		sort.Strings(pool)

		rng := rand.New(rand.NewPCG(s.seed, uint64(i)))
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		if len(pool) > s.n {
			pool = pool[:s.n]
		}
		out[lang] = pool

		if len(pool) < s.n {
			s.logger.Warn("Fewer noise candidates than requested",
				zap.String("language", lang),
				zap.Int("requested", s.n),
				zap.Int("available", len(pool)))
		}
	}
	return out
}

// NoiseNames wraps sampled texts as noise names of language
func NoiseNames(texts []string, language string, analyzer *script.Analyzer) []*models.TransliteratedName {
	out := make([]*models.TransliteratedName, len(texts))
	for i, t := range texts {
		n := models.NewTransliteratedName(t, language, analyzer)
		n.NoiseSample = true
		n.Anomalous = models.Anomalous
		out[i] = n
	}
	return out
}
