// Package entity holds the row filters applied before names enter a corpus.
package entity

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/paranames/app/models"
	"go.uber.org/zap"
)

// DisambiguationRules maps the sorted, dash-joined types of an id to the
// canonical type. Combinations not listed keep their original types.
var DisambiguationRules = map[string]string{
	"LOC-ORG":     models.EntityLOC, // countries
	"LOC-ORG-PER": models.EntityORG, // tribes
	"ORG-PER":     models.EntityORG, // manufacturers
	"LOC-PER":     models.EntityPER,
}

// DefaultKeepListLanguages are the languages filtered by a keep list
var DefaultKeepListLanguages = []string{"am", "ti"}

// Report counts rows before and after a filter
type Report struct {
	Name   string
	Before int
	After  int
}

// Removed is the number of rows the filter dropped
func (r Report) Removed() int { return r.Before - r.After }

func (r Report) log(logger *zap.Logger) {
	if logger == nil {
		return
	}
	logger.Info("Filter applied",
		zap.String("filter", r.Name),
		zap.Int("before", r.Before),
		zap.Int("after", r.After),
		zap.Int("removed", r.Removed()))
}

// FilterPrefix drops rows whose id does not start with prefix, e.g. property ids
func FilterPrefix(rows []models.NameRow, prefix string, logger *zap.Logger) []models.NameRow {
	out := make([]models.NameRow, 0, len(rows))
	for i := range rows {
		if rows[i].HasEntityPrefix(prefix) {
			out = append(out, rows[i])
		}
	}
	Report{Name: "entity_prefix", Before: len(rows), After: len(out)}.log(logger)
	return out
}

// Disambiguate gives every id a single type using DisambiguationRules, then
// removes exact duplicate rows. Row order is kept.
func Disambiguate(rows []models.NameRow, logger *zap.Logger) []models.NameRow {
	types := make(map[string]map[string]struct{})
	for _, r := range rows {
		if r.Type == "" {
			continue
		}
		set, ok := types[r.WikidataID]
		if !ok {
			set = make(map[string]struct{})
			types[r.WikidataID] = set
		}
		set[r.Type] = struct{}{}
	}

	canonical := make(map[string]string)
	for id, set := range types {
		if len(set) < 2 {
			continue
		}
		list := make([]string, 0, len(set))
		for t := range set {
			list = append(list, t)
		}
		sort.Strings(list)
		if t, ok := DisambiguationRules[strings.Join(list, "-")]; ok {
			canonical[id] = t
		}
	}

	seen := make(map[models.NameRow]struct{}, len(rows))
	out := make([]models.NameRow, 0, len(rows))
	for _, r := range rows {
		if t, ok := canonical[r.WikidataID]; ok && r.Type != "" {
			r.Type = t
		}
		key := dedupeKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	Report{Name: "entity_disambiguation", Before: len(rows), After: len(out)}.log(logger)
	return out
}

// dedupeKey drops the fields that do not take part in row identity
func dedupeKey(r models.NameRow) models.NameRow {
	k := r
	k.IsLatin = nil
	return k
}

// KeepList restricts some languages to an explicit set of ids
type KeepList struct {
	languages map[string]struct{}
	ids       map[string]struct{}
}

// NewKeepList builds a keep list for languages
func NewKeepList(ids []string, languages []string) *KeepList {
	k := &KeepList{
		languages: make(map[string]struct{}, len(languages)),
		ids:       make(map[string]struct{}, len(ids)),
	}
	for _, l := range languages {
		k.languages[l] = struct{}{}
	}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			k.ids[id] = struct{}{}
		}
	}
	return k
}

// LoadKeepList reads one id per line
func LoadKeepList(path string, languages []string) (*KeepList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keep list: %w", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		ids = append(ids, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read keep list: %w", err)
	}
	return NewKeepList(ids, languages), nil
}

// Len is the number of ids in the list
func (k *KeepList) Len() int { return len(k.ids) }

// Keep reports whether the row survives. Rows of other languages always do;
// rows of a listed language need a listed id and a non-Latin alias.
func (k *KeepList) Keep(r models.NameRow) bool {
	if _, ok := k.languages[r.Language]; !ok {
		return true
	}
	_, listed := k.ids[r.WikidataID]
	return listed && !r.IsLatinScript()
}

// Filter applies Keep to every row
func (k *KeepList) Filter(rows []models.NameRow, logger *zap.Logger) []models.NameRow {
	out := make([]models.NameRow, 0, len(rows))
	for _, r := range rows {
		if k.Keep(r) {
			out = append(out, r)
		}
	}
	Report{Name: "keep_list", Before: len(rows), After: len(out)}.log(logger)
	return out
}
