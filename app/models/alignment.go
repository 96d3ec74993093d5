package models

import (
	"sort"
	"sync"
)

// Link is one alignment link between a source and a target position
type Link struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// Alignment holds the links computed for one name
type Alignment struct {
	Links     []Link
	crossings int
}

// NewAlignment copies the links and counts their crossings
func NewAlignment(links []Link) *Alignment {
	own := make([]Link, len(links))
	copy(own, links)
	return &Alignment{Links: own, crossings: CountCrossings(own)}
}

// CrossingLinks returns the number of crossing links
func (a *Alignment) CrossingLinks() int {
	if a == nil {
		return 0
	}
	return a.crossings
}

// CountCrossings counts links whose target lies before a target already seen
// when scanning in source order.
func CountCrossings(links []Link) int {
	sorted := make([]Link, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Source < sorted[j].Source })

	crossings, maxTarget := 0, 0
	for _, l := range sorted {
		if l.Target < maxTarget {
			crossings++
		}
		if l.Target > maxTarget {
			maxTarget = l.Target
		}
	}
	return crossings
}

// CorpusStatistics aggregates crossing and permutation counts over a set of
// names. Values are computed on first access and cached.
type CorpusStatistics struct {
	names []*TransliteratedName

	once           sync.Once
	totalCrossings int
	aligned        int
	permuted       int
	unchanged      int
}

// NewCorpusStatistics snapshots the name slice
func NewCorpusStatistics(names []*TransliteratedName) *CorpusStatistics {
	own := make([]*TransliteratedName, len(names))
	copy(own, names)
	return &CorpusStatistics{names: own}
}

func (s *CorpusStatistics) compute() {
	s.once.Do(func() {
		for _, n := range s.names {
			if n.IsUnchanged {
				s.unchanged++
			} else {
				s.permuted++
			}
			if a := n.Alignment(); a != nil {
				s.aligned++
				s.totalCrossings += a.CrossingLinks()
			}
		}
	})
}

// TotalCrossings sums crossing links over aligned names
func (s *CorpusStatistics) TotalCrossings() int {
	s.compute()
	return s.totalCrossings
}

// MeanCrossings averages crossing links over aligned names, 0 when none
func (s *CorpusStatistics) MeanCrossings() float64 {
	s.compute()
	if s.aligned == 0 {
		return 0
	}
	return float64(s.totalCrossings) / float64(s.aligned)
}

// Aligned counts names that carry an alignment
func (s *CorpusStatistics) Aligned() int {
	s.compute()
	return s.aligned
}

// Permuted counts names whose text changed
func (s *CorpusStatistics) Permuted() int {
	s.compute()
	return s.permuted
}

// Unchanged counts names whose text is the original
func (s *CorpusStatistics) Unchanged() int {
	s.compute()
	return s.unchanged
}

// Size is the number of names covered
func (s *CorpusStatistics) Size() int { return len(s.names) }
