package tagger

import (
	"github.com/paranames/app/models"
)

// Ensemble runs a fixed set of taggers and combines their votes
type Ensemble struct {
	taggers    []Tagger
	aggregator Aggregator
}

// NewEnsemble keeps the tagger order; it fixes the vote matrix columns
func NewEnsemble(aggregator Aggregator, taggers ...Tagger) *Ensemble {
	return &Ensemble{taggers: taggers, aggregator: aggregator}
}

// DefaultTaggers builds the standard script checks for one language slice
func DefaultTaggers(expectedBlock string, prototype map[string]float64, criticalValue float64, measure string) ([]Tagger, error) {
	distance, err := NewDistanceTagger(prototype, criticalValue, measure)
	if err != nil {
		return nil, err
	}
	return []Tagger{
		IncorrectBlockTagger{ExpectedBlock: expectedBlock},
		MissingBlockTagger{RequiredBlock: expectedBlock},
		distance,
		KanaTagger{},
		CJKTagger{},
	}, nil
}

// Taggers returns the ensemble members in column order
func (e *Ensemble) Taggers() []Tagger { return e.taggers }

// Aggregator returns the combination policy
func (e *Ensemble) Aggregator() Aggregator { return e.aggregator }

// Votes collects the raw votes without aggregating them
func (e *Ensemble) Votes(names []*models.TransliteratedName) *VoteMatrix {
	return NewVoteMatrix(e.taggers, names)
}

// Tag aggregates the votes and writes the result to each name. It returns
// the labels in name order.
func (e *Ensemble) Tag(names []*models.TransliteratedName) []models.Label {
	labels := e.aggregator.Aggregate(e.Votes(names))
	for i, n := range names {
		n.SetAnomalous(labels[i])
	}
	return labels
}
