package tagger

import (
	"fmt"

	"github.com/paranames/app/models"
	"gonum.org/v1/gonum/mat"
)

// Aggregation methods
const (
	MethodAll          = "all"
	MethodAny          = "any"
	MethodMajorityVote = "majority_vote"
	MethodLabelModel   = "label_model"
	MethodBaseline     = "baseline"
)

// VoteMatrix holds one row per name and one column per tagger. Cells are
// +1 (anomalous), -1 (not anomalous) or 0 (abstain).
type VoteMatrix struct {
	votes   *mat.Dense
	taggers []string
}

// NewVoteMatrix collects the votes of every tagger for every name
func NewVoteMatrix(taggers []Tagger, names []*models.TransliteratedName) *VoteMatrix {
	labels := make([]string, len(taggers))
	for j, t := range taggers {
		labels[j] = t.Name()
	}
	vm := &VoteMatrix{taggers: labels}
	if len(names) == 0 || len(taggers) == 0 {
		return vm
	}
	vm.votes = mat.NewDense(len(names), len(taggers), nil)
	for i, n := range names {
		for j, t := range taggers {
			vm.votes.Set(i, j, t.Classify(n).Float())
		}
	}
	return vm
}

// VoteMatrixFromLabels builds a matrix from labels given row by row
func VoteMatrixFromLabels(rows [][]models.Label) (*VoteMatrix, error) {
	if len(rows) == 0 {
		return &VoteMatrix{}, nil
	}
	cols := len(rows[0])
	vm := &VoteMatrix{taggers: make([]string, cols)}
	for j := range vm.taggers {
		vm.taggers[j] = fmt.Sprintf("tagger_%d", j)
	}
	if cols == 0 {
		return vm, nil
	}
	vm.votes = mat.NewDense(len(rows), cols, nil)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d votes, expected %d", i, len(row), cols)
		}
		for j, l := range row {
			vm.votes.Set(i, j, l.Float())
		}
	}
	return vm, nil
}

// Dims returns the number of names and taggers
func (vm *VoteMatrix) Dims() (rows, cols int) {
	if vm.votes == nil {
		return 0, len(vm.taggers)
	}
	return vm.votes.Dims()
}

// Vote returns the label tagger j gave name i
func (vm *VoteMatrix) Vote(i, j int) models.Label {
	return models.LabelFromVote(vm.votes.At(i, j))
}

// Taggers lists the column names
func (vm *VoteMatrix) Taggers() []string { return vm.taggers }

// Tally counts the definite votes of row i
func (vm *VoteMatrix) Tally(i int) (anomalous, notAnomalous int) {
	_, cols := vm.Dims()
	for j := 0; j < cols; j++ {
		switch vm.Vote(i, j) {
		case models.Anomalous:
			anomalous++
		case models.NotAnomalous:
			notAnomalous++
		}
	}
	return anomalous, notAnomalous
}

// Aggregator turns a vote matrix into one label per row. A row without any
// definite vote stays Abstain.
type Aggregator interface {
	Name() string
	Aggregate(vm *VoteMatrix) []models.Label
}

// rowPolicy aggregates each row on its own tally
type rowPolicy struct {
	name   string
	decide func(anomalous, notAnomalous int) models.Label
}

func (p rowPolicy) Name() string { return p.name }

func (p rowPolicy) Aggregate(vm *VoteMatrix) []models.Label {
	rows, _ := vm.Dims()
	out := make([]models.Label, rows)
	for i := range out {
		a, n := vm.Tally(i)
		if a+n == 0 {
			out[i] = models.Abstain
			continue
		}
		out[i] = p.decide(a, n)
	}
	return out
}

// All flags a name only when every definite vote is anomalous
func All() Aggregator {
	return rowPolicy{name: MethodAll, decide: func(a, n int) models.Label {
		return models.LabelFromBool(n == 0)
	}}
}

// Any flags a name when at least one definite vote is anomalous
func Any() Aggregator {
	return rowPolicy{name: MethodAny, decide: func(a, n int) models.Label {
		return models.LabelFromBool(a > 0)
	}}
}

// MajorityVote flags a name when anomalous votes outnumber the others. Ties
// are not anomalous.
func MajorityVote() Aggregator {
	return rowPolicy{name: MethodMajorityVote, decide: func(a, n int) models.Label {
		return models.LabelFromBool(a > n)
	}}
}

// NewAggregator returns an aggregator by method name. The baseline method
// aggregates a single tagger, so any policy gives the same result; it maps
// to Any.
func NewAggregator(method string, lm LabelModelConfig) (Aggregator, error) {
	switch method {
	case MethodAll:
		return All(), nil
	case MethodAny, MethodBaseline:
		return Any(), nil
	case MethodMajorityVote:
		return MajorityVote(), nil
	case MethodLabelModel:
		return NewLabelModel(lm), nil
	}
	return nil, fmt.Errorf("unknown aggregation method %q", method)
}
