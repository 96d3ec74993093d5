package tagger

import (
	"math"

	"github.com/paranames/app/models"
	"gonum.org/v1/gonum/mat"
)

// LabelModelConfig tunes the label model
type LabelModelConfig struct {
	ClassBalance    float64 `mapstructure:"class_balance" yaml:"class_balance"`       // prior probability of anomalous
	MinOverlap      int     `mapstructure:"min_overlap" yaml:"min_overlap"`           // rows two taggers must share to be compared
	DefaultAccuracy float64 `mapstructure:"default_accuracy" yaml:"default_accuracy"` // used when a tagger cannot be estimated
}

// DefaultLabelModelConfig returns a balanced prior
func DefaultLabelModelConfig() LabelModelConfig {
	return LabelModelConfig{ClassBalance: 0.5, MinOverlap: 1, DefaultAccuracy: 0.5}
}

const (
	minAccuracy = 0.01
	maxAccuracy = 0.99
)

// LabelModel estimates the accuracy of each tagger from the vote matrix
// alone and labels each row by posterior log-odds.
//
// With labels Y and votes λ in {-1, +1}, a tagger that is conditionally
// independent of the others given Y satisfies E[λi λj] = ai aj with
// ai = E[λi Y]. For any three taggers |ai| = sqrt(|Mij Mik / Mjk|). Each
// accuracy is averaged over all usable triplets and assumed positive.
type LabelModel struct {
	cfg        LabelModelConfig
	accuracies []float64
}

// NewLabelModel fills unset config fields with defaults
func NewLabelModel(cfg LabelModelConfig) *LabelModel {
	def := DefaultLabelModelConfig()
	if cfg.ClassBalance <= 0 || cfg.ClassBalance >= 1 {
		cfg.ClassBalance = def.ClassBalance
	}
	if cfg.MinOverlap <= 0 {
		cfg.MinOverlap = def.MinOverlap
	}
	if cfg.DefaultAccuracy <= 0 || cfg.DefaultAccuracy >= 1 {
		cfg.DefaultAccuracy = def.DefaultAccuracy
	}
	return &LabelModel{cfg: cfg}
}

func (lm *LabelModel) Name() string { return MethodLabelModel }

// Accuracies returns the estimates of the last Fit
func (lm *LabelModel) Accuracies() []float64 {
	out := make([]float64, len(lm.accuracies))
	copy(out, lm.accuracies)
	return out
}

// Fit estimates tagger accuracies from the second moments of the votes
func (lm *LabelModel) Fit(vm *VoteMatrix) {
	rows, cols := vm.Dims()
	lm.accuracies = make([]float64, cols)
	for j := range lm.accuracies {
		lm.accuracies[j] = lm.cfg.DefaultAccuracy
	}
	if rows == 0 || cols < 3 {
		return
	}

	moments := lm.secondMoments(vm)
	for i := 0; i < cols; i++ {
		var sum float64
		var n int
		for j := 0; j < cols; j++ {
			for k := j + 1; k < cols; k++ {
				if j == i || k == i {
					continue
				}
				mij, mik, mjk := moments.At(i, j), moments.At(i, k), moments.At(j, k)
				if math.IsNaN(mij) || math.IsNaN(mik) || math.IsNaN(mjk) || mjk == 0 {
					continue
				}
				sum += math.Sqrt(math.Abs(mij * mik / mjk))
				n++
			}
		}
		if n > 0 {
			lm.accuracies[i] = clip(sum/float64(n), minAccuracy, maxAccuracy)
		}
	}
}

// secondMoments returns the mean product of votes for every tagger pair,
// over rows where both voted. Pairs with too little overlap are NaN.
func (lm *LabelModel) secondMoments(vm *VoteMatrix) *mat.SymDense {
	rows, cols := vm.Dims()
	products := mat.NewSymDense(cols, nil)
	products.SymOuterK(1, vm.votes.T())

	// indicator of a definite vote, to count overlaps with the same product
	voted := mat.NewDense(rows, cols, nil)
	voted.Apply(func(_, _ int, v float64) float64 {
		if v != 0 {
			return 1
		}
		return 0
	}, vm.votes)
	overlap := mat.NewSymDense(cols, nil)
	overlap.SymOuterK(1, voted.T())

	moments := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			c := overlap.At(i, j)
			if c < float64(lm.cfg.MinOverlap) {
				moments.SetSym(i, j, math.NaN())
				continue
			}
			moments.SetSym(i, j, products.At(i, j)/c)
		}
	}
	return moments
}

// LogOdds returns the posterior log-odds that row i is anomalous, and
// whether any tagger voted.
func (lm *LabelModel) LogOdds(vm *VoteMatrix, i int) (float64, bool) {
	_, cols := vm.Dims()
	p := lm.cfg.ClassBalance
	score := math.Log(p / (1 - p))
	voted := false
	for j := 0; j < cols; j++ {
		v := vm.votes.At(i, j)
		if v == 0 {
			continue
		}
		voted = true
		a := lm.cfg.DefaultAccuracy
		if j < len(lm.accuracies) {
			a = lm.accuracies[j]
		}
		score += v * math.Log((1+a)/(1-a))
	}
	return score, voted
}

// Aggregate fits the model on vm and labels every row
func (lm *LabelModel) Aggregate(vm *VoteMatrix) []models.Label {
	lm.Fit(vm)
	rows, _ := vm.Dims()
	out := make([]models.Label, rows)
	for i := range out {
		score, voted := lm.LogOdds(vm, i)
		switch {
		case !voted:
			out[i] = models.Abstain
		case score > 0:
			out[i] = models.Anomalous
		default:
			out[i] = models.NotAnomalous
		}
	}
	return out
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
