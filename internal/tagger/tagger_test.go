package tagger

import (
	"math"
	"testing"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	A = models.Anomalous
	N = models.NotAnomalous
	X = models.Abstain
)

func newName(t *testing.T, text, lang string) *models.TransliteratedName {
	t.Helper()
	return models.NewTransliteratedName(text, lang, script.MustNewAnalyzer(script.DefaultOptions()))
}

func TestIncorrectAndMissingBlockTaggers(t *testing.T) {
	incorrect := IncorrectBlockTagger{ExpectedBlock: "CYRILLIC"}
	missing := MissingBlockTagger{RequiredBlock: "CYRILLIC"}

	ok := newName(t, "Москва", "ru")
	mixed := newName(t, "Moskва", "ru")
	latin := newName(t, "Moscow", "ru")

	assert.Equal(t, N, incorrect.Classify(ok))
	assert.Equal(t, A, incorrect.Classify(mixed))
	assert.Equal(t, A, incorrect.Classify(latin))

	assert.Equal(t, N, missing.Classify(ok))
	assert.Equal(t, N, missing.Classify(mixed))
	assert.Equal(t, A, missing.Classify(latin))
}

func TestDistanceTagger(t *testing.T) {
	prototype := map[string]float64{"CYRILLIC": 0.95, "BASIC_LATIN": 0.05}
	jsd, err := NewDistanceTagger(prototype, 0.1, JensenShannon)
	require.NoError(t, err)

	assert.Equal(t, N, jsd.Classify(newName(t, "Москва", "ru")))
	assert.Equal(t, A, jsd.Classify(newName(t, "Moscow", "ru")))
	assert.Equal(t, X, jsd.Classify(newName(t, "1999", "ru")))
	assert.InDelta(t, 0.0, jsd.Distance(prototype), 1e-12)

	kl, err := NewDistanceTagger(map[string]float64{"CYRILLIC": 1}, 0.5, KullbackLeibler)
	require.NoError(t, err)
	assert.True(t, math.IsInf(kl.Distance(map[string]float64{"BASIC_LATIN": 1}), 1))
	assert.Equal(t, A, kl.Classify(newName(t, "Moscow", "ru")))

	_, err = NewDistanceTagger(prototype, 0.1, "cosine")
	assert.Error(t, err)
}

func TestKanaTagger(t *testing.T) {
	k := KanaTagger{}
	testCases := []struct {
		text, lang string
		expected   models.Label
	}{
		{"ジョー・バイデン", "ja", N},
		{"東京", "ja", A},
		{"東京", "zh", N},
		{"東京カ", "zh-hant", A},
		{"東京", "wuu", N},
		{"Tokyo", "en", X},
		{"ジョー", "jam", X},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, k.Classify(newName(t, tc.text, tc.lang)), "%s/%s", tc.text, tc.lang)
	}
}

func TestCJKTagger(t *testing.T) {
	c := CJKTagger{}
	assert.Equal(t, N, c.Classify(newName(t, "東京", "lzh")))
	assert.Equal(t, A, c.Classify(newName(t, "トーキョー", "ja")))
	assert.Equal(t, A, c.Classify(newName(t, "Tokyo", "zh-cn")))
	assert.Equal(t, X, c.Classify(newName(t, "東京", "ko")))
}

func TestCJKFamily(t *testing.T) {
	for _, lang := range []string{"ja", "zh", "zh-hans", "lzh", "wuu"} {
		assert.True(t, CJKFamily.MatchString(lang), lang)
	}
	for _, lang := range []string{"jam", "zha", "ko", "", "wuuu"} {
		assert.False(t, CJKFamily.MatchString(lang), lang)
	}
}

func TestAllowedBlocksTagger(t *testing.T) {
	a := NewAllowedBlocksTagger(map[string][]string{"sr": {"CYRILLIC", "BASIC_LATIN"}})

	assert.True(t, a.Covers("sr"))
	assert.Equal(t, N, a.Classify(newName(t, "Београд", "sr")))
	assert.Equal(t, N, a.Classify(newName(t, "Beograd", "sr")))
	assert.Equal(t, A, a.Classify(newName(t, "Βελιγράδι", "sr")))
	assert.Equal(t, X, a.Classify(newName(t, "Βελιγράδι", "el")))
}

func TestAggregators_TwoAgainstOne(t *testing.T) {
	vm, err := VoteMatrixFromLabels([][]models.Label{{A, A, N}})
	require.NoError(t, err)

	assert.Equal(t, []models.Label{N}, All().Aggregate(vm))
	assert.Equal(t, []models.Label{A}, Any().Aggregate(vm))
	assert.Equal(t, []models.Label{A}, MajorityVote().Aggregate(vm))
}

func TestAggregators_Abstentions(t *testing.T) {
	vm, err := VoteMatrixFromLabels([][]models.Label{
		{X, X, X},
		{A, X, X},
		{A, N, X},
		{X, N, N},
	})
	require.NoError(t, err)

	testCases := []struct {
		agg      Aggregator
		expected []models.Label
	}{
		{All(), []models.Label{X, A, N, N}},
		{Any(), []models.Label{X, A, A, N}},
		{MajorityVote(), []models.Label{X, A, N, N}},
	}
	for _, tc := range testCases {
		t.Run(tc.agg.Name(), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.agg.Aggregate(vm))
		})
	}
}

func TestLabelModel_EqualAccuraciesMatchMajority(t *testing.T) {
	vm, err := VoteMatrixFromLabels([][]models.Label{
		{A, A, N},
		{N, N, A},
		{A, A, A},
		{N, N, N},
		{X, X, X},
	})
	require.NoError(t, err)

	lm := NewLabelModel(LabelModelConfig{})
	got := lm.Aggregate(vm)
	assert.Equal(t, []models.Label{A, N, A, N, X}, got)
	assert.Equal(t, MajorityVote().Aggregate(vm), got)
}

func TestLabelModel_DownweightsNoisyTagger(t *testing.T) {
	// taggers 0-2 agree on every row, tagger 3 agrees on half of them
	rows := [][]models.Label{
		{A, A, A, A},
		{A, A, A, N},
		{N, N, N, N},
		{N, N, N, A},
		{A, A, A, A},
		{A, A, A, N},
		{N, N, N, N},
		{N, N, N, A},
	}
	vm, err := VoteMatrixFromLabels(rows)
	require.NoError(t, err)

	lm := NewLabelModel(DefaultLabelModelConfig())
	lm.Fit(vm)
	acc := lm.Accuracies()
	require.Len(t, acc, 4)
	assert.InDelta(t, maxAccuracy, acc[0], 1e-9)
	assert.Less(t, acc[3], acc[0])

	// a lone vote from the noisy tagger loses against one from a reliable tagger
	probe, err := VoteMatrixFromLabels([][]models.Label{{N, X, X, A}})
	require.NoError(t, err)
	score, voted := lm.LogOdds(probe, 0)
	assert.True(t, voted)
	assert.Less(t, score, 0.0)

	got := lm.Aggregate(vm)
	for i, row := range rows {
		assert.Equal(t, row[0], got[i], "row %d", i)
	}
}

func TestLabelModel_TooFewTaggers(t *testing.T) {
	vm, err := VoteMatrixFromLabels([][]models.Label{{A, N}, {A, A}})
	require.NoError(t, err)

	lm := NewLabelModel(DefaultLabelModelConfig())
	assert.Equal(t, []models.Label{N, A}, lm.Aggregate(vm))
	assert.Equal(t, []float64{0.5, 0.5}, lm.Accuracies())
}

func TestVoteMatrixFromLabels_Ragged(t *testing.T) {
	_, err := VoteMatrixFromLabels([][]models.Label{{A, A}, {A}})
	assert.Error(t, err)

	vm, err := VoteMatrixFromLabels(nil)
	require.NoError(t, err)
	rows, _ := vm.Dims()
	assert.Equal(t, 0, rows)
	assert.Empty(t, MajorityVote().Aggregate(vm))
	assert.Empty(t, NewLabelModel(LabelModelConfig{}).Aggregate(vm))
}

func TestNewAggregator(t *testing.T) {
	for _, m := range []string{MethodAll, MethodAny, MethodMajorityVote, MethodLabelModel, MethodBaseline} {
		agg, err := NewAggregator(m, DefaultLabelModelConfig())
		require.NoError(t, err, m)
		assert.NotNil(t, agg)
	}
	_, err := NewAggregator("unanimous", DefaultLabelModelConfig())
	assert.Error(t, err)
}

func TestEnsemble_Tag(t *testing.T) {
	names := []*models.TransliteratedName{
		newName(t, "Москва", "ru"),
		newName(t, "Moscow", "ru"),
		newName(t, "123", "ru"),
	}
	taggers, err := DefaultTaggers("CYRILLIC", map[string]float64{"CYRILLIC": 1}, 0.1, JensenShannon)
	require.NoError(t, err)

	e := NewEnsemble(MajorityVote(), taggers...)
	labels := e.Tag(names)

	// the name without letters is still voted on by the block taggers
	assert.Equal(t, []models.Label{N, A, A}, labels)
	for i, n := range names {
		assert.Equal(t, labels[i], n.Anomalous)
		assert.Equal(t, models.StateTagged, n.State)
	}

	vm := e.Votes(names)
	rows, cols := vm.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, X, vm.Vote(0, 3), "kana tagger abstains for Russian")
}
