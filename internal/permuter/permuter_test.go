package permuter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/external"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapRomanizer romanizes through a fixed table and echoes unknown strings
type mapRomanizer struct {
	table map[string]string
	calls int
}

func (m *mapRomanizer) Romanize(_ context.Context, texts []string) ([]string, error) {
	m.calls++
	out := make([]string, len(texts))
	for i, t := range texts {
		if r, ok := m.table[t]; ok {
			out[i] = r
		} else {
			out[i] = t
		}
	}
	return out, nil
}

type brokenRomanizer struct{ n int }

func (b brokenRomanizer) Romanize(_ context.Context, texts []string) ([]string, error) {
	if b.n < 0 {
		return nil, external.ErrToolUnavailable
	}
	return make([]string, b.n), nil
}

func TestSwapFirstComma(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"Biden, Joe", "Joe Biden"},
		{"Joe Biden", "Joe Biden"},
		{"Smith, John, Jr.", "John, Jr. Smith"},
		{"Paris,", "Paris"},
		{",Paris", "Paris"},
		{"Smith,John,", "John, Smith"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, SwapFirstComma(tc.input))
		})
	}
}

func TestStripParenthesis(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"Georgia (country)", "Georgia"},
		{"Mercury (planet) (astronomy)", "Mercury"},
		{"(the) Hague", "Hague"},
		{"No parens", "No parens"},
		{"Half) open (", "Half) open"},
		{"Paris (France), ", "Paris"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			once := StripParenthesis(tc.input)
			assert.Equal(t, tc.expected, once)
			assert.Equal(t, once, StripParenthesis(once), "must be idempotent")
		})
	}
}

// allPermutations collects every ordering nextPermutation visits
func allPermutations(n int) [][]int {
	perm := identity(n)
	out := [][]int{append([]int(nil), perm...)}
	for nextPermutation(perm) {
		out = append(out, append([]int(nil), perm...))
	}
	return out
}

func TestNextPermutation(t *testing.T) {
	assert.Equal(t, [][]int{{}}, allPermutations(0))
	assert.Equal(t, [][]int{{0, 1}, {1, 0}}, allPermutations(2))
	assert.Equal(t, [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}, allPermutations(3))
	assert.Len(t, allPermutations(4), 24)
}

func TestEditDistancePermuter_PicksClosestOrdering(t *testing.T) {
	rom := &mapRomanizer{}
	p := NewEditDistancePermuter(rom)

	out, err := p.Permute(context.Background(), []string{"Tanaka Yuki"}, []string{"Yuki Tanaka"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yuki Tanaka"}, out)
}

func TestEditDistancePermuter_UsesRomanizedTokens(t *testing.T) {
	rom := &mapRomanizer{table: map[string]string{"田中 裕子": "Tanaka Yuko"}}
	p := NewEditDistancePermuter(rom)

	out, err := p.Permute(context.Background(), []string{"田中 裕子"}, []string{"Yuko Tanaka"})
	require.NoError(t, err)
	assert.Equal(t, []string{"裕子 田中"}, out)
	assert.Equal(t, 1, rom.calls)
}

func TestEditDistancePermuter_TieKeepsFirstOrdering(t *testing.T) {
	p := NewEditDistancePermuter(&mapRomanizer{})

	// both orderings are equally far from an unrelated reference
	out, err := p.Permute(context.Background(), []string{"ab cd"}, []string{"zzzzz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ab cd"}, out)
}

func TestEditDistancePermuter_OutOfRangeUnchanged(t *testing.T) {
	p := NewEditDistancePermuter(&mapRomanizer{})

	names := []*models.TransliteratedName{
		models.NewTransliteratedName("Madonna", "en", nil),
		models.NewTransliteratedName("a b c d e", "en", nil),
		models.NewTransliteratedName("", "en", nil),
	}
	names[0].EnglishText = "Madonna"
	names[1].EnglishText = "e d c b a"

	out, err := Apply(context.Background(), p, names)
	require.NoError(t, err)
	for i, n := range out {
		assert.Equal(t, names[i].Text, n.Text)
		assert.True(t, n.IsUnchanged)
	}
}

func TestEditDistancePermuter_TruncatesToShorterTokenList(t *testing.T) {
	// romanization has one token, so only the identity ordering is compared
	rom := &mapRomanizer{table: map[string]string{"B A": "X"}}
	p := NewEditDistancePermuter(rom)

	out, err := p.Permute(context.Background(), []string{"B A"}, []string{"A B"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B A"}, out)
}

func TestEditDistancePermuter_LongRomanization(t *testing.T) {
	// one romanized token per character, far more tokens than the name has
	romTokens := make([]string, 14)
	for i := range romTokens {
		romTokens[i] = fmt.Sprintf("t%d", i)
	}
	rom := &mapRomanizer{table: map[string]string{"A B C D": strings.Join(romTokens, " ")}}

	// the 24th ordering of 14 tokens reverses the last four
	reference := strings.Join(romTokens[:10], " ") + " t13 t12 t11 t10"

	lev, err := DistanceByName(MetricLevenshtein)
	require.NoError(t, err)
	calls := 0
	p := NewEditDistancePermuter(rom, WithDistance(func(a, b string) float64 {
		calls++
		return lev(a, b)
	}))

	out, err := p.Permute(context.Background(), []string{"A B C D"}, []string{reference})
	require.NoError(t, err)
	assert.Equal(t, []string{"D C B A"}, out)
	assert.Equal(t, 24, calls)
}

func TestEditDistancePermuter_RomanizerErrors(t *testing.T) {
	_, err := NewEditDistancePermuter(brokenRomanizer{n: -1}).Permute(context.Background(), []string{"a b"}, []string{"b a"})
	assert.True(t, errors.Is(err, external.ErrToolUnavailable))

	_, err = NewEditDistancePermuter(brokenRomanizer{n: 3}).Permute(context.Background(), []string{"a b"}, []string{"b a"})
	assert.ErrorIs(t, err, external.ErrCountMismatch)
}

func TestDistanceByName(t *testing.T) {
	for _, name := range []string{"", MetricLevenshtein, MetricJaroWinkler, MetricWagnerFischer} {
		d, err := DistanceByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, 0.0, d("Tanaka", "Tanaka"), name)
		assert.Greater(t, d("Tanaka", "Yuki"), 0.0, name)
	}
	_, err := DistanceByName("cosine")
	assert.Error(t, err)
}

func TestApply_ImmutableAndInPlaceAgree(t *testing.T) {
	chain, err := New(TypeRemoveParenthesisEditDistance, &mapRomanizer{}, "")
	require.NoError(t, err)

	build := func() []*models.TransliteratedName {
		a := models.NewTransliteratedName("Tanaka Yuki (actress)", "ja", nil)
		a.EnglishText = "Yuki Tanaka"
		b := models.NewTransliteratedName("Kyoto", "ja", nil)
		b.EnglishText = "Kyoto"
		return []*models.TransliteratedName{a, b}
	}

	originals := build()
	copies, err := Apply(context.Background(), chain, originals)
	require.NoError(t, err)

	inPlace := build()
	require.NoError(t, ApplyInPlace(context.Background(), chain, inPlace))

	assert.Equal(t, "Tanaka Yuki (actress)", originals[0].Text)
	for i := range copies {
		assert.Equal(t, copies[i].Text, inPlace[i].Text)
		assert.Equal(t, copies[i].IsUnchanged, inPlace[i].IsUnchanged)
	}
	assert.Equal(t, "Yuki Tanaka", copies[0].Text)
	assert.Equal(t, "Tanaka Yuki (actress)", copies[0].OriginalText)
	assert.False(t, copies[0].IsUnchanged)
	assert.True(t, copies[1].IsUnchanged)
}

func TestChain_OrderMatters(t *testing.T) {
	input := []string{"(Q, R) Doe X"}

	stripFirst, err := NewChain(ParenthesisStripper(), CommaSwapper()).Permute(context.Background(), input, nil)
	require.NoError(t, err)
	swapFirst, err := NewChain(CommaSwapper(), ParenthesisStripper()).Permute(context.Background(), input, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Doe X"}, stripFirst)
	assert.Equal(t, []string{"R) Doe X (Q"}, swapFirst)
	assert.Equal(t, "remove_parenthesis+permute_first_comma", NewChain(ParenthesisStripper(), CommaSwapper()).Name())
}

func TestNew(t *testing.T) {
	for _, typ := range []string{TypeComma, TypeRemoveParenthesis, TypeRemoveParenthesisPermuteComma} {
		p, err := New(typ, nil, "")
		require.NoError(t, err, typ)
		assert.NotNil(t, p)
	}
	_, err := New(TypeEditDistance, nil, "")
	assert.Error(t, err)
	_, err = New("shuffle", nil, "")
	assert.Error(t, err)
}
