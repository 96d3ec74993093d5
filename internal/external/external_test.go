package external

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/paranames/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestUromanRomanizer_MissingBinary(t *testing.T) {
	_, err := NewUromanRomanizer(UromanConfig{Command: "/nonexistent/uroman.pl"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrToolUnavailable)

	_, err = NewUromanRomanizer(UromanConfig{Command: "  "}, zap.NewNop())
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestUromanRomanizer_PreservesOrderAcrossChunks(t *testing.T) {
	r, err := NewUromanRomanizer(UromanConfig{Command: "cat", ChunkSize: 3, Workers: 4}, zap.NewNop())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 20; round++ {
		n := rng.Intn(40)
		texts := make([]string, n)
		for i := range texts {
			texts[i] = "name " + strconv.Itoa(i)
			if rng.Intn(5) == 0 {
				texts[i] = ""
			}
		}

		out, err := r.Romanize(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, out, n)
		assert.Equal(t, texts, out)
	}
}

func TestUromanRomanizer_NewlinesInInput(t *testing.T) {
	r, err := NewUromanRomanizer(UromanConfig{Command: "cat"}, zap.NewNop())
	require.NoError(t, err)

	out, err := r.Romanize(context.Background(), []string{"a\nb", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b", "c"}, out)
}

func TestUromanRomanizer_CountMismatch(t *testing.T) {
	r, err := NewUromanRomanizer(UromanConfig{Command: writeScript(t, "head -n 1")}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Romanize(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestUromanRomanizer_NonZeroExit(t *testing.T) {
	r, err := NewUromanRomanizer(UromanConfig{Command: writeScript(t, "echo boom >&2; exit 3")}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Romanize(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrToolUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

func TestUnidecodeRomanizer(t *testing.T) {
	out, err := NewUnidecodeRomanizer().Romanize(context.Background(), []string{"Москва", "", "Zürich"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Moskva", "", "Zurich"}, out)
}

func TestParseLinks(t *testing.T) {
	links, err := ParseLinks("0-0 1-2 2-1", SourceTarget, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []models.Link{{Source: 0, Target: 0}, {Source: 1, Target: 2}, {Source: 2, Target: 1}}, links)

	links, err = ParseLinks("0-1", TargetSource, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.Link{{Source: 1, Target: 0}}, links)

	links, err = ParseLinks("   ", SourceTarget, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, links)

	for _, bad := range []string{"0-", "a-1", "01", "0-5", "-1-0"} {
		_, err := ParseLinks(bad, SourceTarget, 2, 2)
		assert.ErrorIs(t, err, ErrMalformedAlignment, bad)
	}

	_, err = ParseLinkOrder("diagonal")
	assert.Error(t, err)
}

func TestTrainingLine(t *testing.T) {
	testCases := []struct {
		name     string
		text     string
		english  string
		expected string
	}{
		{"spaces", "Joe B", "a b", "J o e ▁ B ||| a ▁ b"},
		{"tabs and newlines", "a\tb\nc", "d\re", "a ▁ b ▁ c ||| d ▁ e"},
		{"no-break space", "a\u00a0b", "ab", "a ▁ b ||| a b"},
		{"delimiter inside name", "a|||b", "ab", "a | | | b ||| a b"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			line := TrainingLine(tc.text, tc.english)
			assert.Equal(t, tc.expected, line)
			assert.Equal(t, 1, strings.Count(line, " ||| "))

			src, _, _ := strings.Cut(line, " ||| ")
			assert.Len(t, strings.Fields(src), len([]rune(tc.text)))
		})
	}
}

func TestFastAligner_WhitespaceInNames(t *testing.T) {
	script := writeScript(t, `while read -r line; do echo "0-0"; done < "$2"`)
	a, err := NewFastAligner(FastAlignConfig{Command: script, TempDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	names := []*models.TransliteratedName{
		models.NewTransliteratedName("ab\ncd", "xx", nil),
		models.NewTransliteratedName("e\tf", "xx", nil),
	}
	names[0].EnglishText = "ab cd"
	names[1].EnglishText = "ef"

	alignments, err := a.Align(context.Background(), names)
	require.NoError(t, err)
	require.Len(t, alignments, 2)
	assert.NotNil(t, alignments[0])
	assert.NotNil(t, alignments[1])
}

func TestFastAligner_MissingBinary(t *testing.T) {
	_, err := NewFastAligner(FastAlignConfig{Command: "/nonexistent/fast_align"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrToolUnavailable)
}

func TestFastAligner_Align(t *testing.T) {
	// emits a crossing pair for every training line of the file after -i
	script := writeScript(t, `while read -r line; do echo "0-1 1-0"; done < "$2"`)
	dir := t.TempDir()
	a, err := NewFastAligner(FastAlignConfig{Command: script, TempDir: dir}, zap.NewNop())
	require.NoError(t, err)

	names := []*models.TransliteratedName{
		models.NewTransliteratedName("ab", "xx", nil),
		models.NewTransliteratedName("cd", "xx", nil),
		models.NewTransliteratedName("ef", "xx", nil),
	}
	names[0].EnglishText = "AB"
	names[2].EnglishText = "EF"

	alignments, err := a.Align(context.Background(), names)
	require.NoError(t, err)
	require.Len(t, alignments, 3)

	assert.Equal(t, 1, alignments[0].CrossingLinks())
	assert.Nil(t, alignments[1])
	assert.Same(t, alignments[2], names[2].Alignment())
	assert.Nil(t, names[1].Alignment())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "training file must be removed")
}

func TestFastAligner_PreserveAndMismatch(t *testing.T) {
	script := writeScript(t, `echo "0-0"`)
	dir := t.TempDir()
	a, err := NewFastAligner(FastAlignConfig{Command: script, TempDir: dir, Preserve: true}, zap.NewNop())
	require.NoError(t, err)

	names := []*models.TransliteratedName{
		models.NewTransliteratedName("ab", "xx", nil),
		models.NewTransliteratedName("cd", "xx", nil),
	}
	for _, n := range names {
		n.EnglishText = "ref"
	}

	_, err = a.Align(context.Background(), names)
	assert.ErrorIs(t, err, ErrCountMismatch)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFastAligner_RandomBatchSizes(t *testing.T) {
	script := writeScript(t, `while read -r line; do echo "0-0"; done < "$2"`)
	a, err := NewFastAligner(FastAlignConfig{Command: script, TempDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 10; round++ {
		n := rng.Intn(30)
		names := make([]*models.TransliteratedName, n)
		for i := range names {
			names[i] = models.NewTransliteratedName("n"+strconv.Itoa(i), "xx", nil)
			names[i].EnglishText = "e"
		}
		alignments, err := a.Align(context.Background(), names)
		require.NoError(t, err)
		assert.Len(t, alignments, n)
	}
}
