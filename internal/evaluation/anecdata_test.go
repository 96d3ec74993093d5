package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(ids ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestScore(t *testing.T) {
	a := &Anecdata{Language: "ru", ShouldRemove: set("Q1", "Q2"), ShouldKeep: set("Q3", "Q4", "Q5")}
	c := Score(a, set("Q1", "Q3", "Q9"))

	assert.Equal(t, Confusion{
		CorrectlyRemoved:   1,
		IncorrectlyRemoved: 1,
		Unknown:            1,
		ShouldRemove:       2,
		ShouldNotRemove:    3,
	}, c)
	assert.InDelta(t, 0.5, c.Precision(), 1e-12)
	assert.InDelta(t, 0.5, c.Recall(), 1e-12)
	assert.InDelta(t, 0.5, c.F1(), 1e-12)
}

func TestScore_NothingRemoved(t *testing.T) {
	c := Score(&Anecdata{ShouldRemove: set("Q1")}, nil)
	assert.Equal(t, 0, c.CorrectlyRemoved)
	assert.Equal(t, 0.0, c.Precision())
	assert.Equal(t, 0.0, c.Recall())
	assert.Equal(t, 0.0, c.F1())
}

func TestScoreAll(t *testing.T) {
	anecdata := map[string]*Anecdata{
		"ru": {ShouldRemove: set("Q1"), ShouldKeep: set("Q2")},
		"ja": {ShouldRemove: set("Q7"), ShouldKeep: set()},
	}
	removed := RemovedIDs([][2]string{{"ru", "Q1"}, {"ru", "Q2"}, {"de", "Q7"}})

	got := ScoreAll(anecdata, removed)
	assert.Equal(t, 1, got["ru"].CorrectlyRemoved)
	assert.Equal(t, 1, got["ru"].IncorrectlyRemoved)
	assert.Equal(t, 0, got["ja"].CorrectlyRemoved)
	assert.Equal(t, Confusion{CorrectlyRemoved: 1, IncorrectlyRemoved: 1, ShouldRemove: 2, ShouldNotRemove: 1}, got[GlobalKey])
}

func TestReadAnecdata_RemoveColumn(t *testing.T) {
	data := "wikidata_id\talias\tremove\nQ1\tx\ttrue\nQ2\ty\tfalse\n\t\ttrue\n"
	a, err := ReadAnecdata(strings.NewReader(data), "ru", "wikidata_id")
	require.NoError(t, err)
	assert.Equal(t, set("Q1"), a.ShouldRemove)
	assert.Equal(t, set("Q2"), a.ShouldKeep)

	_, err = ReadAnecdata(strings.NewReader("wikidata_id\tremove\nQ1\tmaybe\n"), "ru", "wikidata_id")
	assert.Error(t, err)
}

func TestReadAnecdata_Blocks(t *testing.T) {
	var b strings.Builder
	b.WriteString("wikidata_id\n")
	for i := 0; i < 2*ChunkSize+3; i++ {
		fmt.Fprintf(&b, "Q%d\n", i)
	}
	a, err := ReadAnecdata(strings.NewReader(b.String()), "ru", "wikidata_id")
	require.NoError(t, err)
	assert.Len(t, a.ShouldKeep, ChunkSize)
	assert.Len(t, a.ShouldRemove, ChunkSize)
	assert.Contains(t, a.ShouldKeep, "Q0")
	assert.Contains(t, a.ShouldRemove, fmt.Sprintf("Q%d", ChunkSize))
	assert.NotContains(t, a.ShouldRemove, fmt.Sprintf("Q%d", 2*ChunkSize))
}

func TestReadAnecdata_MissingIDColumn(t *testing.T) {
	_, err := ReadAnecdata(strings.NewReader("id\nQ1\n"), "ru", "wikidata_id")
	assert.Error(t, err)
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anecdata_ru.tsv"), []byte("wikidata_id\tremove\nQ1\t1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anecdata_ja.tsv"), []byte("wikidata_id\tremove\nQ2\t0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.tsv"), []byte("x\n"), 0o644))

	got, err := LoadFolder(dir, "wikidata_id")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ru", got["ru"].Language)
	assert.Contains(t, got["ru"].ShouldRemove, "Q1")
	assert.Contains(t, got["ja"].ShouldKeep, "Q2")
}
