package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapNamer map[string]string

func (m mapNamer) Name(code string) string {
	if n, ok := m[code]; ok {
		return n
	}
	return code
}

func sampleNames() []*models.TransliteratedName {
	a := script.MustNewAnalyzer(script.DefaultOptions())
	b := models.NewTransliteratedName("Москва", "ru", a)
	b.EntityID, b.EntityType = "Q649", "LOC"
	c := models.NewTransliteratedName("Biden, Joe", "ru", a)
	c.EntityID, c.EntityType = "Q6279", "PER"
	c.SetText("Joe Biden")
	return []*models.TransliteratedName{b, c}
}

func TestWriteNames_AnomalyReview(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNames(&buf, sampleNames(), AnomalyReview))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "wikidata_id\tlanguage\ttype\talias\tmost_common_unicode_block", lines[0])
	assert.Equal(t, "Q6279\tru\tPER\tJoe Biden\tBASIC_LATIN", lines[1])
	assert.Equal(t, "Q649\tru\tLOC\tМосква\tCYRILLIC", lines[2])
}

func TestWriteNames_PermutationAudit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNames(&buf, sampleNames(), PermutationAudit))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "wikidata_id\tlanguage\ttype\talias\toriginal_text\tis_unchanged", lines[0])
	assert.Equal(t, "Q6279\tru\tPER\tJoe Biden\tBiden, Joe\tfalse", lines[1])
}

func TestNameWriter_CreatesFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ru", "nested")
	names := sampleNames()

	paths, err := NewNameWriter(dir).Write(AnomalySplits(names[:1], names[1:]), AnomalyReview)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "anomalous.txt"),
		filepath.Join(dir, "non_anomalous.txt"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Joe Biden")
}

func TestWriteStats(t *testing.T) {
	n := models.NewTransliteratedName("a b", "de", nil)
	n.AttachAlignment(models.NewAlignment([]models.Link{{Source: 0, Target: 1}, {Source: 1, Target: 0}}))
	stats := map[string]*models.CorpusStatistics{
		"de": models.NewCorpusStatistics([]*models.TransliteratedName{n}),
		"xx": models.NewCorpusStatistics(nil),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, stats, mapNamer{"de": "German"}))
	assert.Equal(t,
		"language\tmean_crossings\tpermuted\tunchanged\nGerman\t1.0000\t0\t1\nxx\t0.0000\t0\t0\n",
		buf.String())
}

func TestWriteRows(t *testing.T) {
	rows := []models.NameRow{{WikidataID: "Q1", English: "One", Alias: "Eins", Type: "LOC", Language: "de"}}

	var tsv bytes.Buffer
	require.NoError(t, WriteRows(&tsv, rows, "tsv"))
	assert.Equal(t, "wikidata_id\teng\talias\ttype\tlanguage\nQ1\tOne\tEins\tLOC\tde\n", tsv.String())

	var jsonl bytes.Buffer
	require.NoError(t, WriteRows(&jsonl, rows, "jsonl"))
	assert.JSONEq(t, `{"wikidata_id":"Q1","type":"LOC","alias":"Eins","eng":"One","language":"de"}`, jsonl.String())

	path := filepath.Join(t.TempDir(), "out", "kept.csv")
	require.NoError(t, WriteRowsFile(path, rows, "csv"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wikidata_id,eng,alias,type,language\nQ1,One,Eins,LOC,de\n", string(data))
}
