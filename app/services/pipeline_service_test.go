package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paranames/app/config"
	"github.com/paranames/app/models"
	"github.com/paranames/internal/entity"
	"github.com/paranames/internal/external"
	"github.com/paranames/internal/permuter"
	"github.com/paranames/internal/script"
	"github.com/paranames/internal/tagger"
)

// shortAligner returns one alignment too few
type shortAligner struct{}

func (shortAligner) Align(_ context.Context, names []*models.TransliteratedName) ([]*models.Alignment, error) {
	return make([]*models.Alignment, len(names)-1), nil
}

func pipelineRows() []models.NameRow {
	return []models.NameRow{
		{WikidataID: "Q1", Alias: "Путин, Владимир", English: "Vladimir Putin", Language: "ru"},
		{WikidataID: "Q2", Alias: "Москва", English: "Moscow", Language: "ru"},
		{WikidataID: "Q3", Alias: "Moscow", English: "Moscow", Language: "ru"},
		{WikidataID: "Q4", Alias: "Санкт-Петербург", English: "Saint Petersburg", Language: "ru"},
		{WikidataID: "Q5", Alias: "Київ", English: "Kyiv", Language: "uk"},
		{WikidataID: "Q6", Alias: "Львів", English: "Lviv", Language: "uk"},
		{WikidataID: "Q2", Alias: "Москва", English: "Moscow", Language: "ru"},
		{WikidataID: "P31", Alias: "это частный случай понятия", English: "instance of", Language: "ru"},
	}
}

func testConfig(t *testing.T, mode string) *config.PipelineCfg {
	t.Helper()
	dir := t.TempDir()
	return &config.PipelineCfg{
		Mode:    mode,
		Workers: 2,
		Output: config.OutputCfg{
			Folder:   filepath.Join(dir, "out"),
			KeptRows: filepath.Join(dir, "kept.tsv"),
			Stats:    filepath.Join(dir, "stats.tsv"),
		},
		Filters: config.FiltersCfg{EntityPrefix: "Q", Disambiguate: true},
		Names: config.NamesCfg{
			Permuter: permuter.TypeRemoveParenthesisPermuteComma,
			Distance: "levenshtein",
		},
		Script: config.ScriptCfg{
			Aggregation:     tagger.MethodMajorityVote,
			CriticalValue:   0.1,
			DistanceMeasure: tagger.JensenShannon,
			NoiseSeed:       1,
			Analyzer:        script.DefaultOptions(),
			LabelModel:      tagger.DefaultLabelModelConfig(),
		},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestPipeline_RunAll(t *testing.T) {
	cfg := testConfig(t, config.ModeAll)
	ps, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
	require.NoError(t, err)

	report, err := ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)

	assert.Equal(t, ps.RunID(), report.RunID)
	assert.Equal(t, [][2]string{{"ru", "Q3"}}, report.Removed)
	require.Len(t, report.KeptRows, 5)
	assert.Equal(t, "Владимир Путин", report.KeptRows[0].Alias)

	require.Len(t, report.Jobs, 2)
	assert.Equal(t, "ru", report.Jobs[0].Language)
	assert.Equal(t, StatusDone, report.Jobs[0].Status)
	assert.Equal(t, 4, report.Jobs[0].Names)
	assert.Equal(t, 3, report.Jobs[0].Kept)
	assert.Equal(t, 1, report.Jobs[0].Filtered)
	assert.Len(t, report.Jobs[0].Files, 3)

	for _, name := range []string{"all_names.tsv", "anomalous.txt", "non_anomalous.txt"} {
		assert.FileExists(t, filepath.Join(cfg.Output.Folder, "ru", name))
	}
	anomalous := readLines(t, filepath.Join(cfg.Output.Folder, "ru", "anomalous.txt"))
	require.Len(t, anomalous, 2)
	assert.Contains(t, anomalous[1], "Moscow")

	assert.Equal(t, []string{
		"language\tmean_crossings\tpermuted\tunchanged",
		"ru\t0.0000\t1\t3",
		"uk\t0.0000\t0\t2",
	}, readLines(t, cfg.Output.Stats))

	kept := readLines(t, cfg.Output.KeptRows)
	require.Len(t, kept, 6)
	assert.Equal(t, "wikidata_id\teng\talias\ttype\tlanguage", kept[0])
	assert.Equal(t, "Q1\tVladimir Putin\tВладимир Путин\t\tru", kept[1])
}

func TestPipeline_NoiseSamples(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Script.NoiseSamples = 1
	ps, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
	require.NoError(t, err)

	report, err := ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)

	// noise never reaches the kept rows or the removed ids
	assert.Len(t, report.KeptRows, 5)
	assert.Equal(t, [][2]string{{"ru", "Q3"}}, report.Removed)
	for _, job := range report.Jobs {
		assert.Equal(t, 1, job.NoiseTotal, job.Language)
	}
}

func TestPipeline_Baseline(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Script.Aggregation = tagger.MethodBaseline
	cfg.Output = config.OutputCfg{}
	baseline := tagger.NewAllowedBlocksTagger(map[string][]string{"ru": {"CYRILLIC"}})

	ps, err := NewPipelineService(cfg, PipelineDeps{Baseline: baseline}, zap.NewNop())
	require.NoError(t, err)

	report, err := ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"ru", "Q3"}}, report.Removed)
	assert.Len(t, report.KeptRows, 5)
	for _, job := range report.Jobs {
		assert.Empty(t, job.Files)
	}
}

func TestPipeline_Pooled(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Script.Pooled = true

	ps, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
	require.NoError(t, err)

	report, err := ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"ru", "Q3"}}, report.Removed)
	require.Len(t, report.Jobs, 1)
	assert.Equal(t, "all", report.Jobs[0].Language)
	assert.Contains(t, report.Stats, "ru")
	assert.Contains(t, report.Stats, "uk")
	assert.FileExists(t, filepath.Join(cfg.Output.Folder, "all", "anomalous.txt"))
}

func TestPipeline_PooledTagsEachLanguage(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Output = config.OutputCfg{}
	cfg.Script.Pooled = true

	// a pooled prototype would be mostly Cyrillic and flag the German names
	rows := []models.NameRow{
		{WikidataID: "Q1", Alias: "Москва", English: "Moscow", Language: "ru"},
		{WikidataID: "Q2", Alias: "Казань", English: "Kazan", Language: "ru"},
		{WikidataID: "Q3", Alias: "Самара", English: "Samara", Language: "ru"},
		{WikidataID: "Q4", Alias: "Berlin", English: "Berlin", Language: "de"},
		{WikidataID: "Q5", Alias: "Hamburg", English: "Hamburg", Language: "de"},
	}

	for _, method := range []string{tagger.MethodMajorityVote, tagger.MethodLabelModel} {
		t.Run(method, func(t *testing.T) {
			cfg.Script.Aggregation = method
			ps, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
			require.NoError(t, err)

			report, err := ps.Run(context.Background(), rows)
			require.NoError(t, err)
			assert.Empty(t, report.Removed)
			assert.Len(t, report.KeptRows, 5)
		})
	}
}

func TestPipeline_KeepList(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Output = config.OutputCfg{}
	keep := entity.NewKeepList([]string{"Q5"}, []string{"uk"})

	ps, err := NewPipelineService(cfg, PipelineDeps{KeepList: keep}, zap.NewNop())
	require.NoError(t, err)

	report, err := ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)
	var ukRows []string
	for _, r := range report.KeptRows {
		if r.Language == "uk" {
			ukRows = append(ukRows, r.WikidataID)
		}
	}
	assert.Equal(t, []string{"Q5"}, ukRows)
}

func TestPipeline_AlignmentCountMismatch(t *testing.T) {
	cfg := testConfig(t, config.ModeNames)
	cfg.Names.Align = true

	ps, err := NewPipelineService(cfg, PipelineDeps{Aligner: shortAligner{}}, zap.NewNop())
	require.NoError(t, err)

	_, err = ps.Run(context.Background(), pipelineRows())
	assert.ErrorIs(t, err, external.ErrCountMismatch)

	failed := 0
	for _, job := range ps.Status() {
		if job.Status == StatusFailed {
			failed++
		}
	}
	assert.Greater(t, failed, 0)
}

func TestNewPipelineService_MissingDeps(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.PipelineCfg)
	}{
		{"aligner", func(c *config.PipelineCfg) { c.Mode = config.ModeNames; c.Names.Align = true }},
		{"baseline", func(c *config.PipelineCfg) { c.Script.Aggregation = tagger.MethodBaseline }},
		{"store", func(c *config.PipelineCfg) { c.Output.SaveResults = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, config.ModeScript)
			tt.modify(cfg)
			_, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestPipeline_GetJobStatus(t *testing.T) {
	cfg := testConfig(t, config.ModeScript)
	cfg.Output = config.OutputCfg{}
	ps, err := NewPipelineService(cfg, PipelineDeps{}, zap.NewNop())
	require.NoError(t, err)

	_, ok := ps.GetJobStatus("uk")
	assert.False(t, ok)

	_, err = ps.Run(context.Background(), pipelineRows())
	require.NoError(t, err)

	job, ok := ps.GetJobStatus("uk")
	require.True(t, ok)
	assert.Equal(t, StatusDone, job.Status)
	assert.Equal(t, 2, job.Kept)
	assert.False(t, job.UpdatedAt.IsZero())
}
