package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/paranames/app/config"
	"github.com/paranames/app/models"
	"github.com/paranames/helpers/utils"
	"github.com/paranames/internal/corpus"
	"github.com/paranames/internal/entity"
	"github.com/paranames/internal/external"
	"github.com/paranames/internal/input"
	"github.com/paranames/internal/normalizer"
	"github.com/paranames/internal/output"
	"github.com/paranames/internal/permuter"
	"github.com/paranames/internal/script"
	"github.com/paranames/internal/search"
	"github.com/paranames/internal/tagger"
)

// Job states
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// PipelineDeps are the collaborators of a run. Everything is optional
// except what the configured mode needs.
type PipelineDeps struct {
	Romanizer external.Romanizer
	Aligner   external.Aligner
	Baseline  *tagger.AllowedBlocksTagger
	KeepList  *entity.KeepList
	Cleaner   *normalizer.Cleaner
	Store     *MongoNameStore
	Review    *search.ReviewIndex
	Namer     output.LanguageNamer
}

// JobStatus is the progress of one corpus of a run
type JobStatus struct {
	Language    string
	Status      string
	Names       int
	Kept        int
	Filtered    int
	NoiseTotal  int
	NoiseCaught int
	Files       []string
	Message     string
	UpdatedAt   time.Time
}

// RunReport is the outcome of a run
type RunReport struct {
	RunID    string
	Jobs     []JobStatus
	Stats    map[string]*models.CorpusStatistics
	KeptRows []models.NameRow
	Removed  [][2]string // language, entity id of every filtered name
}

type corpusResult struct {
	kept     []*models.TransliteratedName
	filtered []*models.TransliteratedName
	stats    map[string]*models.CorpusStatistics
}

// PipelineService runs the filters, normalization and tagging stages over
// input rows, one worker per language
type PipelineService struct {
	cfg    *config.PipelineCfg
	deps   PipelineDeps
	runID  string
	logger *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*JobStatus
}

// NewPipelineService checks that deps cover the configured mode
func NewPipelineService(cfg *config.PipelineCfg, deps PipelineDeps, logger *zap.Logger) (*PipelineService, error) {
	if cfg.NeedsNames() && cfg.Names.Align && deps.Aligner == nil {
		return nil, errors.New("alignment requested without an aligner")
	}
	if cfg.NeedsScript() && cfg.Script.Aggregation == tagger.MethodBaseline && deps.Baseline == nil {
		return nil, errors.New("baseline aggregation needs the allowed blocks tagger")
	}
	if cfg.Output.SaveResults && deps.Store == nil {
		return nil, errors.New("save_results needs a document store")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	cfg.Workers = workers

	return &PipelineService{
		cfg:    cfg,
		deps:   deps,
		runID:  utils.NewRunID(),
		logger: logger,
		jobs:   make(map[string]*JobStatus),
	}, nil
}

// RunID identifies the documents this service writes
func (ps *PipelineService) RunID() string { return ps.runID }

// Prepare applies the row filters in order: entity prefix, type
// disambiguation, keep list, cleaning.
func (ps *PipelineService) Prepare(rows []models.NameRow) []models.NameRow {
	rows = entity.FilterPrefix(rows, ps.cfg.Filters.EntityPrefix, ps.logger)
	if ps.cfg.Filters.Disambiguate {
		rows = entity.Disambiguate(rows, ps.logger)
	}
	if ps.deps.KeepList != nil {
		rows = ps.deps.KeepList.Filter(rows, ps.logger)
	}
	if ps.deps.Cleaner != nil {
		rows = ps.deps.Cleaner.CleanRows(rows)
	}
	return rows
}

// Run processes rows and writes every configured output
func (ps *PipelineService) Run(ctx context.Context, rows []models.NameRow) (*RunReport, error) {
	started := time.Now()
	rows = ps.Prepare(rows)

	byLanguage := make(map[string][]models.NameRow)
	for _, r := range rows {
		byLanguage[r.Language] = append(byLanguage[r.Language], r)
	}

	var keys []string
	groups := byLanguage
	if ps.cfg.Script.Pooled {
		keys = []string{corpus.PooledLanguage}
		groups = map[string][]models.NameRow{corpus.PooledLanguage: rows}
	} else {
		for lang := range byLanguage {
			keys = append(keys, lang)
		}
		sort.Strings(keys)
	}
	for _, key := range keys {
		ps.setStatus(key, func(j *JobStatus) { j.Status = StatusPending })
	}

	noise := ps.sampleNoise(byLanguage)

	ps.logger.Info("Starting run",
		zap.String("run_id", ps.runID),
		zap.String("mode", ps.cfg.Mode),
		zap.Int("rows", len(rows)),
		zap.Int("corpora", len(keys)),
		zap.Int("workers", ps.cfg.Workers))

	results := make([]*corpusResult, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ps.cfg.Workers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			res, err := ps.processCorpus(gctx, key, groups[key], noise[key])
			if err != nil {
				ps.setStatus(key, func(j *JobStatus) {
					j.Status = StatusFailed
					j.Message = err.Error()
				})
				return fmt.Errorf("corpus %s: %w", key, err)
			}
			results[i] = res
			ps.logFinished(key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &RunReport{RunID: ps.runID, Stats: make(map[string]*models.CorpusStatistics)}
	for _, res := range results {
		for lang, s := range res.stats {
			report.Stats[lang] = s
		}
		for _, n := range res.kept {
			report.KeptRows = append(report.KeptRows, n.ToRow())
		}
		for _, n := range res.filtered {
			report.Removed = append(report.Removed, [2]string{n.Language, n.EntityID})
		}
	}
	report.Jobs = ps.Status()

	if err := ps.writeRunOutputs(report); err != nil {
		return nil, err
	}

	ps.logger.Info("Run completed",
		zap.String("run_id", ps.runID),
		zap.Int("kept", len(report.KeptRows)),
		zap.Int("removed", len(report.Removed)),
		zap.Duration("elapsed", time.Since(started)))
	return report, nil
}

func (ps *PipelineService) sampleNoise(byLanguage map[string][]models.NameRow) map[string][]string {
	n := ps.cfg.Script.NoiseSamples
	if !ps.cfg.NeedsScript() || n <= 0 {
		return nil
	}
	if ps.cfg.Script.Pooled {
		ps.logger.Warn("Noise samples are not drawn for a pooled corpus")
		return nil
	}
	texts := make(map[string][]string, len(byLanguage))
	for lang, rows := range byLanguage {
		for _, r := range rows {
			texts[lang] = append(texts[lang], r.Alias)
		}
	}
	return NewNoiseSampler(n, ps.cfg.Script.NoiseSeed, ps.logger).Sample(texts)
}

func (ps *PipelineService) processCorpus(ctx context.Context, key string, rows []models.NameRow, noise []string) (*corpusResult, error) {
	analyzer, err := script.NewAnalyzer(ps.cfg.Script.Analyzer)
	if err != nil {
		return nil, err
	}
	c := corpus.FromRows(key, rows, analyzer, ps.logger)
	ps.setStatus(key, func(j *JobStatus) {
		j.Status = StatusRunning
		j.Names = c.Len()
	})

	res := &corpusResult{}
	if ps.cfg.NeedsNames() {
		if err := ps.normalize(ctx, c); err != nil {
			return nil, err
		}
		files, err := ps.write(key, map[string][]*models.TransliteratedName{
			output.CategoryAllNames: c.Names(),
		}, output.PermutationAudit)
		if err != nil {
			return nil, err
		}
		ps.setStatus(key, func(j *JobStatus) { j.Files = append(j.Files, files...) })
	}
	// noise samples are added later and must not count
	_, res.stats = c.ComputeStats()

	if !ps.cfg.NeedsScript() {
		res.kept = c.Names()
		ps.setStatus(key, func(j *JobStatus) {
			j.Status = StatusDone
			j.Kept = len(res.kept)
		})
		return res, ps.saveResults(ctx, res.kept)
	}

	if len(noise) > 0 {
		c.AddWords(NoiseNames(noise, key, analyzer)...)
	}
	if err := ps.tag(c); err != nil {
		return nil, err
	}

	kept, filtered := c.SplitNames(ps.cfg.Output.WriteNoise)
	files, err := ps.write(key, output.AnomalySplits(kept, filtered), output.AnomalyReview)
	if err != nil {
		return nil, err
	}
	res.kept, res.filtered = withoutNoise(kept), withoutNoise(filtered)

	noiseTotal, noiseCaught := ps.logNoise(key, c.Names())
	ps.pushReview(ctx, key, res.filtered)
	if err := ps.saveResults(ctx, append(append([]*models.TransliteratedName{}, res.kept...), res.filtered...)); err != nil {
		return nil, err
	}

	ps.setStatus(key, func(j *JobStatus) {
		j.Status = StatusDone
		j.Kept = len(res.kept)
		j.Filtered = len(res.filtered)
		j.NoiseTotal = noiseTotal
		j.NoiseCaught = noiseCaught
		j.Files = append(j.Files, files...)
	})
	return res, nil
}

func (ps *PipelineService) normalize(ctx context.Context, c *corpus.Corpus) error {
	p, err := permuter.New(ps.cfg.Names.Permuter, ps.deps.Romanizer, ps.cfg.Names.Distance)
	if err != nil {
		return err
	}
	if err := c.ApplyPermuter(ctx, p, ps.cfg.Names.InPlace); err != nil {
		return err
	}
	if dropped := c.DropBlank(); dropped > 0 {
		ps.logger.Info("Dropped blank names",
			zap.String("language", c.Language()),
			zap.Int("dropped", dropped))
	}
	if ps.cfg.Names.Align {
		return c.ComputeAlignments(ctx, ps.deps.Aligner)
	}
	return nil
}

// tag fits one ensemble per language slice. A pooled corpus shares its names
// with the slices, so labels land on the pooled names too.
func (ps *PipelineService) tag(c *corpus.Corpus) error {
	slices := []*corpus.Corpus{c}
	if c.IsPooled() {
		slices = c.SliceByLanguage()
	}
	for _, slice := range slices {
		ensemble, err := ps.ensemble(slice)
		if err != nil {
			return err
		}
		slice.Tag(ensemble)
	}
	return nil
}

func (ps *PipelineService) ensemble(c *corpus.Corpus) (*tagger.Ensemble, error) {
	method := ps.cfg.Script.Aggregation
	if method == tagger.MethodBaseline {
		return tagger.NewEnsemble(tagger.Any(), ps.deps.Baseline), nil
	}
	aggregator, err := tagger.NewAggregator(method, ps.cfg.Script.LabelModel)
	if err != nil {
		return nil, err
	}
	return c.Ensemble(aggregator, ps.cfg.Script.CriticalValue, ps.cfg.Script.DistanceMeasure)
}

func (ps *PipelineService) write(key string, splits map[string][]*models.TransliteratedName, mode output.Mode) ([]string, error) {
	if ps.cfg.Output.Folder == "" {
		return nil, nil
	}
	return output.NewNameWriter(filepath.Join(ps.cfg.Output.Folder, key)).Write(splits, mode)
}

// logNoise reports how many noise samples were tagged anomalous
func (ps *PipelineService) logNoise(key string, names []*models.TransliteratedName) (total, caught int) {
	var missed []string
	for _, n := range names {
		if !n.NoiseSample {
			continue
		}
		total++
		if n.Anomalous == models.Anomalous {
			caught++
		} else {
			missed = append(missed, n.Text)
		}
	}
	if total == 0 {
		return 0, 0
	}
	ps.logger.Info("Noise samples",
		zap.String("language", key),
		zap.Int("total", total),
		zap.Int("caught", caught))
	if len(missed) > 0 {
		ps.logger.Debug("Missed noise samples",
			zap.String("language", key),
			zap.Strings("texts", missed))
	}
	return total, caught
}

func (ps *PipelineService) pushReview(ctx context.Context, key string, filtered []*models.TransliteratedName) {
	if ps.deps.Review == nil || len(filtered) == 0 {
		return
	}
	sent, err := ps.deps.Review.Push(ctx, ps.runID, filtered)
	if err != nil {
		ps.logger.Warn("Failed to push names for review",
			zap.String("language", key),
			zap.Int("sent", sent),
			zap.Error(err))
		return
	}
	ps.logger.Debug("Pushed names for review", zap.String("language", key), zap.Int("sent", sent))
}

func (ps *PipelineService) saveResults(ctx context.Context, names []*models.TransliteratedName) error {
	if ps.deps.Store == nil || !ps.cfg.Output.SaveResults || len(names) == 0 {
		return nil
	}
	now := time.Now().UTC()
	results := make([]models.NameResult, len(names))
	for i, n := range names {
		results[i] = NewNameResult(n, ps.runID, now)
	}
	_, err := ps.deps.Store.SaveResults(ctx, results)
	return err
}

func (ps *PipelineService) writeRunOutputs(report *RunReport) error {
	if path := ps.cfg.Output.Stats; path != "" {
		if err := output.WriteStatsFile(path, report.Stats, ps.deps.Namer); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
		ps.logger.Info("Wrote corpus statistics", zap.String("path", path))
	}
	if path := ps.cfg.Output.KeptRows; path != "" {
		format := ps.cfg.Input.Format
		if format == "" {
			format = input.FormatFromPath(path)
		}
		if err := output.WriteRowsFile(path, report.KeptRows, format); err != nil {
			return fmt.Errorf("write kept rows: %w", err)
		}
		ps.logger.Info("Wrote kept rows",
			zap.String("path", path),
			zap.Int("rows", len(report.KeptRows)))
	}
	return nil
}

func (ps *PipelineService) logFinished(key string) {
	job, ok := ps.GetJobStatus(key)
	if !ok {
		return
	}
	ps.logger.Info("Corpus finished",
		zap.String("run", utils.ShortID(ps.runID)),
		zap.String("corpus", key),
		zap.Int("names", job.Names),
		zap.Int("kept", job.Kept),
		zap.Int("filtered", job.Filtered),
		zap.Int("files", len(job.Files)))
}

func (ps *PipelineService) setStatus(key string, update func(*JobStatus)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	job, ok := ps.jobs[key]
	if !ok {
		job = &JobStatus{Language: key}
		ps.jobs[key] = job
	}
	update(job)
	job.UpdatedAt = time.Now()
}

// GetJobStatus returns a copy of the progress of one corpus
func (ps *PipelineService) GetJobStatus(key string) (JobStatus, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	job, ok := ps.jobs[key]
	if !ok {
		return JobStatus{}, false
	}
	return *job, true
}

// Status returns the progress of every corpus, sorted by key
func (ps *PipelineService) Status() []JobStatus {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]JobStatus, 0, len(ps.jobs))
	for _, job := range ps.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out
}

func withoutNoise(names []*models.TransliteratedName) []*models.TransliteratedName {
	out := make([]*models.TransliteratedName, 0, len(names))
	for _, n := range names {
		if !n.NoiseSample {
			out = append(out, n)
		}
	}
	return out
}
