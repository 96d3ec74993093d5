// Command anecdata tags the input with several aggregation methods and
// scores the removed names against hand-labelled anecdata files
package main

import (
	"context"
	"encoding/csv"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/paranames/app/config"
	"github.com/paranames/app/models"
	"github.com/paranames/app/services"
	"github.com/paranames/internal/entity"
	"github.com/paranames/internal/evaluation"
	"github.com/paranames/internal/normalizer"
	"github.com/paranames/internal/tagger"
)

func main() {
	fs := pflag.NewFlagSet("anecdata", pflag.ExitOnError)
	config.Flags(fs)
	folder := fs.String("anecdata", "data/anecdata", "folder of anecdata_<language>.tsv files")
	idColumn := fs.String("id-column", "wikidata_id", "id column of the anecdata files")
	methods := fs.StringSlice("methods", []string{tagger.MethodMajorityVote, tagger.MethodLabelModel}, "aggregation methods to compare")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	anecdata, err := evaluation.LoadFolder(*folder, *idColumn)
	if err != nil {
		logger.Fatal("Failed to read anecdata", zap.Error(err))
	}
	if len(anecdata) == 0 {
		logger.Fatal("No anecdata files found", zap.String("folder", *folder))
	}
	languages := make([]string, 0, len(anecdata))
	for lang := range anecdata {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	cfg.Input.Languages = languages

	rows, err := services.LoadRows(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal("Failed to load input rows", zap.Error(err))
	}

	deps := services.PipelineDeps{}
	if cfg.Filters.Clean {
		if deps.Cleaner, err = normalizer.NewCleaner(logger); err != nil {
			logger.Fatal("Failed to load cleaning rules", zap.Error(err))
		}
	}
	if cfg.Filters.KeepList != "" {
		if deps.KeepList, err = entity.LoadKeepList(cfg.Filters.KeepList, cfg.Filters.KeepListLanguages); err != nil {
			logger.Fatal("Failed to load keep list", zap.Error(err))
		}
	}

	cw := csv.NewWriter(os.Stdout)
	cw.Comma = '\t'
	if err := cw.Write(header); err != nil {
		logger.Fatal("Failed to write scores", zap.Error(err))
	}
	for _, method := range *methods {
		scores, err := score(ctx, cfg, deps, method, rows, anecdata, logger)
		if err != nil {
			logger.Fatal("Failed to score method", zap.String("method", method), zap.Error(err))
		}
		if err := writeScores(cw, method, scores); err != nil {
			logger.Fatal("Failed to write scores", zap.Error(err))
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Fatal("Failed to write scores", zap.Error(err))
	}
}

// score runs anomaly tagging alone with one method, writing nothing
func score(ctx context.Context, base *config.PipelineCfg, deps services.PipelineDeps, method string, rows []models.NameRow, anecdata map[string]*evaluation.Anecdata, logger *zap.Logger) (map[string]evaluation.Confusion, error) {
	cfg := *base
	cfg.Mode = config.ModeScript
	cfg.Script.Aggregation = method
	cfg.Script.NoiseSamples = 0
	cfg.Output = config.OutputCfg{}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if method == tagger.MethodBaseline && deps.Baseline == nil {
		baseline, err := tagger.LoadAllowedBlocksTagger(cfg.Script.ScriptsFile)
		if err != nil {
			return nil, err
		}
		deps.Baseline = baseline
	}

	pipeline, err := services.NewPipelineService(&cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	report, err := pipeline.Run(ctx, rows)
	if err != nil {
		return nil, err
	}
	return evaluation.ScoreAll(anecdata, evaluation.RemovedIDs(report.Removed)), nil
}

var header = []string{
	"method", "language",
	"n_correctly_removed", "n_incorrectly_removed", "n_unknown",
	"n_should_remove", "n_should_not_remove",
	"precision", "recall", "f1",
}

// writeScores writes one row per language, the global row last
func writeScores(cw *csv.Writer, method string, scores map[string]evaluation.Confusion) error {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		if k != evaluation.GlobalKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := scores[evaluation.GlobalKey]; ok {
		keys = append(keys, evaluation.GlobalKey)
	}

	for _, k := range keys {
		c := scores[k]
		rec := []string{
			method, k,
			strconv.Itoa(c.CorrectlyRemoved),
			strconv.Itoa(c.IncorrectlyRemoved),
			strconv.Itoa(c.Unknown),
			strconv.Itoa(c.ShouldRemove),
			strconv.Itoa(c.ShouldNotRemove),
			formatRatio(c.Precision()),
			formatRatio(c.Recall()),
			formatRatio(c.F1()),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func formatRatio(x float64) string {
	return strconv.FormatFloat(x, 'f', 4, 64)
}
