package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/paranames/app/config"
	"github.com/paranames/app/services"
	"github.com/paranames/internal/entity"
	"github.com/paranames/internal/external"
	"github.com/paranames/internal/langs"
	"github.com/paranames/internal/normalizer"
	"github.com/paranames/internal/permuter"
	"github.com/paranames/internal/search"
	"github.com/paranames/internal/tagger"
)

const defaultConfigPath = "config/pipeline.yaml"

func main() {
	// 1. Load configuration
	fs := pflag.NewFlagSet("paranames", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	path := ""
	if _, err := os.Stat(defaultConfigPath); err == nil {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path, fs)
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}

	// 2. Logger
	logger := initLogger(getEnv("APP_ENV", cfg.Env))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting paranames pipeline",
		zap.String("mode", cfg.Mode),
		zap.String("aggregation", cfg.Script.Aggregation))

	// 3. MongoDB, only when something reads or writes documents
	var db *mongo.Database
	if needsMongo(cfg) {
		db = initMongoDB(ctx, cfg.Mongo, logger)
		defer func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				logger.Error("Error disconnecting MongoDB", zap.Error(err))
			}
		}()
	}
	var store *services.MongoNameStore
	if db != nil {
		store = services.NewMongoNameStore(db, cfg.Mongo.NamesCollection, cfg.Mongo.ResultsCollection, logger)
	}

	// 4. Components
	deps := services.PipelineDeps{}
	if cfg.Output.SaveResults {
		deps.Store = store
	}
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
	if cfg.LanguageNames != "" {
		namer, err := langs.LoadNamer(cfg.LanguageNames)
		if err != nil {
			logger.Warn("Cannot read language names, using built-in names", zap.Error(err))
			namer = langs.NewNamer(nil)
		}
		deps.Namer = namer
	} else {
		deps.Namer = langs.NewNamer(nil)
	}
	if cfg.NeedsScript() && cfg.Script.Aggregation == tagger.MethodBaseline {
		if deps.Baseline, err = tagger.LoadAllowedBlocksTagger(cfg.Script.ScriptsFile); err != nil {
			logger.Fatal("Failed to load allowed scripts", zap.Error(err))
		}
	}

	var romanizer *services.RomanizationCacheService
	if cfg.NeedsNames() && strings.Contains(cfg.Names.Permuter, permuter.TypeEditDistance) {
		romanizer = initRomanizer(ctx, cfg, db, logger)
		defer romanizer.Close()
		deps.Romanizer = romanizer
	}
	if cfg.NeedsNames() && cfg.Names.Align {
		aligner, err := external.NewFastAligner(cfg.Aligner, logger)
		if err != nil {
			fatalTool(logger, "Failed to initialize aligner", err)
		}
		deps.Aligner = aligner
	}

	if cfg.Review.Enabled && cfg.NeedsScript() {
		review, err := search.NewReviewIndex(cfg.Review.ReviewConfig, logger)
		if err != nil {
			logger.Warn("Review index unavailable, filtered names will not be pushed", zap.Error(err))
		} else {
			if err := review.Configure(); err != nil {
				logger.Warn("Failed to configure review index", zap.Error(err))
			}
			deps.Review = review
		}
	}

	// 5. Run
	rows, err := services.LoadRows(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to load input rows", zap.Error(err))
	}

	pipeline, err := services.NewPipelineService(cfg, deps, logger)
	if err != nil {
		logger.Fatal("Invalid pipeline setup", zap.Error(err))
	}
	report, err := pipeline.Run(ctx, rows)
	if err != nil {
		fatalTool(logger, "Pipeline failed", err)
	}

	for _, job := range report.Jobs {
		logger.Info("Language finished",
			zap.String("language", job.Language),
			zap.Int("names", job.Names),
			zap.Int("kept", job.Kept),
			zap.Int("filtered", job.Filtered),
			zap.Int("noise_caught", job.NoiseCaught),
			zap.Int("noise_total", job.NoiseTotal))
	}
	if romanizer != nil {
		if stats, err := romanizer.GetStats(ctx); err == nil {
			logger.Info("Romanization cache",
				zap.Int64("hits", stats.TotalHits),
				zap.Int64("misses", stats.TotalMiss),
				zap.Float64("hit_rate", stats.HitRate))
		}
	}
	logger.Info("Pipeline finished", zap.String("run_id", report.RunID))
}

// initLogger builds a development or production logger
func initLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	logger, err := config.Build()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	return logger
}

func needsMongo(cfg *config.PipelineCfg) bool {
	return cfg.Input.Source == "mongo" ||
		cfg.Output.SaveResults ||
		(cfg.NeedsNames() && cfg.Romanizer.Cache.Store == "mongo")
}

// initMongoDB connects and pings MongoDB
func initMongoDB(ctx context.Context, cfg config.MongoCfg, logger *zap.Logger) *mongo.Database {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Fatal("Failed to ping MongoDB", zap.Error(err))
	}

	db := client.Database(cfg.Database)
	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database))
	return db
}

// initRomanizer wraps the configured backend with the L1 cache and the
// configured L2 store
func initRomanizer(ctx context.Context, cfg *config.PipelineCfg, db *mongo.Database, logger *zap.Logger) *services.RomanizationCacheService {
	var inner external.Romanizer
	switch cfg.Romanizer.Backend {
	case "unidecode":
		inner = external.NewUnidecodeRomanizer()
	default:
		uroman, err := external.NewUromanRomanizer(cfg.Romanizer.Uroman, logger)
		if err != nil {
			fatalTool(logger, "Failed to initialize uroman", err)
		}
		inner = uroman
	}

	var l2 services.IRomanizationStore
	var err error
	switch cfg.Romanizer.Cache.Store {
	case "memory":
		memory := services.NewCacheService(cfg.Romanizer.Cache.TTL)
		if cfg.Romanizer.Cache.TTL > 0 {
			memory.StartCleanupWorker(ctx, cfg.Romanizer.Cache.TTL)
		}
		l2 = memory
	case "redis":
		l2, err = services.NewRedisCacheService(cfg.Redis.URL, cfg.Romanizer.Cache.TTL, logger)
	case "mongo":
		l2, err = services.NewMongoCacheService(db, logger)
	}
	if err != nil {
		logger.Warn("Romanization cache store unavailable, using the in-memory cache only",
			zap.String("store", cfg.Romanizer.Cache.Store),
			zap.Error(err))
		l2 = nil
	}

	romanizer, err := services.NewRomanizationCacheService(inner, cfg.Romanizer.Backend, cfg.Romanizer.Cache.L1Size, l2, logger)
	if err != nil {
		logger.Fatal("Failed to initialize romanization cache", zap.Error(err))
	}
	return romanizer
}

// fatalTool ends the run, naming external tool failures
func fatalTool(logger *zap.Logger, msg string, err error) {
	switch {
	case errors.Is(err, external.ErrToolUnavailable):
		logger.Fatal(msg+": external tool unavailable", zap.Error(err))
	case errors.Is(err, external.ErrCountMismatch):
		logger.Fatal(msg+": external tool output count mismatch", zap.Error(err))
	default:
		logger.Fatal(msg, zap.Error(err))
	}
}

// getEnv returns the environment variable or the default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
