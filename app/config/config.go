package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/paranames/internal/external"
	"github.com/paranames/internal/input"
	"github.com/paranames/internal/script"
	"github.com/paranames/internal/search"
	"github.com/paranames/internal/tagger"
)

// Pipeline modes
const (
	ModeScript = "script" // anomaly tagging only
	ModeNames  = "names"  // name normalization only
	ModeAll    = "all"    // normalization, then tagging
)

type InputCfg struct {
	Path      string        `mapstructure:"path" yaml:"path"`
	Format    string        `mapstructure:"format" yaml:"format"` // tsv, csv, jsonl; guessed from path when empty
	Source    string        `mapstructure:"source" yaml:"source"` // file or mongo
	Languages []string      `mapstructure:"languages" yaml:"languages"`
	Columns   input.Columns `mapstructure:"columns" yaml:"columns"`
}

type OutputCfg struct {
	Folder      string `mapstructure:"folder" yaml:"folder"`
	KeptRows    string `mapstructure:"kept_rows" yaml:"kept_rows"` // kept rows in the input format, skipped when empty
	Stats       string `mapstructure:"stats" yaml:"stats"`         // corpus statistics TSV, skipped when empty
	WriteNoise  bool   `mapstructure:"write_noise" yaml:"write_noise"`
	SaveResults bool   `mapstructure:"save_results" yaml:"save_results"` // upsert results into MongoDB
}

type FiltersCfg struct {
	EntityPrefix      string   `mapstructure:"entity_prefix" yaml:"entity_prefix"`
	Disambiguate      bool     `mapstructure:"disambiguate" yaml:"disambiguate"`
	Clean             bool     `mapstructure:"clean" yaml:"clean"`
	KeepList          string   `mapstructure:"keep_list" yaml:"keep_list"`
	KeepListLanguages []string `mapstructure:"keep_list_languages" yaml:"keep_list_languages"`
}

type NamesCfg struct {
	Permuter string `mapstructure:"permuter" yaml:"permuter"`
	Distance string `mapstructure:"distance" yaml:"distance"`
	InPlace  bool   `mapstructure:"in_place" yaml:"in_place"`
	Align    bool   `mapstructure:"align" yaml:"align"`
}

type ScriptCfg struct {
	Aggregation     string                  `mapstructure:"aggregation" yaml:"aggregation"`
	CriticalValue   float64                 `mapstructure:"critical_value" yaml:"critical_value"`
	DistanceMeasure string                  `mapstructure:"distance_measure" yaml:"distance_measure"`
	ScriptsFile     string                  `mapstructure:"scripts_file" yaml:"scripts_file"` // baseline allow list
	NoiseSamples    int                     `mapstructure:"noise_samples" yaml:"noise_samples"`
	NoiseSeed       uint64                  `mapstructure:"noise_seed" yaml:"noise_seed"`
	Pooled          bool                    `mapstructure:"pooled" yaml:"pooled"` // one corpus over all languages
	Analyzer        script.Options          `mapstructure:"analyzer" yaml:"analyzer"`
	LabelModel      tagger.LabelModelConfig `mapstructure:"label_model" yaml:"label_model"`
}

type CacheCfg struct {
	L1Size int           `mapstructure:"l1_size" yaml:"l1_size"`
	Store  string        `mapstructure:"store" yaml:"store"` // none, memory, redis, mongo
	TTL    time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RomanizerCfg struct {
	Backend string                `mapstructure:"backend" yaml:"backend"` // uroman or unidecode
	Uroman  external.UromanConfig `mapstructure:"uroman" yaml:"uroman"`
	Cache   CacheCfg              `mapstructure:"cache" yaml:"cache"`
}

type MongoCfg struct {
	URL               string `mapstructure:"url" yaml:"url"`
	Database          string `mapstructure:"database" yaml:"database"`
	NamesCollection   string `mapstructure:"names_collection" yaml:"names_collection"`
	ResultsCollection string `mapstructure:"results_collection" yaml:"results_collection"`
}

type RedisCfg struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type ReviewCfg struct {
	Enabled             bool `mapstructure:"enabled" yaml:"enabled"`
	search.ReviewConfig `mapstructure:",squash" yaml:",inline"`
}

// PipelineCfg is the full run configuration
type PipelineCfg struct {
	Env           string                   `mapstructure:"env" yaml:"env"`
	Mode          string                   `mapstructure:"mode" yaml:"mode"`
	Workers       int                      `mapstructure:"workers" yaml:"workers"`
	LanguageNames string                   `mapstructure:"language_names" yaml:"language_names"`
	Input         InputCfg                 `mapstructure:"input" yaml:"input"`
	Output        OutputCfg                `mapstructure:"output" yaml:"output"`
	Filters       FiltersCfg               `mapstructure:"filters" yaml:"filters"`
	Names         NamesCfg                 `mapstructure:"names" yaml:"names"`
	Script        ScriptCfg                `mapstructure:"script" yaml:"script"`
	Romanizer     RomanizerCfg             `mapstructure:"romanizer" yaml:"romanizer"`
	Aligner       external.FastAlignConfig `mapstructure:"aligner" yaml:"aligner"`
	Mongo         MongoCfg                 `mapstructure:"mongo" yaml:"mongo"`
	Redis         RedisCfg                 `mapstructure:"redis" yaml:"redis"`
	Review        ReviewCfg                `mapstructure:"review" yaml:"review"`
}

// NeedsNames reports whether the run normalizes names
func (c *PipelineCfg) NeedsNames() bool { return c.Mode == ModeNames || c.Mode == ModeAll }

// NeedsScript reports whether the run tags anomalies
func (c *PipelineCfg) NeedsScript() bool { return c.Mode == ModeScript || c.Mode == ModeAll }

func setDefaults(v *viper.Viper) {
	analyzer := script.DefaultOptions()
	lm := tagger.DefaultLabelModelConfig()
	cols := input.DefaultColumns()

	v.SetDefault("env", "development")
	v.SetDefault("mode", ModeScript)
	v.SetDefault("workers", 4)
	v.SetDefault("input.source", "file")
	v.SetDefault("input.columns.id", cols.ID)
	v.SetDefault("input.columns.type", cols.Type)
	v.SetDefault("input.columns.alias", cols.Alias)
	v.SetDefault("input.columns.english", cols.English)
	v.SetDefault("input.columns.language", cols.Language)
	v.SetDefault("input.columns.is_latin", cols.IsLatin)
	v.SetDefault("output.folder", "output")
	v.SetDefault("filters.entity_prefix", "Q")
	v.SetDefault("filters.disambiguate", true)
	v.SetDefault("filters.clean", true)
	v.SetDefault("filters.keep_list_languages", []string{"am", "ti"})
	v.SetDefault("names.permuter", "remove_parenthesis_permute_comma")
	v.SetDefault("names.distance", "levenshtein")
	v.SetDefault("names.align", false)
	v.SetDefault("script.aggregation", tagger.MethodMajorityVote)
	v.SetDefault("script.critical_value", 0.1)
	v.SetDefault("script.distance_measure", "jensen_shannon")
	v.SetDefault("script.noise_seed", 1)
	v.SetDefault("script.analyzer.strip", analyzer.Strip)
	v.SetDefault("script.analyzer.ignore_punctuation", analyzer.IgnorePunctuation)
	v.SetDefault("script.analyzer.ignore_numbers", analyzer.IgnoreNumbers)
	v.SetDefault("script.analyzer.normalize_histogram", analyzer.NormalizeHistogram)
	v.SetDefault("script.analyzer.cache_size", analyzer.CacheSize)
	v.SetDefault("script.label_model.class_balance", lm.ClassBalance)
	v.SetDefault("script.label_model.min_overlap", lm.MinOverlap)
	v.SetDefault("script.label_model.default_accuracy", lm.DefaultAccuracy)
	v.SetDefault("romanizer.backend", "uroman")
	v.SetDefault("romanizer.uroman.command", "uroman.pl")
	v.SetDefault("romanizer.uroman.chunk_size", 10000)
	v.SetDefault("romanizer.uroman.workers", 1)
	v.SetDefault("romanizer.cache.l1_size", 100000)
	v.SetDefault("romanizer.cache.store", "none")
	v.SetDefault("romanizer.cache.ttl", 30*24*time.Hour)
	v.SetDefault("aligner.command", "fast_align")
	v.SetDefault("aligner.link_order", string(external.SourceTarget))
	v.SetDefault("mongo.url", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "paranames")
	v.SetDefault("mongo.names_collection", "names")
	v.SetDefault("mongo.results_collection", "name_results")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("review.host", "http://localhost:7700")
	v.SetDefault("review.index", "name_review")
	v.SetDefault("review.batch_size", search.DefaultBatchSize)
}

// Flags declares the command-line overrides
func Flags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (yaml)")
	fs.StringP("input", "i", "", "input file")
	fs.StringP("output", "o", "", "output folder")
	fs.StringP("format", "f", "", "input format: tsv, csv or jsonl")
	fs.StringP("mode", "m", "", "pipeline mode: script, names or all")
	fs.StringP("aggregation", "a", "", "vote aggregation: all, any, majority_vote, label_model or baseline")
	fs.String("permuter", "", "name permuter type")
	fs.Int("workers", 0, "languages processed in parallel")
	fs.Int("noise-samples", 0, "noise names injected per language")
	fs.String("source", "", "row source: file or mongo")
	fs.StringSlice("languages", nil, "only process these languages")
}

var flagKeys = map[string]string{
	"input":         "input.path",
	"output":        "output.folder",
	"format":        "input.format",
	"mode":          "mode",
	"aggregation":   "script.aggregation",
	"permuter":      "names.permuter",
	"workers":       "workers",
	"noise-samples": "script.noise_samples",
	"source":        "input.source",
	"languages":     "input.languages",
}

// Load reads the config file named by the config flag (or path when no flag
// set is given), applies PARANAMES_* environment variables and changed
// flags, then validates the result.
func Load(path string, fs *pflag.FlagSet) (*PipelineCfg, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("paranames")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			path = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &PipelineCfg{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail deep in a run
func (c *PipelineCfg) Validate() error {
	switch c.Mode {
	case ModeScript, ModeNames, ModeAll:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	switch c.Script.Aggregation {
	case tagger.MethodAll, tagger.MethodAny, tagger.MethodMajorityVote, tagger.MethodLabelModel, tagger.MethodBaseline:
	default:
		return fmt.Errorf("unknown aggregation method %q", c.Script.Aggregation)
	}
	if c.Script.Aggregation == tagger.MethodBaseline && c.Script.ScriptsFile == "" && c.NeedsScript() {
		return errors.New("baseline aggregation needs script.scripts_file")
	}
	switch c.Input.Source {
	case "file":
		if c.Input.Path == "" {
			return errors.New("input.path is required for file input")
		}
	case "mongo":
	default:
		return fmt.Errorf("unknown input source %q", c.Input.Source)
	}
	switch c.Romanizer.Backend {
	case "uroman", "unidecode":
	default:
		return fmt.Errorf("unknown romanizer backend %q", c.Romanizer.Backend)
	}
	switch c.Romanizer.Cache.Store {
	case "none", "memory", "redis", "mongo":
	default:
		return fmt.Errorf("unknown romanization cache store %q", c.Romanizer.Cache.Store)
	}
	if _, err := external.ParseLinkOrder(c.Aligner.LinkOrder); err != nil {
		return err
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return nil
}
