// Command langcounts prints the number of name documents per language
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/paranames/app/config"
	"github.com/paranames/app/services"
)

func main() {
	fs := pflag.NewFlagSet("langcounts", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "config/pipeline.yaml", "config file (yaml)")
	format := fs.StringP("format", "f", "jsonl", "output format: jsonl or csv")
	outPath := fs.StringP("output", "o", "-", "output file, - for stdout")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("Cannot load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URL))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	store := services.NewMongoNameStore(client.Database(cfg.Mongo.Database), cfg.Mongo.NamesCollection, cfg.Mongo.ResultsCollection, logger)
	counts, err := store.CountByLanguage(ctx)
	if err != nil {
		logger.Fatal("Failed to count documents", zap.Error(err))
	}

	out := io.Writer(os.Stdout)
	if *outPath != "-" && *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			logger.Fatal("Failed to create output file", zap.Error(err))
		}
		defer f.Close()
		out = f
	}
	if err := writeCounts(out, counts, *format); err != nil {
		logger.Fatal("Failed to write counts", zap.Error(err))
	}
	logger.Info("Counted languages", zap.Int("languages", len(counts)))
}

func writeCounts(out io.Writer, counts []services.LanguageCount, format string) error {
	switch format {
	case "jsonl":
		enc := json.NewEncoder(out)
		for _, c := range counts {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case "csv":
		cw := csv.NewWriter(out)
		if err := cw.Write([]string{"language", "count"}); err != nil {
			return err
		}
		for _, c := range counts {
			if err := cw.Write([]string{c.Language, strconv.FormatInt(c.Count, 10)}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unknown format %q", format)
}
