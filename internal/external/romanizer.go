package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Romanizer renders strings in Latin script. The result holds exactly one
// string per input, in input order.
type Romanizer interface {
	Romanize(ctx context.Context, texts []string) ([]string, error)
}

// UromanConfig configures the uroman subprocess
type UromanConfig struct {
	Command   string `mapstructure:"command" yaml:"command"`       // e.g. "uroman.pl" or "perl /opt/uroman/bin/uroman.pl"
	ChunkSize int    `mapstructure:"chunk_size" yaml:"chunk_size"` // lines per invocation
	Workers   int    `mapstructure:"workers" yaml:"workers"`       // concurrent invocations
}

const (
	defaultChunkSize = 10000
	defaultWorkers   = 1
)

// UromanRomanizer pipes newline-joined strings through uroman
type UromanRomanizer struct {
	cmd       toolCommand
	chunkSize int
	workers   int
	logger    *zap.Logger
}

// NewUromanRomanizer resolves the configured command. A command that cannot
// be found yields ErrToolUnavailable.
func NewUromanRomanizer(cfg UromanConfig, logger *zap.Logger) (*UromanRomanizer, error) {
	cmd, err := parseToolCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &UromanRomanizer{cmd: cmd, chunkSize: cfg.ChunkSize, workers: cfg.Workers, logger: logger}, nil
}

// Romanize sends the texts in chunks and re-assembles the output in order.
// Blank texts are not sent and romanize to themselves.
func (u *UromanRomanizer) Romanize(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))

	var positions []int
	var payload []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = t
			continue
		}
		positions = append(positions, i)
		payload = append(payload, strings.ReplaceAll(t, "\n", " "))
	}
	if len(payload) == 0 {
		return out, nil
	}

	results := make([][]string, (len(payload)+u.chunkSize-1)/u.chunkSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)
	for c := range results {
		c := c
		start := c * u.chunkSize
		end := start + u.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]
		g.Go(func() error {
			lines, err := u.romanizeChunk(gctx, chunk)
			if err != nil {
				return err
			}
			results[c] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	k := 0
	for _, lines := range results {
		for _, l := range lines {
			out[positions[k]] = l
			k++
		}
	}

	u.logger.Debug("Romanized batch",
		zap.Int("texts", len(texts)),
		zap.Int("chunks", len(results)))

	return out, nil
}

func (u *UromanRomanizer) romanizeChunk(ctx context.Context, chunk []string) ([]string, error) {
	stdout, err := u.cmd.run(ctx, strings.NewReader(strings.Join(chunk, "\n")+"\n"))
	if err != nil {
		return nil, fmt.Errorf("uroman: %w", err)
	}
	lines := splitLines(stdout)
	if len(lines) != len(chunk) {
		return nil, fmt.Errorf("uroman: %w: got %d lines for %d inputs", ErrCountMismatch, len(lines), len(chunk))
	}
	return lines, nil
}

// UnidecodeRomanizer romanizes in-process with ASCII transliteration tables.
// It is coarser than uroman but needs no external binary.
type UnidecodeRomanizer struct{}

// NewUnidecodeRomanizer creates the in-process romanizer
func NewUnidecodeRomanizer() *UnidecodeRomanizer { return &UnidecodeRomanizer{} }

func (UnidecodeRomanizer) Romanize(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, t := range texts {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = strings.Join(strings.Fields(unidecode.Unidecode(t)), " ")
	}
	return out, nil
}
