package external

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/paranames/app/models"
	"go.uber.org/zap"
)

// Aligner computes character alignments between names and their English
// references. The result has one entry per name; names without an English
// reference get nil. Each alignment is also attached to its name.
type Aligner interface {
	Align(ctx context.Context, names []*models.TransliteratedName) ([]*models.Alignment, error)
}

// LinkOrder tells which side of an "i-j" token is the source
type LinkOrder string

const (
	SourceTarget LinkOrder = "source-target"
	TargetSource LinkOrder = "target-source"
)

// ParseLinkOrder validates a configured link order
func ParseLinkOrder(s string) (LinkOrder, error) {
	switch LinkOrder(s) {
	case "", SourceTarget:
		return SourceTarget, nil
	case TargetSource:
		return TargetSource, nil
	}
	return "", fmt.Errorf("unknown link order %q", s)
}

// SpacePlaceholder replaces whitespace inside names so that single spaces can
// delimit characters in the training file.
const SpacePlaceholder = "▁"

// FastAlignConfig configures the fast_align subprocess
type FastAlignConfig struct {
	Command   string `mapstructure:"command" yaml:"command"`
	LinkOrder string `mapstructure:"link_order" yaml:"link_order"`
	TempDir   string `mapstructure:"temp_dir" yaml:"temp_dir"`
	Preserve  bool   `mapstructure:"preserve" yaml:"preserve"` // keep the training file
}

// FastAligner runs fast_align over a temporary training file
type FastAligner struct {
	cmd      toolCommand
	order    LinkOrder
	tempDir  string
	preserve bool
	logger   *zap.Logger
}

// NewFastAligner resolves the configured command
func NewFastAligner(cfg FastAlignConfig, logger *zap.Logger) (*FastAligner, error) {
	if cfg.Command == "" {
		cfg.Command = "fast_align"
	}
	order, err := ParseLinkOrder(cfg.LinkOrder)
	if err != nil {
		return nil, err
	}
	cmd, err := parseToolCommand(cfg.Command)
	if err != nil {
		return nil, err
	}
	return &FastAligner{cmd: cmd, order: order, tempDir: cfg.TempDir, preserve: cfg.Preserve, logger: logger}, nil
}

// alignmentPair is one line of the training file
type alignmentPair struct {
	index     int
	srcLen    int
	tgtLen    int
	trainLine string
}

// TrainingLine renders a name and its reference as "s p a c e d ||| c h a r s".
// Every rune becomes one token, so a "|||" inside a name is split apart.
func TrainingLine(text, english string) string {
	return spaceChars(text) + " ||| " + spaceChars(english)
}

func spaceChars(s string) string {
	runes := []rune(s)
	parts := make([]string, len(runes))
	for i, r := range runes {
		if unicode.IsSpace(r) {
			parts[i] = SpacePlaceholder
		} else {
			parts[i] = string(r)
		}
	}
	return strings.Join(parts, " ")
}

func (f *FastAligner) Align(ctx context.Context, names []*models.TransliteratedName) ([]*models.Alignment, error) {
	pairs := make([]alignmentPair, 0, len(names))
	for i, n := range names {
		if strings.TrimSpace(n.Text) == "" || strings.TrimSpace(n.EnglishText) == "" {
			continue
		}
		pairs = append(pairs, alignmentPair{
			index:     i,
			srcLen:    len([]rune(n.Text)),
			tgtLen:    len([]rune(n.EnglishText)),
			trainLine: TrainingLine(n.Text, n.EnglishText),
		})
	}

	alignments := make([]*models.Alignment, len(names))
	if len(pairs) == 0 {
		return alignments, nil
	}

	path, err := f.writeTrainingFile(pairs)
	if err != nil {
		return nil, err
	}
	if f.preserve {
		f.logger.Info("Keeping alignment training data", zap.String("path", path))
	} else {
		defer os.Remove(path)
	}

	stdout, err := f.cmd.run(ctx, nil, "-i", path, "-d", "-o", "-v")
	if err != nil {
		return nil, fmt.Errorf("fast_align: %w", err)
	}

	lines := splitLines(stdout)
	if len(lines) != len(pairs) {
		return nil, fmt.Errorf("fast_align: %w: got %d lines for %d pairs", ErrCountMismatch, len(lines), len(pairs))
	}

	for k, p := range pairs {
		links, err := ParseLinks(lines[k], f.order, p.srcLen, p.tgtLen)
		if err != nil {
			return nil, fmt.Errorf("fast_align line %d: %w", k+1, err)
		}
		a := models.NewAlignment(links)
		alignments[p.index] = a
		names[p.index].AttachAlignment(a)
	}

	f.logger.Debug("Aligned names",
		zap.Int("names", len(names)),
		zap.Int("pairs", len(pairs)))

	return alignments, nil
}

func (f *FastAligner) writeTrainingFile(pairs []alignmentPair) (string, error) {
	file, err := os.CreateTemp(f.tempDir, "fast_align_*.txt")
	if err != nil {
		return "", fmt.Errorf("create alignment training file: %w", err)
	}
	w := bufio.NewWriter(file)
	for _, p := range pairs {
		if _, err := w.WriteString(p.trainLine + "\n"); err != nil {
			file.Close()
			os.Remove(file.Name())
			return "", fmt.Errorf("write alignment training file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", fmt.Errorf("write alignment training file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("close alignment training file: %w", err)
	}
	return file.Name(), nil
}

// ParseLinks parses whitespace separated "i-j" tokens. Indices must fall
// inside [0, srcLen) and [0, tgtLen); a negative length skips that check.
func ParseLinks(line string, order LinkOrder, srcLen, tgtLen int) ([]models.Link, error) {
	fields := strings.Fields(line)
	links := make([]models.Link, 0, len(fields))
	for _, tok := range fields {
		left, right, ok := strings.Cut(tok, "-")
		if !ok {
			return nil, fmt.Errorf("%w: token %q", ErrMalformedAlignment, tok)
		}
		i, err := strconv.Atoi(left)
		if err != nil {
			return nil, fmt.Errorf("%w: token %q", ErrMalformedAlignment, tok)
		}
		j, err := strconv.Atoi(right)
		if err != nil {
			return nil, fmt.Errorf("%w: token %q", ErrMalformedAlignment, tok)
		}

		link := models.Link{Source: i, Target: j}
		if order == TargetSource {
			link = models.Link{Source: j, Target: i}
		}
		if link.Source < 0 || link.Target < 0 ||
			(srcLen >= 0 && link.Source >= srcLen) ||
			(tgtLen >= 0 && link.Target >= tgtLen) {
			return nil, fmt.Errorf("%w: link %q outside %dx%d", ErrMalformedAlignment, tok, srcLen, tgtLen)
		}
		links = append(links, link)
	}
	return links, nil
}
