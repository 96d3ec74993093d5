// Package permuter normalizes the token order of names.
package permuter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/paranames/app/models"
	"github.com/paranames/internal/external"
)

// Permuter rewrites a batch of texts. english holds the reference name of
// each text at the same position. The result has one text per input.
type Permuter interface {
	Name() string
	Permute(ctx context.Context, texts, english []string) ([]string, error)
}

// Apply runs p over names and returns new records; the inputs are untouched.
func Apply(ctx context.Context, p Permuter, names []*models.TransliteratedName) ([]*models.TransliteratedName, error) {
	texts, err := permuteNames(ctx, p, names)
	if err != nil {
		return nil, err
	}
	out := make([]*models.TransliteratedName, len(names))
	for i, n := range names {
		out[i] = n.WithText(texts[i])
	}
	return out, nil
}

// ApplyInPlace runs p over names and overwrites their text. The caller must
// own the records exclusively.
func ApplyInPlace(ctx context.Context, p Permuter, names []*models.TransliteratedName) error {
	texts, err := permuteNames(ctx, p, names)
	if err != nil {
		return err
	}
	for i, n := range names {
		n.SetText(texts[i])
	}
	return nil
}

func permuteNames(ctx context.Context, p Permuter, names []*models.TransliteratedName) ([]string, error) {
	texts := make([]string, len(names))
	english := make([]string, len(names))
	for i, n := range names {
		texts[i] = n.Text
		english[i] = n.EnglishText
	}
	out, err := p.Permute(ctx, texts, english)
	if err != nil {
		return nil, fmt.Errorf("permuter %s: %w", p.Name(), err)
	}
	if len(out) != len(names) {
		return nil, fmt.Errorf("permuter %s returned %d texts for %d names", p.Name(), len(out), len(names))
	}
	return out, nil
}

// textFunc adapts a per-string transform to the Permuter interface
type textFunc struct {
	name string
	fn   func(string) string
}

func (t textFunc) Name() string { return t.name }

func (t textFunc) Permute(_ context.Context, texts, _ []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = t.fn(s)
	}
	return out, nil
}

var reParenthesis = regexp.MustCompile(`\(.*\)`)

// ParenthesisStripper removes everything from the first "(" to the last ")"
func ParenthesisStripper() Permuter {
	return textFunc{name: "remove_parenthesis", fn: StripParenthesis}
}

// StripParenthesis is the transform behind ParenthesisStripper
func StripParenthesis(s string) string {
	return trimEdges(reParenthesis.ReplaceAllString(s, ""))
}

// CommaSwapper turns "Biden, Joe" into "Joe Biden"
func CommaSwapper() Permuter {
	return textFunc{name: "permute_first_comma", fn: SwapFirstComma}
}

// SwapFirstComma is the transform behind CommaSwapper. Only commas left at
// the edges are stripped; later commas stay in place.
func SwapFirstComma(s string) string {
	head, tail, found := strings.Cut(s, ",")
	if !found {
		return s
	}
	return strings.TrimFunc(tail+" "+head, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

// Chain applies permuters one after another
type Chain struct {
	steps []Permuter
}

// NewChain composes steps in the given order
func NewChain(steps ...Permuter) *Chain {
	return &Chain{steps: steps}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (c *Chain) Permute(ctx context.Context, texts, english []string) ([]string, error) {
	current := texts
	for _, step := range c.steps {
		next, err := step.Permute(ctx, current, english)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
		if len(next) != len(texts) {
			return nil, fmt.Errorf("%s returned %d texts for %d inputs", step.Name(), len(next), len(texts))
		}
		current = next
	}
	return current, nil
}

// Permuter types accepted by New
const (
	TypeComma                         = "comma"
	TypeEditDistance                  = "edit_distance"
	TypeRemoveParenthesis             = "remove_parenthesis"
	TypeRemoveParenthesisPermuteComma = "remove_parenthesis_permute_comma"
	TypeRemoveParenthesisEditDistance = "remove_parenthesis_edit_distance"
)

// New builds a permuter by type. r and metric are used by the edit distance
// types only.
func New(permuterType string, r external.Romanizer, metric string) (Permuter, error) {
	editDistance := func() (Permuter, error) {
		if r == nil {
			return nil, fmt.Errorf("permuter %s needs a romanizer", permuterType)
		}
		d, err := DistanceByName(metric)
		if err != nil {
			return nil, err
		}
		return NewEditDistancePermuter(r, WithDistance(d)), nil
	}

	switch permuterType {
	case TypeComma:
		return CommaSwapper(), nil
	case TypeRemoveParenthesis:
		return ParenthesisStripper(), nil
	case TypeRemoveParenthesisPermuteComma:
		return NewChain(ParenthesisStripper(), CommaSwapper()), nil
	case TypeEditDistance:
		return editDistance()
	case TypeRemoveParenthesisEditDistance:
		ed, err := editDistance()
		if err != nil {
			return nil, err
		}
		return NewChain(ParenthesisStripper(), ed), nil
	}
	return nil, fmt.Errorf("unknown permuter type %q", permuterType)
}
