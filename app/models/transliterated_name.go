package models

import (
	"github.com/paranames/internal/script"
)

// NameState tracks how far a name has gone through the pipeline
type NameState int

const (
	StateRaw NameState = iota
	StateNormalized
	StateAligned
	StateTagged
	StateKept
	StateFiltered
)

func (s NameState) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateNormalized:
		return "normalized"
	case StateAligned:
		return "aligned"
	case StateTagged:
		return "tagged"
	case StateKept:
		return "kept"
	case StateFiltered:
		return "filtered"
	}
	return "unknown"
}

// NameKey identifies a name: two names with the same text in the same
// language are the same name.
type NameKey struct {
	Text     string
	Language string
}

// TransliteratedName is one name of one entity in one language
type TransliteratedName struct {
	Text         string
	OriginalText string
	IsUnchanged  bool
	Language     string
	EnglishText  string
	EntityID     string
	EntityType   string
	Anomalous    Label
	NoiseSample  bool
	State        NameState

	alignment *Alignment
	analyzer  *script.Analyzer
}

// NewTransliteratedName creates a raw name. analyzer may be nil when the
// block accessors are not used.
func NewTransliteratedName(text, language string, analyzer *script.Analyzer) *TransliteratedName {
	return &TransliteratedName{
		Text:         text,
		OriginalText: text,
		IsUnchanged:  true,
		Language:     language,
		Anomalous:    Abstain,
		analyzer:     analyzer,
	}
}

// NewNameFromRow builds a raw name from an input row
func NewNameFromRow(row NameRow, analyzer *script.Analyzer) *TransliteratedName {
	n := NewTransliteratedName(row.Alias, row.Language, analyzer)
	n.EnglishText = row.English
	n.EntityID = row.WikidataID
	n.EntityType = row.Type
	return n
}

// Key returns the identity of the name
func (n *TransliteratedName) Key() NameKey {
	return NameKey{Text: n.Text, Language: n.Language}
}

// Equal compares names by text and language
func (n *TransliteratedName) Equal(other *TransliteratedName) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Key() == other.Key()
}

// Analyzer returns the analyzer the name computes its blocks with
func (n *TransliteratedName) Analyzer() *script.Analyzer { return n.analyzer }

// SetAnalyzer replaces the analyzer, e.g. when a worker takes ownership
func (n *TransliteratedName) SetAnalyzer(a *script.Analyzer) { n.analyzer = a }

// MostCommonBlock is derived from the current text on every call
func (n *TransliteratedName) MostCommonBlock() string {
	if n.analyzer == nil {
		return ""
	}
	return n.analyzer.MostCommonBlock(n.Text)
}

// BlockHistogram is derived from the current text on every call
func (n *TransliteratedName) BlockHistogram() map[string]float64 {
	if n.analyzer == nil {
		return map[string]float64{}
	}
	return n.analyzer.BlockHistogram(n.Text)
}

// Alignment returns the alignment attached by the aligner, or nil
func (n *TransliteratedName) Alignment() *Alignment { return n.alignment }

// AttachAlignment sets the alignment computed for this name
func (n *TransliteratedName) AttachAlignment(a *Alignment) {
	n.alignment = a
	if n.State < StateAligned {
		n.State = StateAligned
	}
}

// Clone returns a shallow copy; the alignment is shared read-only.
func (n *TransliteratedName) Clone() *TransliteratedName {
	c := *n
	return &c
}

// WithText returns a copy carrying the new text. OriginalText keeps the text
// from before the first change.
func (n *TransliteratedName) WithText(text string) *TransliteratedName {
	c := n.Clone()
	c.SetText(text)
	return c
}

// SetText replaces the text in place and recomputes IsUnchanged. A text
// change invalidates any attached alignment.
func (n *TransliteratedName) SetText(text string) {
	if n.OriginalText == "" && n.Text != "" {
		n.OriginalText = n.Text
	}
	if text != n.Text {
		n.alignment = nil
	}
	n.Text = text
	n.IsUnchanged = n.Text == n.OriginalText
	if n.State < StateNormalized {
		n.State = StateNormalized
	}
}

// SetAnomalous records the aggregated label and moves the name to Tagged
func (n *TransliteratedName) SetAnomalous(l Label) {
	n.Anomalous = l
	if n.State < StateTagged {
		n.State = StateTagged
	}
}

// ToRow turns the name back into an input row
func (n *TransliteratedName) ToRow() NameRow {
	return NameRow{
		WikidataID: n.EntityID,
		Type:       n.EntityType,
		Alias:      n.Text,
		English:    n.EnglishText,
		Language:   n.Language,
	}
}
