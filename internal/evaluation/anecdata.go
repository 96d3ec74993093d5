// Package evaluation scores anomaly filtering against hand-labelled anecdata.
package evaluation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ChunkSize is the block size of anecdata files without a remove column:
// the first block holds ids to keep, the second ids to remove.
const ChunkSize = 10

// GlobalKey is the key of the summed confusion counts
const GlobalKey = "global"

// Anecdata is the hand-labelled sample of one language
type Anecdata struct {
	Language     string
	ShouldRemove map[string]struct{}
	ShouldKeep   map[string]struct{}
}

// Confusion compares the removed ids of a run with the anecdata
type Confusion struct {
	CorrectlyRemoved   int `json:"n_correctly_removed"`
	IncorrectlyRemoved int `json:"n_incorrectly_removed"`
	Unknown            int `json:"n_unknown"`
	ShouldRemove       int `json:"n_should_remove"`
	ShouldNotRemove    int `json:"n_should_not_remove"`
}

// Add sums other into c
func (c *Confusion) Add(other Confusion) {
	c.CorrectlyRemoved += other.CorrectlyRemoved
	c.IncorrectlyRemoved += other.IncorrectlyRemoved
	c.Unknown += other.Unknown
	c.ShouldRemove += other.ShouldRemove
	c.ShouldNotRemove += other.ShouldNotRemove
}

// Precision is the share of labelled removals that were correct, 0 when none
func (c Confusion) Precision() float64 {
	n := c.CorrectlyRemoved + c.IncorrectlyRemoved
	if n == 0 {
		return 0
	}
	return float64(c.CorrectlyRemoved) / float64(n)
}

// Recall is the share of should-remove ids that were removed, 0 when none
func (c Confusion) Recall() float64 {
	if c.ShouldRemove == 0 {
		return 0
	}
	return float64(c.CorrectlyRemoved) / float64(c.ShouldRemove)
}

// F1 is the harmonic mean of precision and recall
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

// Score computes the confusion counts for one language
func Score(a *Anecdata, removed map[string]struct{}) Confusion {
	c := Confusion{ShouldRemove: len(a.ShouldRemove), ShouldNotRemove: len(a.ShouldKeep)}
	for id := range removed {
		_, bad := a.ShouldRemove[id]
		_, good := a.ShouldKeep[id]
		switch {
		case bad:
			c.CorrectlyRemoved++
		case good:
			c.IncorrectlyRemoved++
		default:
			c.Unknown++
		}
	}
	return c
}

// ScoreAll scores every language with anecdata. Languages missing from
// removed count as having removed nothing. The summed counts are stored
// under GlobalKey.
func ScoreAll(anecdata map[string]*Anecdata, removed map[string]map[string]struct{}) map[string]Confusion {
	out := make(map[string]Confusion, len(anecdata)+1)
	var global Confusion
	for lang, a := range anecdata {
		c := Score(a, removed[lang])
		out[lang] = c
		global.Add(c)
	}
	out[GlobalKey] = global
	return out
}

// RemovedIDs groups ids by language
func RemovedIDs(pairs [][2]string) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	for _, p := range pairs {
		lang, id := p[0], p[1]
		if out[lang] == nil {
			out[lang] = make(map[string]struct{})
		}
		out[lang][id] = struct{}{}
	}
	return out
}

// ReadAnecdata decodes an anecdata TSV. With a remove column each row is
// labelled by it; without one the ChunkSize block layout is used.
func ReadAnecdata(in io.Reader, language, idColumn string) (*Anecdata, error) {
	cr := csv.NewReader(in)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read anecdata header: %w", err)
	}
	idIdx, removeIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case idColumn:
			idIdx = i
		case "remove":
			removeIdx = i
		}
	}
	if idIdx < 0 {
		return nil, fmt.Errorf("anecdata has no %q column", idColumn)
	}

	a := &Anecdata{
		Language:     language,
		ShouldRemove: make(map[string]struct{}),
		ShouldKeep:   make(map[string]struct{}),
	}
	for line := 0; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read anecdata row: %w", err)
		}
		if idIdx >= len(rec) || strings.TrimSpace(rec[idIdx]) == "" {
			continue
		}
		id := strings.TrimSpace(rec[idIdx])

		remove := line >= ChunkSize
		if removeIdx >= 0 {
			if removeIdx >= len(rec) {
				continue
			}
			remove, err = strconv.ParseBool(strings.TrimSpace(rec[removeIdx]))
			if err != nil {
				return nil, fmt.Errorf("anecdata row %d: bad remove value %q", line+1, rec[removeIdx])
			}
		} else if line >= 2*ChunkSize {
			break
		}

		if remove {
			a.ShouldRemove[id] = struct{}{}
		} else {
			a.ShouldKeep[id] = struct{}{}
		}
	}
	return a, nil
}

// LoadFolder reads every anecdata_<language>.tsv file in folder
func LoadFolder(folder, idColumn string) (map[string]*Anecdata, error) {
	paths, err := filepath.Glob(filepath.Join(folder, "anecdata_*.tsv"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make(map[string]*Anecdata, len(paths))
	for _, p := range paths {
		lang := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), "anecdata_"), ".tsv")
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		a, err := ReadAnecdata(f, lang, idColumn)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out[lang] = a
	}
	return out, nil
}
