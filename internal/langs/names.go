// Package langs resolves language codes to display names.
package langs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Namer resolves codes from a loaded map, falling back to the CLDR English
// names and finally to the code itself.
type Namer struct {
	names map[string]string

	mu       sync.RWMutex
	fallback map[string]string
}

// NewNamer returns a namer over names; names may be nil
func NewNamer(names map[string]string) *Namer {
	own := make(map[string]string, len(names))
	for k, v := range names {
		own[k] = v
	}
	return &Namer{names: own, fallback: make(map[string]string)}
}

// LoadNamer reads a JSON object of code to name. An empty path gives a
// namer that only uses the fallback.
func LoadNamer(path string) (*Namer, error) {
	if path == "" {
		return NewNamer(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read language names: %w", err)
	}
	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse language names: %w", err)
	}
	return NewNamer(names), nil
}

// Name returns the display name of code
func (n *Namer) Name(code string) string {
	if name, ok := n.names[code]; ok && name != "" {
		return name
	}

	n.mu.RLock()
	name, ok := n.fallback[code]
	n.mu.RUnlock()
	if ok {
		return name
	}

	name = displayName(code)
	n.mu.Lock()
	n.fallback[code] = name
	n.mu.Unlock()
	return name
}

func displayName(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
