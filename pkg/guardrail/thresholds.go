package guardrail

import (
	"fmt"
	"strings"
	"unicode"
)

// Band is the (upper, lower) similarity pair for one class of content.
// Scores at or above Upper pass, scores below Lower fail, the rest is the
// gray zone.
type Band struct {
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

func (b Band) Validate() error {
	if b.Lower < 0 || b.Upper > 1 || b.Upper <= b.Lower {
		return fmt.Errorf("invalid band upper=%.2f lower=%.2f: need 0 <= lower < upper <= 1", b.Upper, b.Lower)
	}
	return nil
}

// Thresholds maps a visual label to a Band. Abstract imagery (code,
// diagrams, text) gets a more permissive band than photographic content.
type Thresholds struct {
	Abstract         Band
	Photographic     Band
	AbstractKeywords []string
}

var defaultAbstractKeywords = []string{
	"code", "script", "function", "class", "variable", "ide", "editor",
	"terminal", "console", "diagram", "uml", "flowchart", "schema",
	"equation", "formula", "math", "graph", "chart", "table",
	"spreadsheet", "ui", "interface", "layout", "wireframe",
	"whiteboard", "slide", "presentation", "text", "document",
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Abstract:         Band{Upper: 0.50, Lower: 0.20},
		Photographic:     Band{Upper: 0.75, Lower: 0.40},
		AbstractKeywords: append([]string(nil), defaultAbstractKeywords...),
	}
}

func (t Thresholds) Validate() error {
	if err := t.Abstract.Validate(); err != nil {
		return fmt.Errorf("abstract: %w", err)
	}
	if err := t.Photographic.Validate(); err != nil {
		return fmt.Errorf("photographic: %w", err)
	}
	return nil
}

// IsAbstract reports whether any word of label is an abstract keyword.
// Words are compared whole, with a trailing "s"/"es" allowed, so
// "photograph" does not match "graph" while "diagrams" matches "diagram".
func (t Thresholds) IsAbstract(label string) bool {
	words := strings.FieldsFunc(strings.ToLower(label), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		for _, kw := range t.AbstractKeywords {
			if w == kw || w == kw+"s" || w == kw+"es" {
				return true
			}
		}
	}
	return false
}

// For is pure: the same label always yields the same Band.
func (t Thresholds) For(label string) Band {
	if t.IsAbstract(label) {
		return t.Abstract
	}
	return t.Photographic
}
