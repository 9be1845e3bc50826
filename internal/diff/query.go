// Package diff renders word-level differences between query revisions.
package diff

import (
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Generator renders query diffs, optionally with ANSI colour.
type Generator struct {
	colorEnabled bool
}

// NewGenerator creates a diff generator.
func NewGenerator(colorEnabled bool) *Generator {
	return &Generator{colorEnabled: colorEnabled}
}

// QueryDiff is the word-level change from one query text to another.
type QueryDiff struct {
	// Inline marks removed words as [-word-] and added words as {+word+}.
	Inline  string
	Added   []string
	Removed []string
}

// Changed reports whether any word differs.
func (d QueryDiff) Changed() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// Query diffs two query texts word by word.
func (g *Generator) Query(oldText, newText string) QueryDiff {
	oldWords := strings.Fields(oldText)
	newWords := strings.Fields(newText)
	if strings.Join(oldWords, " ") == strings.Join(newWords, " ") {
		return QueryDiff{Inline: strings.Join(newWords, " ")}
	}

	// One word per "line" lets the line-mode diff work on words.
	dmp := diffmatchpatch.New()
	a, b, index := dmp.DiffLinesToChars(joinLines(oldWords), joinLines(newWords))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), index)

	var (
		out    QueryDiff
		inline []string
	)
	for _, d := range diffs {
		words := strings.Fields(d.Text)
		if len(words) == 0 {
			continue
		}
		text := strings.Join(words, " ")
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			inline = append(inline, text)
		case diffmatchpatch.DiffDelete:
			out.Removed = append(out.Removed, words...)
			inline = append(inline, g.colorize("[-"+text+"-]", color.FgRed))
		case diffmatchpatch.DiffInsert:
			out.Added = append(out.Added, words...)
			inline = append(inline, g.colorize("{+"+text+"+}", color.FgGreen))
		}
	}
	out.Inline = strings.Join(inline, " ")
	return out
}

func joinLines(words []string) string {
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, "\n") + "\n"
}

func (g *Generator) colorize(text string, attr color.Attribute) string {
	if !g.colorEnabled {
		return text
	}
	return color.New(attr).Sprint(text)
}
