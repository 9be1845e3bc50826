// Package fixgen proposes structured query fixes for poorly scoring rounds.
// A deterministic heuristic is always available; an LLM-backed generator can
// sit in front of it behind a fallback chain.
package fixgen

import (
	"context"

	"giftprobe/internal/domain/catalog"
)

// Fix sources recorded on rounds and in metrics.
const (
	SourceHeuristic = "heuristic"
	SourceLLM       = "llm"
	SourceSaved     = "saved"
)

// Request is everything a generator may look at.
type Request struct {
	Case    catalog.TestCase
	Round   catalog.RoundResult
	Policy  *catalog.CategoryPolicy
	Anchors []catalog.StyleAnchor
}

// Generator proposes the next fix for a test case.
type Generator interface {
	Propose(ctx context.Context, req Request) (catalog.Fix, error)
	Name() string
}

// Proposal is a validated fix and the generator that produced it.
type Proposal struct {
	Fix    catalog.Fix
	Source string
}
