package fixgen

import (
	"context"
	"errors"

	"giftprobe/internal/domain/catalog"
	"giftprobe/internal/logging"
	"giftprobe/internal/observability"
)

// ErrNoValidFix is returned when neither the primary generator nor the
// heuristic produced a fix that passes validation.
var ErrNoValidFix = errors.New("no valid fix")

// Chain tries the primary generator, then falls back to the heuristic once.
// Primary failures are never surfaced to the caller.
type Chain struct {
	primary   Generator
	heuristic Generator
	logger    logging.Logger
	metrics   *observability.Metrics
}

// NewChain builds a fallback chain. primary may be nil, in which case only
// the heuristic runs.
func NewChain(primary Generator, heuristic Generator, logger logging.Logger, metrics *observability.Metrics) *Chain {
	if heuristic == nil {
		heuristic = NewHeuristicGenerator(DefaultHeuristicConfig())
	}
	return &Chain{
		primary:   primary,
		heuristic: heuristic,
		logger:    logging.OrNop(logger),
		metrics:   metrics,
	}
}

// Resolve returns a validated fix with its source, or ErrNoValidFix.
func (c *Chain) Resolve(ctx context.Context, req Request) (Proposal, error) {
	if c.primary != nil {
		if fix, ok := c.try(ctx, c.primary, req); ok {
			return Proposal{Fix: fix, Source: c.primary.Name()}, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	if fix, ok := c.try(ctx, c.heuristic, req); ok {
		return Proposal{Fix: fix, Source: c.heuristic.Name()}, nil
	}
	return Proposal{}, ErrNoValidFix
}

func (c *Chain) try(ctx context.Context, gen Generator, req Request) (catalog.Fix, bool) {
	fix, err := gen.Propose(ctx, req)
	if err != nil {
		c.metrics.IncFix(gen.Name(), "error")
		c.logger.Debug("[%s] %s fix failed: %v", req.Case.ID, gen.Name(), err)
		return catalog.Fix{}, false
	}
	if err := Validate(fix, req.Policy, req.Round.Facets, req.Round.DriftReasons); err != nil {
		c.metrics.IncFix(gen.Name(), "invalid")
		c.logger.Debug("[%s] %s fix rejected: %v", req.Case.ID, gen.Name(), err)
		return catalog.Fix{}, false
	}
	c.metrics.IncFix(gen.Name(), "accepted")
	return fix, true
}
