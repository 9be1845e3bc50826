// Package refine runs the per-test-case refinement loop: query, score,
// propose a fix, re-query, for a bounded number of rounds.
package refine

import (
	"errors"
	"fmt"
	"time"
)

// Options bound the loop. Zero or negative values are replaced by defaults.
type Options struct {
	GoodThreshold float64
	MaxRounds     int
	TopK          int
	QueryTimeout  time.Duration
	Concurrency   int
}

// DefaultOptions returns threshold 0.67, five rounds, top 3, four workers.
func DefaultOptions() Options {
	return Options{
		GoodThreshold: 0.67,
		MaxRounds:     5,
		TopK:          3,
		QueryTimeout:  45 * time.Second,
		Concurrency:   4,
	}
}

// ErrInvalidOptions wraps every option validation failure.
var ErrInvalidOptions = errors.New("invalid refinement options")

// Validate rejects options the loop cannot run with.
func (o Options) Validate() error {
	switch {
	case o.GoodThreshold <= 0 || o.GoodThreshold > 1:
		return fmt.Errorf("%w: good threshold %.3f outside (0,1]", ErrInvalidOptions, o.GoodThreshold)
	case o.MaxRounds < 1:
		return fmt.Errorf("%w: max rounds must be at least 1, got %d", ErrInvalidOptions, o.MaxRounds)
	case o.TopK < 1:
		return fmt.Errorf("%w: top-k must be at least 1, got %d", ErrInvalidOptions, o.TopK)
	case o.Concurrency < 0:
		return fmt.Errorf("%w: concurrency must not be negative, got %d", ErrInvalidOptions, o.Concurrency)
	}
	return nil
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.GoodThreshold <= 0 {
		o.GoodThreshold = def.GoodThreshold
	}
	if o.MaxRounds < 1 {
		o.MaxRounds = def.MaxRounds
	}
	if o.TopK < 1 {
		o.TopK = def.TopK
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = def.QueryTimeout
	}
	if o.Concurrency < 1 {
		o.Concurrency = def.Concurrency
	}
	return o
}
