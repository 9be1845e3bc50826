package fixgen

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrPromptRecorded is returned by PromptRecorder in place of a fix.
var ErrPromptRecorded = errors.New("prompt recorded for offline fix generation")

// PromptRecorder writes the fix prompt for each request to dir instead of
// proposing a fix, so a refinement loop stops after its first failing round.
type PromptRecorder struct {
	dir string

	mu    sync.Mutex
	paths []string
}

// NewPromptRecorder records prompts under dir.
func NewPromptRecorder(dir string) *PromptRecorder {
	return &PromptRecorder{dir: dir}
}

// Resolve saves the prompt and always fails with ErrPromptRecorded, or with
// the write error.
func (r *PromptRecorder) Resolve(_ context.Context, req Request) (Proposal, error) {
	path, err := SavePrompt(r.dir, req.Case.ID, BuildPayload(req))
	if err != nil {
		return Proposal{}, err
	}
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	return Proposal{}, ErrPromptRecorded
}

// Paths returns the written prompt files in sorted order.
func (r *PromptRecorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}
