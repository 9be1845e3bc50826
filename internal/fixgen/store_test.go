package fixgen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftprobe/internal/domain/catalog"
)

func TestPromptFileFeedsHeuristic(t *testing.T) {
	dir := t.TempDir()
	req := retroRequest(t)

	path, err := SavePrompt(dir, "T1", BuildPayload(req))
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# SYSTEM")
	assert.Contains(t, string(content), "# USER INPUT")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("nothing here"), 0o644))

	prompts, err := LoadPrompts(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "T1", prompts[0].ID)

	rebuilt, err := prompts[0].Payload.Request(prompts[0].ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, req.Round.DriftReasons, rebuilt.Round.DriftReasons)

	fix, err := NewHeuristicGenerator(DefaultHeuristicConfig()).Propose(context.Background(), rebuilt)
	require.NoError(t, err)
	assert.Contains(t, fix.ExcludeCategories, "Chocolate")
}

func TestSaveAndLoadFixes(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fixes")
	fix := catalog.Fix{
		RevisedQueryText:      "q",
		MustHaveTokens:        []string{"kit"},
		NegativeTokens:        []string{},
		IncludeCategories:     []string{},
		ExcludeCategories:     []string{"Beauty"},
		Confidence:            0.6,
		ExampleTitlesExpected: []string{},
	}
	path, err := SaveFix(dir, "case 7/b", fix)
	require.NoError(t, err)
	assert.Equal(t, "case_7_b.json", filepath.Base(path))

	fixes, err := LoadFixes(dir)
	require.NoError(t, err)
	require.Contains(t, fixes, FileStem("case 7/b"))
	assert.Equal(t, []string{"kit"}, fixes["case_7_b"].MustHaveTokens)

	missing, err := LoadFixes(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestParsePromptMarkdownWithoutBlock(t *testing.T) {
	_, err := ParsePromptMarkdown([]byte("# SYSTEM\n\nhello"))
	require.ErrorIs(t, err, ErrNoPayload)
}

func TestPromptRecorderWritesPromptInsteadOfFix(t *testing.T) {
	dir := t.TempDir()
	rec := NewPromptRecorder(dir)

	_, err := rec.Resolve(context.Background(), retroRequest(t))
	require.ErrorIs(t, err, ErrPromptRecorded)
	require.Len(t, rec.Paths(), 1)

	prompts, err := LoadPrompts(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "T1", prompts[0].ID)
}
