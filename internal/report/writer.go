package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"giftprobe/internal/domain/catalog"
	gperrors "giftprobe/internal/errors"
	"giftprobe/internal/logging"
	jsonx "giftprobe/internal/shared/json"
)

// Output file names inside the output directory.
const (
	FileResultsFlat   = "results_flat.csv"
	FileReport        = "report.csv"
	FileURLs          = "urls.txt"
	FileSummary       = "summary_metrics.csv"
	FileMarkdown      = "report.md"
	FileHumanTemplate = "eval_for_human_scoring.csv"
	FileRun           = "run.json"
)

// Writer writes every report for a run into one directory.
type Writer struct {
	dir         string
	groupedURLs bool
	logger      logging.Logger
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string, groupedURLs bool, logger logging.Logger) *Writer {
	return &Writer{dir: dir, groupedURLs: groupedURLs, logger: logging.OrNop(logger)}
}

// WriteAll writes all outputs and returns the paths written, in order.
func (w *Writer) WriteAll(run catalog.Run) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	summary := Summarize(run)
	outputs := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FileResultsFlat, func(out io.Writer) error { return WriteResultsFlat(out, run) }},
		{FileReport, func(out io.Writer) error { return WriteReport(out, run) }},
		{FileURLs, func(out io.Writer) error { return WriteURLs(out, run, w.groupedURLs) }},
		{FileSummary, func(out io.Writer) error { return WriteSummary(out, summary) }},
		{FileMarkdown, func(out io.Writer) error { return WriteMarkdown(out, run, summary) }},
		{FileHumanTemplate, func(out io.Writer) error { return WriteHumanTemplate(out, run) }},
		{FileRun, func(out io.Writer) error { return jsonx.EncodeIndent(out, run) }},
	}

	paths := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(w.dir, o.name)
		if err := w.writeFile(path, o.write); err != nil {
			return paths, err
		}
		w.logger.Debug("wrote %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteURLsFile writes only urls.txt.
func (w *Writer) WriteURLsFile(run catalog.Run) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, FileURLs)
	return path, w.writeFile(path, func(out io.Writer) error { return WriteURLs(out, run, w.groupedURLs) })
}

// renameRetry covers a reader such as `giftprobe serve` briefly holding the
// destination open on platforms where that blocks a rename.
var renameRetry = gperrors.RetryConfig{MaxAttempts: 3, BaseDelay: 20 * time.Millisecond, MaxDelay: 200 * time.Millisecond}

func (w *Writer) writeFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	err := gperrors.Retry(context.Background(), renameRetry, func(context.Context) error {
		return renameFile(tmp, path)
	}, w.logger)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// renameFile is swapped in tests.
var renameFile = func(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return gperrors.NewTransientError(err, "rename "+filepath.Base(to))
	}
	return nil
}

// LoadRun reads a run.json.
func LoadRun(path string) (catalog.Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return catalog.Run{}, err
	}
	var run catalog.Run
	if err := jsonx.Unmarshal(data, &run); err != nil {
		return catalog.Run{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return run, nil
}
