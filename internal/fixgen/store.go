package fixgen

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"giftprobe/internal/domain/catalog"
	jsonx "giftprobe/internal/shared/json"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStem turns a test case id into a safe file name stem.
func FileStem(id string) string {
	stem := strings.Trim(unsafeFileChars.ReplaceAllString(strings.TrimSpace(id), "_"), "._")
	if stem == "" {
		return "case"
	}
	return stem
}

// SaveFix writes fixes/<id>.json under dir.
func SaveFix(dir, id string, fix catalog.Fix) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create fixes dir: %w", err)
	}
	var buf bytes.Buffer
	if err := jsonx.EncodeIndent(&buf, fix); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileStem(id)+".json")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write fix %s: %w", path, err)
	}
	return path, nil
}

// LoadFixes reads every *.json fix in dir keyed by file stem. A missing
// directory yields an empty map.
func LoadFixes(dir string) (map[string]catalog.Fix, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]catalog.Fix{}, nil
		}
		return nil, fmt.Errorf("read fixes dir: %w", err)
	}
	fixes := make(map[string]catalog.Fix, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		fix, err := ParseFix(string(data))
		if err != nil {
			return nil, fmt.Errorf("fix %s: %w", entry.Name(), err)
		}
		fixes[strings.TrimSuffix(entry.Name(), ".json")] = fix
	}
	return fixes, nil
}

// SavePrompt writes prompts/<id>.md under dir.
func SavePrompt(dir, id string, payload PromptPayload) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create prompts dir: %w", err)
	}
	content, err := RenderPromptMarkdown(payload)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileStem(id)+".md")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write prompt %s: %w", path, err)
	}
	return path, nil
}

// SavedPrompt is a prompt file read back from disk.
type SavedPrompt struct {
	ID      string
	Payload PromptPayload
}

// LoadPrompts reads every *.md prompt in dir in file name order. Files with
// no JSON block are skipped.
func LoadPrompts(dir string) ([]SavedPrompt, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prompts dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".md" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var prompts []SavedPrompt
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		payload, err := ParsePromptMarkdown(data)
		if err != nil {
			if errors.Is(err, ErrNoPayload) {
				continue
			}
			return nil, fmt.Errorf("prompt %s: %w", name, err)
		}
		prompts = append(prompts, SavedPrompt{ID: strings.TrimSuffix(name, ".md"), Payload: payload})
	}
	return prompts, nil
}
