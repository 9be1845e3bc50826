package fixgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"giftprobe/internal/domain/catalog"
	jsonx "giftprobe/internal/shared/json"
)

var (
	// ErrNoJSONObject means the model response contained no `{...}` span.
	ErrNoJSONObject = errors.New("no JSON object in response")
	// ErrMissingKeys means the object lacked one or more Fix keys.
	ErrMissingKeys = errors.New("fix is missing required keys")
)

// ParseFix decodes a model response into a Fix. Code fences and prose around
// the object are ignored and near-JSON is repaired before decoding.
func ParseFix(content string) (catalog.Fix, error) {
	raw, err := extractObject(content)
	if err != nil {
		return catalog.Fix{}, err
	}

	var fields map[string]jsonx.RawMessage
	if err := jsonx.Unmarshal([]byte(raw), &fields); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return catalog.Fix{}, fmt.Errorf("invalid fix JSON: %w", err)
		}
		raw = repaired
		if err := jsonx.Unmarshal([]byte(raw), &fields); err != nil {
			return catalog.Fix{}, fmt.Errorf("invalid fix JSON after repair: %w", err)
		}
	}

	var missing []string
	for _, key := range catalog.FixKeys {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return catalog.Fix{}, fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}

	var fix catalog.Fix
	if err := jsonx.Unmarshal([]byte(raw), &fix); err != nil {
		return catalog.Fix{}, fmt.Errorf("decode fix: %w", err)
	}
	return fix, nil
}

func extractObject(content string) (string, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	start := strings.Index(content, "{")
	if start < 0 {
		return "", ErrNoJSONObject
	}
	end := strings.LastIndex(content, "}")
	if end < start {
		// Truncated output; let the repair pass close it.
		return content[start:], nil
	}
	return content[start : end+1], nil
}
