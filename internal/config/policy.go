package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"giftprobe/internal/domain/catalog"
)

// PolicyFile is the on-disk shape of a category policy. Omitted sections
// fall back to the built-in lists.
type PolicyFile struct {
	Whitelist    []string              `yaml:"whitelist"`
	Blocklist    []string              `yaml:"blocklist"`
	StyleAnchors []catalog.StyleAnchor `yaml:"style_anchors"`
}

// Policy is the loaded, validated category policy plus its anchor table.
type Policy struct {
	Categories *catalog.CategoryPolicy
	Anchors    []catalog.StyleAnchor
}

// DefaultPolicy returns the built-in lists and anchors.
func DefaultPolicy() Policy {
	return Policy{
		Categories: catalog.DefaultCategoryPolicy(),
		Anchors:    catalog.DefaultStyleAnchors(),
	}
}

// LoadPolicy reads a policy file. An empty path yields DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	policy, err := ParsePolicy(data)
	if err != nil {
		return Policy{}, fmt.Errorf("policy %s: %w", path, err)
	}
	return policy, nil
}

// ParsePolicy decodes YAML policy data. Unknown keys are rejected, as are
// anchors without a name or triggers.
func ParsePolicy(data []byte) (Policy, error) {
	var file PolicyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}

	whitelist := file.Whitelist
	if len(whitelist) == 0 {
		whitelist = catalog.DefaultWhitelist
	}
	blocklist := file.Blocklist
	if len(blocklist) == 0 {
		blocklist = catalog.DefaultBlocklist
	}
	categories, err := catalog.NewCategoryPolicy(whitelist, blocklist)
	if err != nil {
		return Policy{}, err
	}

	anchors := file.StyleAnchors
	if len(anchors) == 0 {
		anchors = catalog.DefaultStyleAnchors()
	}
	for i, a := range anchors {
		if strings.TrimSpace(a.Name) == "" {
			return Policy{}, fmt.Errorf("%w: style anchor %d has no name", ErrInvalidConfig, i)
		}
		if len(a.Triggers) == 0 {
			return Policy{}, fmt.Errorf("%w: style anchor %q has no triggers", ErrInvalidConfig, a.Name)
		}
	}
	return Policy{Categories: categories, Anchors: catalog.CloneAnchors(anchors)}, nil
}
