// Package rulepack loads and validates the organization's rule pack: the
// non-negotiables and philosophy documents every recommendation is checked
// against. Malformed packs fail at load time; a turn never sees a broken
// rule configuration.
package rulepack

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/compasshq/keel/pkg/contracts"
)

// MinSupportedVersion is the oldest rule-pack schema this build accepts.
const MinSupportedVersion = ">= 1.0.0"

// Pack is the on-disk rule pack document.
type Pack struct {
	Version        string                     `yaml:"version" validate:"required"`
	NonNegotiables []contracts.NonNegotiable  `yaml:"non_negotiables" validate:"dive"`
	Philosophy     []contracts.PhilosophyItem `yaml:"philosophy" validate:"dive"`
}

// Snapshot is an immutable, validated view of a pack. A turn holds exactly
// one snapshot for its whole evaluation; refreshes produce new snapshots.
type Snapshot struct {
	Version        string
	NonNegotiables []contracts.NonNegotiable // sorted by RuleNumber ascending
	Philosophy     []contracts.PhilosophyItem
	LoadedAt       time.Time
}

// PhilosophyByType returns the items of the given type, in pack order.
func (s *Snapshot) PhilosophyByType(t contracts.PhilosophyType) []contracts.PhilosophyItem {
	var out []contracts.PhilosophyItem
	for _, item := range s.Philosophy {
		if item.Type == t {
			out = append(out, item)
		}
	}
	return out
}

var validate = validator.New()

// Parse decodes and validates a YAML rule pack. It enforces the version
// gate, struct-level constraints, and rule-number uniqueness; matcher
// expressions are compiled (and rejected) by the governance engine at wire-up.
func Parse(data []byte) (*Snapshot, error) {
	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("rulepack: parse failed: %w", err)
	}
	if err := validate.Struct(&pack); err != nil {
		return nil, fmt.Errorf("rulepack: invalid pack: %w", err)
	}

	version, err := semver.NewVersion(pack.Version)
	if err != nil {
		return nil, fmt.Errorf("rulepack: bad version %q: %w", pack.Version, err)
	}
	constraint, err := semver.NewConstraint(MinSupportedVersion)
	if err != nil {
		return nil, fmt.Errorf("rulepack: bad version constraint: %w", err)
	}
	if !constraint.Check(version) {
		return nil, fmt.Errorf("rulepack: version %s does not satisfy %s", version, MinSupportedVersion)
	}

	seen := make(map[int]string, len(pack.NonNegotiables))
	for _, nn := range pack.NonNegotiables {
		if prev, dup := seen[nn.RuleNumber]; dup {
			return nil, fmt.Errorf("rulepack: rule_number %d assigned to both %q and %q", nn.RuleNumber, prev, nn.ID)
		}
		seen[nn.RuleNumber] = nn.ID
	}

	rules := make([]contracts.NonNegotiable, len(pack.NonNegotiables))
	copy(rules, pack.NonNegotiables)
	sort.Slice(rules, func(i, j int) bool { return rules[i].RuleNumber < rules[j].RuleNumber })

	return &Snapshot{
		Version:        pack.Version,
		NonNegotiables: rules,
		Philosophy:     pack.Philosophy,
		LoadedAt:       time.Now().UTC(),
	}, nil
}
