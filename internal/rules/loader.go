// internal/rules/loader.go
package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule file modes.
const (
	ModeExtend  = "extend"
	ModeReplace = "replace"
)

// File is a rule table loaded from YAML
type File struct {
	Mode      string              `yaml:"mode"`
	Blocklist []string            `yaml:"blocklist"`
	Referral  []string            `yaml:"referral"`
	Allowlist map[string][]string `yaml:"allowlist"`
}

// LoadFile loads and validates a rule file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if f.Mode == "" {
		f.Mode = ModeExtend
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks a rule file for entries that can never match.
func Validate(f *File) error {
	switch f.Mode {
	case "", ModeExtend, ModeReplace:
	default:
		return fmt.Errorf("invalid rules mode %q: must be %s or %s", f.Mode, ModeExtend, ModeReplace)
	}
	for i, k := range f.Blocklist {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("blocklist entry %d is empty", i)
		}
	}
	for i, k := range f.Referral {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("referral entry %d is empty", i)
		}
	}
	for domain, keys := range f.Allowlist {
		if NormalizeDomain(domain) == "" {
			return fmt.Errorf("allowlist has an empty domain key")
		}
		for i, k := range keys {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("allowlist for %s: entry %d is empty", domain, i)
			}
		}
	}
	return nil
}

// Load builds the process-wide rule table. An empty path yields the built-in
// defaults. Otherwise the file either extends the defaults or replaces them,
// depending on its mode.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return FromFile(f), nil
}

// FromFile builds a RuleSet from an already validated file.
func FromFile(f *File) *RuleSet {
	if f.Mode == ModeReplace {
		return New(f.Blocklist, f.Referral, f.Allowlist)
	}

	blocklist := append(append([]string{}, DefaultBlocklist...), f.Blocklist...)
	referral := append(append([]string{}, DefaultReferral...), f.Referral...)
	allowlist := make(map[string][]string, len(DefaultAllowlist)+len(f.Allowlist))
	for d, keys := range DefaultAllowlist {
		allowlist[d] = append([]string{}, keys...)
	}
	// New merges keys that normalize to the same domain, so only exact
	// duplicates need appending here.
	for d, keys := range f.Allowlist {
		allowlist[d] = append(allowlist[d], keys...)
	}
	return New(blocklist, referral, allowlist)
}
