package config

import (
	"maps"
	"slices"
	"strings"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dustin/go-humanize"
)

// Profiles maps a target profile name to its byte budget.
type Profiles map[string]int64

// DefaultProfiles returns the built-in target profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		"chatgpt":    20 << 20,
		"notebooklm": 200 << 20,
	}
}

// Budget returns the byte budget of the named profile.
func (p Profiles) Budget(name string) (int64, error) {
	budget, ok := p[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, apperr.Config("unknown profile %q (available: %s)", name, strings.Join(p.Names(), ", "))
	}
	if budget <= 0 {
		return 0, apperr.Config("profile %q has a non-positive budget", name)
	}
	return budget, nil
}

// Names returns the profile names in sorted order.
func (p Profiles) Names() []string {
	return slices.Sorted(maps.Keys(p))
}

// Merge returns a copy of p with the entries of other added or replaced.
func (p Profiles) Merge(other Profiles) Profiles {
	out := maps.Clone(p)
	if out == nil {
		out = Profiles{}
	}
	maps.Copy(out, other)
	return out
}

// ParseProfiles parses "name=size,name=size" where size is a byte count
// such as "50MiB" or "1048576".
func ParseProfiles(s string) (Profiles, error) {
	out := Profiles{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, size, ok := strings.Cut(entry, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		if !ok || name == "" {
			return nil, apperr.Config("invalid profile entry %q, want name=size", entry)
		}
		n, err := humanize.ParseBytes(strings.TrimSpace(size))
		if err != nil {
			return nil, apperr.Config("invalid size for profile %q: %v", name, err)
		}
		if n == 0 {
			return nil, apperr.Config("profile %q has a zero budget", name)
		}
		out[name] = int64(n)
	}
	return out, nil
}
