package splitter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxNameLen caps sanitized base names, in runes.
const DefaultMaxNameLen = 200

// MaxNameBytes caps base names in bytes whatever the rune limit, leaving
// room for "_partNN.pdf" under the common 255-byte file name limit.
const MaxNameBytes = 240

const fallbackName = "untitled"

// Sanitize turns a section or document name into a file-system safe base
// name: characters illegal in file names, control characters and
// whitespace become "_", and the result is cut to maxLen runes and at most
// MaxNameBytes bytes, never inside a character.
func Sanitize(name string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLen
	}
	name = strings.TrimSpace(name)
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case strings.ContainsRune(`\/:*?"<>|`, r), unicode.IsControl(r), unicode.IsSpace(r):
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 || strings.Trim(string(out), "._") == "" {
		return fallbackName
	}
	return truncate(string(out), maxLen, MaxNameBytes)
}

// truncate cuts s to at most maxRunes runes and maxBytes bytes.
func truncate(s string, maxRunes, maxBytes int) string {
	if maxRunes <= 0 || maxBytes <= 0 {
		return ""
	}
	runes, size := 0, 0
	for i, r := range s {
		if runes == maxRunes || size+utf8.RuneLen(r) > maxBytes {
			return s[:i]
		}
		runes++
		size += utf8.RuneLen(r)
	}
	return s
}

// PartFileName renders the output file name of one chunk.
func PartFileName(base string, part int) string {
	return fmt.Sprintf("%s_part%02d.pdf", base, part)
}

// Namer hands out collision-free base names within one run.
type Namer struct {
	maxLen int
	used   map[string]int
}

func NewNamer(maxLen int) *Namer {
	if maxLen <= 0 {
		maxLen = DefaultMaxNameLen
	}
	return &Namer{maxLen: maxLen, used: make(map[string]int)}
}

// Base sanitizes name and, when another section of the run already took
// the result, appends "_2", "_3", ... so outputs never overwrite each other.
// The base is shortened first when the suffix would push it past the limits.
func (n *Namer) Base(name string) string {
	base := Sanitize(name, n.maxLen)
	key := strings.ToLower(base)
	n.used[key]++
	if count := n.used[key]; count > 1 {
		for {
			suffix := fmt.Sprintf("_%d", count)
			candidate := truncate(base, n.maxLen-len(suffix), MaxNameBytes-len(suffix)) + suffix
			ckey := strings.ToLower(candidate)
			if n.used[ckey] == 0 {
				n.used[ckey] = 1
				return candidate
			}
			count++
		}
	}
	return base
}
