package regions

import (
	"strconv"
	"strings"
)

// Normalize canonicalizes region names and aliases: lower case, with runs
// of spaces, underscores and brackets folded into single dashes.
func Normalize(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	dash := false
	for _, r := range lowered {
		switch r {
		case ' ', '_', '-', '(', ')', '[', ']', '/', '.':
			dash = b.Len() > 0
			continue
		}
		if dash {
			b.WriteByte('-')
			dash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func aliasCandidates(normalized string) []string {
	candidates := []string{normalized}
	add := func(value string) {
		if value == "" {
			return
		}
		for _, existing := range candidates {
			if existing == value {
				return
			}
		}
		candidates = append(candidates, value)
	}

	trimmed := strings.TrimPrefix(normalized, "region-")
	add(trimmed)

	// "kanto-gen-1" names the region before the suffix; the suffix alone
	// never selects a region.
	if idx := strings.Index(trimmed, "-gen-"); idx > 0 {
		add(trimmed[:idx])
	}
	return candidates
}

// generationAlias parses "gen1", "gen-1", "generation-1" and "generation1".
func generationAlias(value string) (int, bool) {
	var rest string
	switch {
	case strings.HasPrefix(value, "generation"):
		rest = strings.TrimPrefix(value, "generation")
	case strings.HasPrefix(value, "gen"):
		rest = strings.TrimPrefix(value, "gen")
	default:
		return 0, false
	}
	rest = strings.TrimPrefix(rest, "-")
	gen, err := strconv.Atoi(rest)
	if err != nil || gen < 1 {
		return 0, false
	}
	return gen, true
}
