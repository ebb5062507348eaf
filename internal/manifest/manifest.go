// Package manifest extracts the non-standard "gitdependencies" declaration
// from a package descriptor.
//
// This is a narrow text scan, not a JSON parser: it tolerates malformed or
// partial descriptors and reports "no dependencies" instead of failing.
package manifest

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DescriptorFile is the descriptor name looked up inside an installed package.
const DescriptorFile = "package.json"

var (
	arrayPattern  = regexp.MustCompile(`(?s)"gitdependencies"\s*:\s*\[(.*?)\]`)
	stringPattern = regexp.MustCompile(`(?s)"gitdependencies"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ExtractGitDependencies returns the references declared under
// "gitdependencies", either as an array of strings or as one comma-separated
// string. The second result is false when the key is missing or declares
// nothing.
func ExtractGitDependencies(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}

	var inside string
	if m := arrayPattern.FindStringSubmatch(text); m != nil {
		inside = m[1]
	} else if m := stringPattern.FindStringSubmatch(text); m != nil {
		inside = unescape(m[1])
	} else {
		return nil, false
	}

	var deps []string
	for _, token := range SplitRespectingQuotes(inside) {
		if dep := trimToken(token); dep != "" {
			deps = append(deps, dep)
		}
	}

	if len(deps) == 0 {
		return nil, false
	}
	return deps, true
}

// ReadGitDependencies reads the descriptor inside resolvedPath and extracts
// its git dependencies. Any file access problem yields no dependencies.
func ReadGitDependencies(resolvedPath string) ([]string, bool) {
	if resolvedPath == "" {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(resolvedPath, DescriptorFile))
	if err != nil {
		return nil, false
	}

	return ExtractGitDependencies(string(data))
}

// SplitRespectingQuotes splits s on commas that are not inside a
// double-quoted section. Every '"' toggles the quoted state.
func SplitRespectingQuotes(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	inQuotes := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// trimToken trims whitespace and unwraps one level of surrounding quotes.
func trimToken(token string) string {
	t := strings.TrimSpace(token)
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		t = t[1 : len(t)-1]
	}
	return strings.TrimSpace(t)
}

// unescape resolves the backslash escapes that matter inside a JSON string
// body. Unknown escapes keep the escaped character.
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
