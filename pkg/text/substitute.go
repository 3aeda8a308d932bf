// Package text resolves {variable} placeholder tokens in template
// content and path segments against a flat variable mapping.
package text

import (
	"sort"
	"strings"
)

// Result holds the outcome of a substitution pass.
type Result struct {
	// Content is the input with every resolvable token replaced.
	Content string

	// Unresolved lists the names of tokens that had no mapping, each
	// name once, sorted.
	Unresolved []string

	// ReplacementCount is the number of tokens that were replaced.
	ReplacementCount int
}

// Substitute scans content for {identifier} tokens and replaces each one
// whose identifier appears in vars with its mapped value. Replacement is
// verbatim and single-pass: a substituted value is never re-scanned, so
// values containing brace syntax cannot trigger further expansion.
// Tokens with no mapping are left untouched and reported in Unresolved.
// The function is pure and safe to call repeatedly.
func Substitute(content string, vars map[string]string) Result {
	var b strings.Builder
	b.Grow(len(content))

	seen := map[string]bool{}
	var unresolved []string
	count := 0

	i := 0
	for i < len(content) {
		c := content[i]
		if c != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		close := strings.IndexByte(content[i+1:], '}')
		if close < 0 {
			b.WriteString(content[i:])
			break
		}

		name := content[i+1 : i+1+close]
		if !isIdentifier(name) {
			// Not a token. Emit the brace and rescan from the next
			// byte so nested tokens like "{a{b}" still resolve.
			b.WriteByte('{')
			i++
			continue
		}

		if value, ok := vars[name]; ok {
			b.WriteString(value)
			count++
		} else {
			b.WriteString(content[i : i+close+2])
			if !seen[name] {
				seen[name] = true
				unresolved = append(unresolved, name)
			}
		}
		i += close + 2
	}

	sort.Strings(unresolved)
	return Result{
		Content:          b.String(),
		Unresolved:       unresolved,
		ReplacementCount: count,
	}
}

// ExtractVariables returns the sorted names of every {identifier} token
// in content. Used at scan time to document a file's template variables.
func ExtractVariables(content string) []string {
	return Substitute(content, nil).Unresolved
}

// isIdentifier reports whether s is a valid token name: a letter or
// underscore followed by letters, digits, or underscores.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
