package queryspec

import (
	"fmt"
	"strings"
)

// Placeholder is the token an expression template uses to reference the
// resolved column.
const Placeholder = "{field}"

// allowedFuncs is the positive whitelist of functions permitted inside
// expression templates. Expression strings are the primary injection
// surface, so anything not listed here is rejected - this must stay a
// whitelist, never a blacklist.
var allowedFuncs = map[string]bool{
	"ABS":   true,
	"ROUND": true,
	"CEIL":  true,
	"FLOOR": true,
	"SQRT":  true,
	"POW":   true,
}

// CheckExpression validates an expression template against the whitelist.
//
// Permitted tokens: the {field} placeholder, numeric literals, the
// functions ABS/ROUND/CEIL/FLOOR/SQRT/POW (case-insensitive), the operators
// + - * /, parentheses, commas and whitespace. Any other token yields a
// *ValidationError with ErrCodeDisallowedToken. String literals are not
// permitted at all: values belong in parameters, not in templates.
func CheckExpression(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return &ValidationError{
			Code:    ErrCodeBadAggregate,
			Message: "empty expression template",
		}
	}

	s := expr
	for len(s) > 0 {
		c := s[0]
		switch {
		case c == ' ' || c == '\t':
			s = s[1:]
		case c == '+' || c == '-' || c == '*' || c == '/' ||
			c == '(' || c == ')' || c == ',':
			s = s[1:]
		case c == '{':
			if !strings.HasPrefix(s, Placeholder) {
				return disallowed(expr, brace(s))
			}
			s = s[len(Placeholder):]
		case c >= '0' && c <= '9':
			s = s[numberLen(s):]
		case isAlpha(c):
			n := identLen(s)
			word := s[:n]
			if !allowedFuncs[strings.ToUpper(word)] {
				return disallowed(expr, word)
			}
			s = s[n:]
		default:
			return disallowed(expr, string(c))
		}
	}
	return nil
}

func disallowed(expr, token string) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeDisallowedToken,
		Message: fmt.Sprintf("expression %q contains a token outside the whitelist", expr),
		Token:   token,
	}
}

// brace returns the brace-delimited token at the head of s, for error text.
func brace(s string) string {
	if i := strings.IndexByte(s, '}'); i >= 0 {
		return s[:i+1]
	}
	return s
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func identLen(s string) int {
	i := 0
	for i < len(s) && (isAlpha(s[i]) || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	return i
}

func numberLen(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	// Optional decimal part.
	if i < len(s) && s[i] == '.' && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
	}
	return i
}
