// Package latex makes arbitrary user text safe for inclusion in a LaTeX
// document.
package latex

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	derrors "resoluciones/internal/errors"
	"resoluciones/internal/log"
)

// replacement pairs an unsafe character with its literal-safe LaTeX form.
type replacement struct {
	char byte
	safe string
}

// replacements is applied in order. The backslash entry is handled
// separately, see EscapeString.
var replacements = []replacement{
	{'$', `\$`},
	{'%', `\%`},
	{'&', `\&`},
	{'#', `\#`},
	{'_', `\_`},
	{'{', `\{`},
	{'}', `\}`},
	{'^', `\textasciicircum{}`},
	{'~', `\textasciitilde{}`},
	{'*', `\textasteriskcentered{}`},
	{'[', `{[}`},
	{']', `{]}`},
	{'|', `\textbar{}`},
	{'<', `\textless{}`},
	{'>', `\textgreater{}`},
}

const safeBackslash = `\textbackslash{}`

// backslashSentinel stands in for '\' while the other characters are
// replaced. U+FDD0 is a Unicode noncharacter and never appears in text.
const backslashSentinel = "\uFDD0"

var (
	unsafeChars    string
	otherReplacer  *strings.Replacer
	singlePass     *strings.Replacer
	escapedTokens  []string
	currencyAmount = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
)

func init() {
	var chars strings.Builder
	var pairs, allPairs []string
	for _, r := range replacements {
		chars.WriteByte(r.char)
		pairs = append(pairs, string(r.char), r.safe)
		escapedTokens = append(escapedTokens, r.safe)
	}
	chars.WriteByte('\\')
	unsafeChars = chars.String()

	otherReplacer = strings.NewReplacer(pairs...)
	allPairs = append(allPairs, pairs...)
	allPairs = append(allPairs, `\`, safeBackslash)
	singlePass = strings.NewReplacer(allPairs...)

	escapedTokens = append(escapedTokens, safeBackslash)
	sort.SliceStable(escapedTokens, func(i, j int) bool {
		return len(escapedTokens[i]) > len(escapedTokens[j])
	})
}

// UnsafeChars returns every character EscapeString rewrites.
func UnsafeChars() string {
	return unsafeChars
}

// EscapeString replaces every unsafe character in text with its safe form.
//
// Backslashes are swapped for a sentinel first, the remaining characters are
// replaced, and only then does the sentinel become \textbackslash{}. That way
// the backslashes introduced by other replacements are never escaped again.
func EscapeString(text string) string {
	if text == "" {
		return text
	}
	if strings.Contains(text, backslashSentinel) {
		return singlePass.Replace(text)
	}
	out := strings.ReplaceAll(text, `\`, backslashSentinel)
	out = otherReplacer.Replace(out)
	return strings.ReplaceAll(out, backslashSentinel, safeBackslash)
}

// IsFullyEscaped reports whether text contains no unsafe character outside
// an escape sequence. Escape sequences are the replacement forms produced by
// EscapeString and a backslash directly followed by an unsafe character.
func IsFullyEscaped(text string) bool {
	for i := 0; i < len(text); {
		if n := escapedTokenAt(text, i); n > 0 {
			i += n
			continue
		}
		if strings.IndexByte(unsafeChars, text[i]) >= 0 {
			return false
		}
		i++
	}
	return true
}

func escapedTokenAt(text string, i int) int {
	rest := text[i:]
	for _, tok := range escapedTokens {
		if strings.HasPrefix(rest, tok) {
			return len(tok)
		}
	}
	if len(rest) >= 2 && rest[0] == '\\' && strings.IndexByte(unsafeChars, rest[1]) >= 0 {
		return 2
	}
	return 0
}

// EscapeCurrencyAmounts escapes only the dollar sign of currency amounts such
// as $1,234.56 and leaves everything else untouched.
func EscapeCurrencyAmounts(text string) string {
	if text == "" {
		return text
	}
	return currencyAmount.ReplaceAllString(text, `\$$${1}`)
}

// Escaper is the logging, type-checking front of EscapeString.
type Escaper struct {
	logger *log.Logger
}

// NewEscaper creates an Escaper. A nil logger discards output.
func NewEscaper(logger *log.Logger) *Escaper {
	return &Escaper{logger: log.OrNop(logger).WithComponent(log.ComponentEscaper)}
}

// Escape escapes v, which must be a string.
func (e *Escaper) Escape(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		e.logger.Warn("refusing to escape non-text value", "type", fmt.Sprintf("%T", v))
		return "", derrors.Newf(derrors.CodeInvalidInputType, "expected text input, got %T", v).
			WithContext("input_type", fmt.Sprintf("%T", v))
	}
	out := EscapeString(s)
	if out != s {
		e.logger.Debug("escaped special characters", "in_len", len(s), "out_len", len(out))
	}
	return out, nil
}

// Validate logs a warning when text still carries unescaped characters. It
// never blocks rendering.
func (e *Escaper) Validate(text string) bool {
	ok := IsFullyEscaped(text)
	if !ok {
		e.logger.Warn("text contains unescaped special characters")
	}
	return ok
}
