// Package tsstrip implements a regex-driven TypeScript-to-JavaScript type
// stripper. It is not a type checker: it removes syntax that has no runtime
// meaning (type annotations, interfaces, generics, "as" casts, "type"
// aliases) and leaves everything else untouched.
package tsstrip

import (
	"fmt"
	"regexp"
	"strings"
)

// literalPlaceholder guards string/template literal contents from the
// stripping passes below, so a colon or angle bracket inside a string is
// never mistaken for type syntax.
var (
	literalPattern = regexp.MustCompile("(`(?:\\\\.|[^`\\\\])*`)|(\"(?:\\\\.|[^\"\\\\])*\")|('(?:\\\\.|[^'\\\\])*')")

	importTypePattern   = regexp.MustCompile(`(?m)^\s*import\s+type\s+.*?;?\s*$`)
	exportTypePattern   = regexp.MustCompile(`(?m)^\s*export\s+type\s+\w+[^;]*;`)
	exportTypeBracePattern = regexp.MustCompile(`(?m)^\s*export\s+type\s*\{[^}]*\}\s*(?:from\s*\S+)?;?\s*$`)
	interfacePattern    = regexp.MustCompile(`(?s)\binterface\s+\w+(?:<[^>{]*>)?\s*(?:extends\s+[^{]+)?\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	typeAliasPattern    = regexp.MustCompile(`(?m)^\s*type\s+\w+(?:<[^=]*>)?\s*=\s*[^;]+;`)
	enumConstPattern    = regexp.MustCompile(`\bdeclare\s+`)
	asCastPattern       = regexp.MustCompile(`\s+as\s+(?:const|[A-Za-z_$][\w.$]*(?:<[^>]*>)?(?:\[\])?)`)
	satisfiesPattern    = regexp.MustCompile(`\s+satisfies\s+(?:[A-Za-z_$][\w.$]*(?:<[^>]*>)?(?:\[\])?)`)
	angleAssertionPattern = regexp.MustCompile(`([=(,]\s*|\breturn\s+)<[A-Za-z_$][\w$.]*>([A-Za-z_$(])`)
	nonNullPattern      = regexp.MustCompile(`([)\]\w$])!([\s.,;)\]}]|$)`)
	genericCallPattern  = regexp.MustCompile(`([A-Za-z_$][\w$]*)<[A-Za-z_$][\w$<>,\s\[\]]*>(\()`)
	paramTypePattern    = regexp.MustCompile(`([A-Za-z_$][\w$]*\??)\s*:\s*[A-Za-z_$][\w$.\[\]<>, |&]*([,)=])`)
	returnTypePattern   = regexp.MustCompile(`\)\s*:\s*[A-Za-z_$][\w$.\[\]<>, |&]*(\s*\{)`)
	accessModifierPattern = regexp.MustCompile(`\b(public|private|protected|readonly)\s+`)
	importBracesPattern = regexp.MustCompile(`(?m)^(\s*import\s*\{)([^}]*)(\}\s*from\s*\S+;?)\s*$`)
	inlineTypeSpecifierPattern = regexp.MustCompile(`\btype\s+`)
	blankLinesPattern   = regexp.MustCompile(`\n{3,}`)
	trailingWSPattern   = regexp.MustCompile(`[ \t]+\n`)
)

// Strip converts TypeScript source to plain JavaScript. It is idempotent:
// Strip(Strip(src)) == Strip(src) for any valid input, since every pass only
// removes syntax that cannot reappear once removed.
func Strip(src string) (string, error) {
	literals, masked := maskLiterals(src)

	masked = importTypePattern.ReplaceAllString(masked, "")
	masked = exportTypeBracePattern.ReplaceAllString(masked, "")
	masked = exportTypePattern.ReplaceAllString(masked, "")
	masked = interfacePattern.ReplaceAllString(masked, "")
	masked = typeAliasPattern.ReplaceAllString(masked, "")
	masked = enumConstPattern.ReplaceAllString(masked, "")
	masked = asCastPattern.ReplaceAllString(masked, "")
	masked = satisfiesPattern.ReplaceAllString(masked, "")
	masked = angleAssertionPattern.ReplaceAllString(masked, "${1}${2}")
	masked = nonNullPattern.ReplaceAllString(masked, "${1}${2}")
	masked = genericCallPattern.ReplaceAllString(masked, "$1$2")
	masked = accessModifierPattern.ReplaceAllString(masked, "")
	masked = returnTypePattern.ReplaceAllString(masked, ")$1")
	masked = stripParamTypes(masked)
	masked = stripInlineImportTypes(masked)

	masked = blankLinesPattern.ReplaceAllString(masked, "\n\n")
	masked = trailingWSPattern.ReplaceAllString(masked, "\n")

	return unmaskLiterals(masked, literals), nil
}

// stripParamTypes repeatedly applies paramTypePattern until no further
// parameter-type annotation remains, since adjacent annotations
// ("a: Foo, b: Bar") overlap the regexp engine's single pass.
func stripParamTypes(s string) string {
	for {
		next := paramTypePattern.ReplaceAllString(s, "${1}${2}")
		if next == s {
			return next
		}
		s = next
	}
}

// stripInlineImportTypes removes a `type` specifier inside an ordinary
// import's brace list ("import { type Foo, Bar } from '...'"), leaving the
// value import untouched. Whole-line "import type ..." statements are
// already gone by the time this runs.
func stripInlineImportTypes(s string) string {
	return importBracesPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := importBracesPattern.FindStringSubmatch(m)
		inner := inlineTypeSpecifierPattern.ReplaceAllString(parts[2], "")
		return parts[1] + inner + parts[3]
	})
}

func maskLiterals(src string) ([]string, string) {
	var literals []string
	masked := literalPattern.ReplaceAllStringFunc(src, func(m string) string {
		idx := len(literals)
		literals = append(literals, m)
		return fmt.Sprintf("\x00LIT%d\x00", idx)
	})
	return literals, masked
}

var placeholderPattern = regexp.MustCompile(`\x00LIT(\d+)\x00`)

func unmaskLiterals(s string, literals []string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		var idx int
		fmt.Sscanf(m, "\x00LIT%d\x00", &idx)
		if idx < 0 || idx >= len(literals) {
			return m
		}
		return literals[idx]
	})
}

// StripIsIdempotent reports whether stripping src twice yields the same
// result as stripping it once. Exported for use by callers that want a
// cheap runtime self-check without importing the test package.
func StripIsIdempotent(src string) bool {
	once, err := Strip(src)
	if err != nil {
		return false
	}
	twice, err := Strip(once)
	if err != nil {
		return false
	}
	return strings.Compare(once, twice) == 0
}
