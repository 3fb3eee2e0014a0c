// Package symbolmask hides punctuation/symbol/digit/emoji runs from the
// translation model and restores them afterward. It generalizes a
// numbered-marker protect/restore scheme (as used to shield HTML tags and
// code spans with [PHn] markers) to per-character maskable runs with a
// fuzzy, bounded restoration scheme.
package symbolmask

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

const (
	maskPrefix = "⟪MSK"
	maskSuffix = "⟫"
)

// Options controls which character classes are masked.
type Options struct {
	Enabled    bool
	MaskDigits bool
	MaskPunct  bool
	MaskEmoji  bool
}

// Log is the ordered list of original segments masked out of one text,
// indexed by mask token number.
type Log []string

var emojiRanges = [][2]rune{
	{0x1F300, 0x1FAFF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x1F900, 0x1F9FF},
}

func isEmoji(r rune) bool {
	for _, rg := range emojiRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return unicode.Is(unicode.So, r)
}

func isMaskable(r rune, opts Options) bool {
	if opts.MaskDigits && unicode.IsDigit(r) {
		return true
	}
	if opts.MaskPunct && (unicode.IsPunct(r) || unicode.IsSymbol(r)) {
		return true
	}
	if opts.MaskEmoji && isEmoji(r) {
		return true
	}
	return false
}

func token(k int) string {
	return fmt.Sprintf("%s%d%s", maskPrefix, k, maskSuffix)
}

// Mask replaces maximal runs of maskable characters with sentinel tokens
// ⟪MSKk⟫ in emission order, and returns the masked text plus a Log holding
// the original segment for each k. If masking is disabled, Mask is the
// identity function and returns a nil Log.
func Mask(text string, opts Options) (string, Log) {
	if !opts.Enabled || text == "" {
		return text, nil
	}

	runes := []rune(text)
	var out strings.Builder
	var log Log

	i := 0
	for i < len(runes) {
		if isMaskable(runes[i], opts) {
			j := i + 1
			for j < len(runes) && isMaskable(runes[j], opts) {
				j++
			}
			idx := len(log)
			log = append(log, string(runes[i:j]))
			out.WriteString(token(idx))
			i = j
			continue
		}
		out.WriteRune(runes[i])
		i++
	}

	return out.String(), log
}

// Unmask restores mask tokens in text with their original segments per
// log, in index order. For each index it tries, in order: an exact-match
// token, a quoted/bracketed variant, a bare fuzzy variant, and otherwise
// leaves the token unrestored (best-effort). If masking is disabled, Unmask
// is the identity function.
func Unmask(text string, log Log, opts Options) string {
	if !opts.Enabled || len(log) == 0 {
		return text
	}

	out := text
	for idx, orig := range log {
		exact := token(idx)
		if pos := strings.Index(out, exact); pos >= 0 {
			out = out[:pos] + orig + out[pos+len(exact):]
			continue
		}

		if replaced, ok := replaceQuotedVariant(out, idx, orig); ok {
			out = replaced
			continue
		}

		if replaced, ok := replaceBareVariant(out, idx, orig); ok {
			out = replaced
			continue
		}
		// Best-effort: leave unrestored.
	}
	return out
}

var quotePairs = [][2]string{
	{`"`, `"`}, {`'`, `'`}, {"«", "»"}, {"⟪", "⟫"}, {"[", "]"}, {"(", ")"},
}

// replaceQuotedVariant matches one of a small set of quoting/bracketing
// characters around a case-insensitive MSK token with optional internal
// whitespace, e.g. `"MSK 3"`, `[msk3]`, `«MSK3»`.
func replaceQuotedVariant(text string, idx int, orig string) (string, bool) {
	for _, pair := range quotePairs {
		pattern := regexp.MustCompile(
			regexp.QuoteMeta(pair[0]) + `(?i)msk\s*` + strconv.Itoa(idx) + `(?-i)` + regexp.QuoteMeta(pair[1]),
		)
		if loc := pattern.FindStringIndex(text); loc != nil {
			return text[:loc[0]] + orig + text[loc[1]:], true
		}
	}
	return text, false
}

// replaceBareVariant matches a case-insensitive MSK token with optional
// internal whitespace and no surrounding quote/bracket, guarding against
// MSK1 stealing MSK12 by requiring the index not be followed by another
// digit.
func replaceBareVariant(text string, idx int, orig string) (string, bool) {
	pattern := regexp.MustCompile(`(?i)msk\s*` + strconv.Itoa(idx) + `\D`)
	loc := pattern.FindStringIndex(text)
	if loc == nil {
		// Try end-of-string match (no trailing char to check).
		endPattern := regexp.MustCompile(`(?i)msk\s*` + strconv.Itoa(idx) + `$`)
		if eloc := endPattern.FindStringIndex(text); eloc != nil {
			return text[:eloc[0]] + orig + text[eloc[1]:], true
		}
		return text, false
	}
	// loc[1] includes the trailing non-digit guard char; keep it.
	return text[:loc[0]] + orig + text[loc[1]-1:], true
}
