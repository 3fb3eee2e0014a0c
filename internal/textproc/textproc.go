// Package textproc classifies noise inputs, splits text into sentences,
// packs sentences into chunks, and strips translation-model artifacts. It
// generalizes a paragraph → sentence → whitespace boundary split-point
// search into a sentence-then-chunk packing pipeline.
package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options carries the subset of config.Snapshot that textproc needs so the
// package has no import-time dependency on the config package.
type Options struct {
	MinChars      int
	MinAlnumRatio float64
	MaxSentenceChars int
}

// StripControl removes code points below 0x20 except \t \n \r, then
// normalizes the result to NFC so combining-mark variants of the same
// visible text compare and count runes identically.
func StripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// IsNoise reports whether s, after control-stripping and trimming, is too
// short, has no non-space characters, has no alphanumerics, or falls below
// the configured alphanumeric-to-non-space ratio.
func IsNoise(s string, opts Options) bool {
	s = strings.TrimSpace(StripControl(s))
	if len([]rune(s)) < opts.MinChars {
		return true
	}

	var nonSpace, alnum int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}

	if nonSpace == 0 || alnum == 0 {
		return true
	}

	ratio := float64(alnum) / float64(nonSpace)
	return ratio < opts.MinAlnumRatio
}

// isSentenceEnder reports whether r is sentence-ending punctuation
// ([.!?…]). SplitSentences cuts after a run of these followed by
// whitespace, keeping the punctuation and dropping the whitespace.
func isSentenceEnder(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

// SplitSentences splits s into sentences:
//  1. strip controls, trim
//  2. cut after runs of [.!?…] followed by whitespace
//  3. if no boundary found, the whole string is one sentence
//  4. sentences longer than opts.MaxSentenceChars are re-split at
//     commas/semicolons/colons/whitespace, greedily packed to that bound
//  5. empty entries are dropped
func SplitSentences(s string, opts Options) []string {
	s = strings.TrimSpace(StripControl(s))
	if s == "" {
		return nil
	}

	runes := []rune(s)
	var sentences []string
	start := 0
	i := 0
	for i < len(runes) {
		if isSentenceEnder(runes[i]) {
			j := i
			for j < len(runes) && isSentenceEnder(runes[j]) {
				j++
			}
			if j < len(runes) && unicode.IsSpace(runes[j]) {
				sentences = append(sentences, string(runes[start:j]))
				// skip the whitespace run
				for j < len(runes) && unicode.IsSpace(runes[j]) {
					j++
				}
				start = j
				i = j
				continue
			}
			i = j
			continue
		}
		i++
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	if len(sentences) == 0 {
		sentences = []string{s}
	}

	if opts.MaxSentenceChars > 0 {
		var bounded []string
		for _, sent := range sentences {
			bounded = append(bounded, enforceMaxChars(sent, opts.MaxSentenceChars)...)
		}
		sentences = bounded
	}

	var out []string
	for _, sent := range sentences {
		sent = strings.TrimSpace(sent)
		if sent != "" {
			out = append(out, sent)
		}
	}
	return out
}

// enforceMaxChars splits a sentence exceeding maxChars at commas,
// semicolons, colons, or whitespace, greedily packing tokens into buffers
// of at most maxChars runes.
func enforceMaxChars(sentence string, maxChars int) []string {
	if len([]rune(sentence)) <= maxChars {
		return []string{sentence}
	}

	tokens := tokenizeOnSeparators(sentence)

	var out []string
	var buf strings.Builder
	bufLen := 0
	for _, tok := range tokens {
		tokLen := len([]rune(tok))
		if bufLen > 0 && bufLen+tokLen > maxChars {
			out = append(out, buf.String())
			buf.Reset()
			bufLen = 0
		}
		if tokLen > maxChars {
			// A single token still exceeds the bound; hard-cut it.
			runes := []rune(tok)
			for len(runes) > maxChars {
				out = append(out, string(runes[:maxChars]))
				runes = runes[maxChars:]
			}
			tok = string(runes)
			tokLen = len(runes)
		}
		buf.WriteString(tok)
		bufLen += tokLen
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}

// tokenizeOnSeparators splits on commas/semicolons/colons/whitespace while
// keeping the separator attached to the preceding token, so re-joining
// tokens reconstructs the original text.
func tokenizeOnSeparators(s string) []string {
	var tokens []string
	var cur strings.Builder
	for _, r := range s {
		cur.WriteRune(r)
		if r == ',' || r == ';' || r == ':' || unicode.IsSpace(r) {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// ChunkSentences greedily packs sentences, in order, into chunks no longer
// than maxChars, joining with joinWith. A new chunk opens whenever the next
// sentence (plus the separator, if not first in the chunk) would overflow.
func ChunkSentences(sentences []string, maxChars int, joinWith string) []string {
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, joinWith))
			cur = nil
			curLen = 0
		}
	}

	for _, sent := range sentences {
		sentLen := len([]rune(sent))
		add := sentLen
		if len(cur) > 0 {
			add += len([]rune(joinWith))
		}
		if maxChars > 0 && curLen+add > maxChars && len(cur) > 0 {
			flush()
		}
		cur = append(cur, sent)
		if len(cur) == 1 {
			curLen = sentLen
		} else {
			curLen += len([]rune(joinWith)) + sentLen
		}
	}
	flush()
	return chunks
}

// RemoveNewRepeats removes maximal runs (length ≥ 2) of an identical
// non-alphanumeric, non-space symbol in out, when that symbol does not
// appear anywhere in src — a defense against translators that hallucinate
// punctuation runs. Runs of 3+ whitespace left behind collapse to a double
// space.
func RemoveNewRepeats(src, out string) string {
	srcRunes := map[rune]bool{}
	for _, r := range src {
		srcRunes[r] = true
	}

	runes := []rune(out)
	var b strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		j := i + 1
		for j < len(runes) && runes[j] == r {
			j++
		}
		runLen := j - i
		if runLen >= 2 && isSymbolRune(r) && !srcRunes[r] {
			// Drop the whole run.
			i = j
			continue
		}
		b.WriteString(string(runes[i:j]))
		i = j
	}

	return collapseWhitespaceRuns(b.String())
}

func isSymbolRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func collapseWhitespaceRuns(s string) string {
	runes := []rune(s)
	var b strings.Builder
	i := 0
	for i < len(runes) {
		r := runes[i]
		if unicode.IsSpace(r) {
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			runLen := j - i
			if runLen >= 3 {
				b.WriteString("  ")
			} else {
				b.WriteString(string(runes[i:j]))
			}
			i = j
			continue
		}
		b.WriteRune(r)
		i++
	}
	return b.String()
}

// StripArtifacts removes common translation-model output artifacts: a
// single matching pair of wrapping quotes added by some models around the
// whole output. Narrowed to the one artifact seq2seq translation models (as
// opposed to chat LLMs) actually produce.
func StripArtifacts(text string) string {
	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n < 2 {
		return string(runes)
	}
	first, last := runes[0], runes[n-1]
	pairs := [][2]rune{
		{'"', '"'}, {'\'', '\''}, {'«', '»'}, {'“', '”'}, {'‘', '’'},
	}
	for _, p := range pairs {
		if first == p[0] && last == p[1] {
			return strings.TrimSpace(string(runes[1 : n-1]))
		}
	}
	return string(runes)
}
