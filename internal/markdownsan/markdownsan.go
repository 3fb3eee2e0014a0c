// Package markdownsan detects markdown in translated output and fixes
// constructs that would explode downstream parsers: unbalanced brackets,
// RTL bracket flips, and excessive nesting depth. Ported from
// markdown_sanitizer.py's weighted pattern table, bracket-balance stack
// scan, RTL flip fix, depth-break, and emphasis balance logic.
package markdownsan

import (
	"regexp"
	"strings"
)

// indicator is one weighted markdown-detection pattern.
type indicator struct {
	re     *regexp.Regexp
	weight float64
	name   string
}

var indicators = []indicator{
	{regexp.MustCompile(`\[.+?\]\(.+?\)`), 1.0, "link"},
	{regexp.MustCompile(`!\[.*?\]\(.+?\)`), 1.0, "image"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+.+`), 0.9, "header"},
	{regexp.MustCompile(`(?s)` + "```" + `.*?` + "```"), 1.0, "fenced_code"},
	{regexp.MustCompile(`(?m)^\|.+\|.+\|`), 0.95, "table"},
	{regexp.MustCompile(`(?m)^\|-+\|`), 1.0, "table_separator"},
	{regexp.MustCompile(`\*\*[^*\n]+\*\*`), 0.8, "bold_asterisk"},
	{regexp.MustCompile(`__[^_\n]+__`), 0.8, "bold_underscore"},
	{regexp.MustCompile(`\*[^*\n]+\*`), 0.6, "italic_asterisk"},
	{regexp.MustCompile(`_[^_\n]+_`), 0.5, "italic_underscore"},
	{regexp.MustCompile("`[^`\n]+`"), 0.7, "inline_code"},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+\S`), 0.6, "unordered_list"},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+\S`), 0.6, "ordered_list"},
	{regexp.MustCompile(`(?m)^>\s*.+`), 0.7, "blockquote"},
	{regexp.MustCompile(`\[.+?\]\[.+?\]`), 0.9, "reference_link"},
	{regexp.MustCompile(`(?m)^\[.+?\]:\s*\S+`), 1.0, "link_definition"},
	{regexp.MustCompile(`~~.+?~~`), 0.8, "strikethrough"},
	{regexp.MustCompile(`(?m)^---+$`), 0.7, "horizontal_rule"},
	{regexp.MustCompile(`(?m)^\*\*\*+$`), 0.7, "horizontal_rule_alt"},
}

const confidenceThreshold = 0.5

var rtlLanguages = map[string]bool{
	"ar": true, "he": true, "fa": true, "ur": true, "yi": true, "ps": true,
}

// DetectionResult is the outcome of Detect.
type DetectionResult struct {
	IsMarkdown     bool
	Confidence     float64
	PatternsFound  []string
	PatternCount   int
}

// Detect scores text against the weighted pattern table and reports
// whether it should be treated as markdown.
func Detect(text string) DetectionResult {
	if len(text) < 2 {
		return DetectionResult{}
	}

	var found []string
	var maxWeight float64
	var matchCount int

	for _, ind := range indicators {
		matches := ind.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		found = append(found, ind.name)
		matchCount += len(matches)
		if ind.weight > maxWeight {
			maxWeight = ind.weight
		}
	}

	if len(found) == 0 {
		return DetectionResult{}
	}

	confidence := maxWeight + 0.05*float64(len(found))
	if confidence > 1.0 {
		confidence = 1.0
	}

	return DetectionResult{
		IsMarkdown:    confidence >= confidenceThreshold,
		Confidence:    confidence,
		PatternsFound: found,
		PatternCount:  matchCount,
	}
}

// IsMarkdown is a convenience wrapper around Detect.
func IsMarkdown(text string) bool { return Detect(text).IsMarkdown }

// Result is the outcome of Sanitize for a single text.
type Result struct {
	Text         string
	WasSanitized bool
	Issues       []string
	DepthWarning bool
}

// Options controls sanitization behavior.
type Options struct {
	SafeMode             bool
	SafeModeAuto         bool
	MaxDepth             int
	ProblematicPairs     map[string]bool
	SourceLang, TargetLang string
}

func isRTL(lang string) bool { return rtlLanguages[strings.ToLower(lang)] }

func shouldUseSafeMode(opts Options) bool {
	if opts.SafeMode {
		return true
	}
	if !opts.SafeModeAuto {
		return false
	}
	if isRTL(opts.TargetLang) {
		return true
	}
	key := opts.SourceLang + "->" + opts.TargetLang
	return opts.ProblematicPairs[key]
}

// Sanitize applies the bracket-balance, RTL-flip, depth-break, and
// emphasis-balance fix pipeline to text.
func Sanitize(text string, opts Options) Result {
	if text == "" {
		return Result{}
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	var issues []string
	wasSanitized := false
	result := text

	initialDepth := nestingDepth(result)
	depthWarning := initialDepth > maxDepth
	if depthWarning {
		issues = append(issues, "initial nesting depth exceeds limit")
	}

	if shouldUseSafeMode(opts) {
		result = stripComplexMarkdown(result)
		issues = append(issues, "safe mode: stripped complex markdown")
		wasSanitized = true
	}

	if isRTL(opts.TargetLang) {
		fixed, modified := fixRTLBrackets(result)
		if modified {
			result = fixed
			issues = append(issues, "fixed RTL bracket direction")
			wasSanitized = true
		}
	}

	for _, pair := range [][2]rune{{'[', ']'}, {'(', ')'}} {
		balanced, modified := balanceBrackets(result, pair[0], pair[1])
		if modified {
			result = balanced
			issues = append(issues, "balanced brackets")
			wasSanitized = true
		}
	}

	if broken, modified := breakDeepNesting(result, maxDepth); modified {
		result = broken
		issues = append(issues, "reduced excessive nesting depth")
		wasSanitized = true
	}

	if fixed, modified := fixNestedEmphasis(result); modified {
		result = fixed
		issues = append(issues, "fixed unbalanced emphasis markers")
		wasSanitized = true
	}

	return Result{Text: result, WasSanitized: wasSanitized, Issues: issues, DepthWarning: depthWarning}
}

// SanitizeBatch sanitizes every text detected as markdown; non-markdown
// texts pass through unchanged.
func SanitizeBatch(texts []string, opts Options) ([]string, bool, []string) {
	out := make([]string, len(texts))
	anySanitized := false
	var allIssues []string

	for i, t := range texts {
		if !IsMarkdown(t) {
			out[i] = t
			continue
		}
		r := Sanitize(t, opts)
		out[i] = r.Text
		if r.WasSanitized {
			anySanitized = true
			for _, issue := range r.Issues {
				allIssues = append(allIssues, issue)
			}
		}
	}
	return out, anySanitized, allIssues
}

func nestingDepth(text string) int {
	depth, max := 0, 0
	for _, ch := range text {
		switch ch {
		case '[', '(':
			depth++
			if depth > max {
				max = depth
			}
		case ']', ')':
			if depth > 0 {
				depth--
			}
		}
	}
	return max
}

// balanceBrackets removes unmatched open/close characters via a stack
// scan, preserving order of the remaining characters.
func balanceBrackets(text string, open, close rune) (string, bool) {
	runes := []rune(text)
	var openStack []int
	unmatchedClose := map[int]bool{}

	for i, ch := range runes {
		switch ch {
		case open:
			openStack = append(openStack, i)
		case close:
			if len(openStack) > 0 {
				openStack = openStack[:len(openStack)-1]
			} else {
				unmatchedClose[i] = true
			}
		}
	}

	unmatched := map[int]bool{}
	for _, i := range openStack {
		unmatched[i] = true
	}
	for i := range unmatchedClose {
		unmatched[i] = true
	}

	if len(unmatched) == 0 {
		return text, false
	}

	var b strings.Builder
	for i, ch := range runes {
		if !unmatched[i] {
			b.WriteRune(ch)
		}
	}
	return b.String(), true
}

var (
	reversedSquare = regexp.MustCompile(`\]([^\[\]]+)\[`)
	reversedParen  = regexp.MustCompile(`\)([^()]+)\(`)
)

func fixRTLBrackets(text string) (string, bool) {
	modified := false
	result := text

	for {
		loc := reversedSquare.FindStringSubmatchIndex(result)
		if loc == nil {
			break
		}
		inner := result[loc[2]:loc[3]]
		result = result[:loc[0]] + "[" + inner + "]" + result[loc[1]:]
		modified = true
	}
	for {
		loc := reversedParen.FindStringSubmatchIndex(result)
		if loc == nil {
			break
		}
		inner := result[loc[2]:loc[3]]
		result = result[:loc[0]] + "(" + inner + ")" + result[loc[1]:]
		modified = true
	}

	return result, modified
}

func breakDeepNesting(text string, maxDepth int) (string, bool) {
	if nestingDepth(text) <= maxDepth {
		return text, false
	}

	var b strings.Builder
	depth := 0
	modified := false

	for _, ch := range text {
		switch ch {
		case '[', '(':
			depth++
			if depth > maxDepth {
				modified = true
				continue
			}
		case ']', ')':
			if depth > maxDepth {
				if depth > 0 {
					depth--
				}
				modified = true
				continue
			}
			if depth > 0 {
				depth--
			}
		}
		b.WriteRune(ch)
	}
	return b.String(), modified
}

var unbalancedEmphasis = regexp.MustCompile(`(\*{1,3}|_{1,3})(?:[^*_]*)(\*{1,3}|_{1,3})(?:[^*_]*)(\*{1,3}|_{1,3})(?:[^*_]*)(\*{1,3}|_{1,3})`)

var emphasisMarkers = []string{"***", "**", "*", "___", "__", "_"}

func fixNestedEmphasis(text string) (string, bool) {
	if !unbalancedEmphasis.MatchString(text) {
		return text, false
	}

	result := text
	for _, marker := range emphasisMarkers {
		result = balanceEmphasis(marker, result)
	}
	return result, result != text
}

func balanceEmphasis(marker, text string) string {
	count := strings.Count(text, marker)
	if count%2 == 0 {
		return text
	}
	idx := strings.LastIndex(text, marker)
	if idx < 0 {
		return text
	}
	return text[:idx] + text[idx+len(marker):]
}

var (
	reImage          = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	reLink           = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reRefLink        = regexp.MustCompile(`\[([^\]]*)\]\[[^\]]*\]`)
	reLinkDefinition = regexp.MustCompile(`(?m)^\s*\[[^\]]+\]:\s*.*$`)
	reAsteriskEmph   = regexp.MustCompile(`\*{3,}([^*]+)\*{3,}`)
	reUnderscoreEmph = regexp.MustCompile(`_{3,}([^_]+)_{3,}`)
	reHTMLTag        = regexp.MustCompile(`<[^>]+>`)
	reMultiOpenSq    = regexp.MustCompile(`\[{2,}`)
	reMultiCloseSq   = regexp.MustCompile(`\]{2,}`)
	reMultiOpenPa    = regexp.MustCompile(`\({2,}`)
	reMultiClosePa   = regexp.MustCompile(`\){2,}`)
)

func stripComplexMarkdown(text string) string {
	result := text
	result = reImage.ReplaceAllString(result, "$1")
	result = reLink.ReplaceAllString(result, "$1")
	result = reRefLink.ReplaceAllString(result, "$1")
	result = reLinkDefinition.ReplaceAllString(result, "")
	result = reAsteriskEmph.ReplaceAllString(result, "**$1**")
	result = reUnderscoreEmph.ReplaceAllString(result, "__$1__")
	result = reHTMLTag.ReplaceAllString(result, "")
	result = reMultiOpenSq.ReplaceAllString(result, "[")
	result = reMultiCloseSq.ReplaceAllString(result, "]")
	result = reMultiOpenPa.ReplaceAllString(result, "(")
	result = reMultiClosePa.ReplaceAllString(result, ")")
	return result
}
