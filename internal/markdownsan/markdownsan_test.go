package markdownsan_test

import (
	"strings"
	"testing"

	"github.com/valpere/peretran-nmt/internal/markdownsan"
)

func TestIsMarkdown_PlainText(t *testing.T) {
	if markdownsan.IsMarkdown("just a plain sentence with no markup") {
		t.Fatalf("plain text should not be detected as markdown")
	}
}

func TestIsMarkdown_Link(t *testing.T) {
	if !markdownsan.IsMarkdown("see [this page](https://example.com) for more") {
		t.Fatalf("link should be detected as markdown")
	}
}

func TestIsMarkdown_Header(t *testing.T) {
	if !markdownsan.IsMarkdown("# Title\n\nBody text.") {
		t.Fatalf("header should be detected as markdown")
	}
}

func TestSanitize_BalancesBrackets(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 10}
	r := markdownsan.Sanitize("[unbalanced (text", opts)
	if strings.Contains(r.Text, "[") || strings.Contains(r.Text, "(") {
		t.Fatalf("expected unmatched brackets removed, got %q", r.Text)
	}
}

func TestSanitize_FixesRTLBrackets(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 10, TargetLang: "ar"}
	r := markdownsan.Sanitize("]reversed[ stays", opts)
	if !strings.Contains(r.Text, "[reversed]") {
		t.Fatalf("expected brackets flipped, got %q", r.Text)
	}
}

func TestSanitize_DepthBound(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 2}
	deep := strings.Repeat("[", 10) + "text" + strings.Repeat("]", 10)
	r := markdownsan.Sanitize(deep, opts)
	depth := 0
	max := 0
	for _, ch := range r.Text {
		if ch == '[' {
			depth++
			if depth > max {
				max = depth
			}
		}
		if ch == ']' && depth > 0 {
			depth--
		}
	}
	if max > opts.MaxDepth {
		t.Fatalf("depth %d exceeds max %d after sanitize", max, opts.MaxDepth)
	}
}

func TestSanitize_DepthBoundHoldsUnderSafeMode(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 2, SafeMode: true}
	// Alternating bracket/paren nesting defeats the safe-mode same-rune-run
	// collapse regex, so the depth-break step must still run afterward.
	deep := strings.Repeat("[(", 10) + "text" + strings.Repeat(")]", 10)
	r := markdownsan.Sanitize(deep, opts)
	depth := 0
	max := 0
	for _, ch := range r.Text {
		if ch == '[' {
			depth++
			if depth > max {
				max = depth
			}
		}
		if ch == ']' && depth > 0 {
			depth--
		}
	}
	if max > opts.MaxDepth {
		t.Fatalf("depth %d exceeds max %d after safe-mode sanitize, got %q", max, opts.MaxDepth, r.Text)
	}
	if !r.WasSanitized {
		t.Fatalf("expected WasSanitized, safe-mode stripping alone should mark the result sanitized")
	}
}

func TestSanitize_BalancesEmphasis(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 10}
	r := markdownsan.Sanitize("some ***a*** text ***b*** more ***c***", opts)
	if strings.Count(r.Text, "***")%2 != 0 {
		t.Fatalf("expected balanced emphasis markers, got %q", r.Text)
	}
}

func TestSanitize_SafeModeStripsLinks(t *testing.T) {
	opts := markdownsan.Options{MaxDepth: 10, SafeMode: true}
	r := markdownsan.Sanitize("[text](http://example.com)", opts)
	if strings.Contains(r.Text, "(http") {
		t.Fatalf("safe mode should strip the URL, got %q", r.Text)
	}
	if !strings.Contains(r.Text, "text") {
		t.Fatalf("safe mode should keep the link text, got %q", r.Text)
	}
}

func TestSanitizeBatch_SkipsNonMarkdown(t *testing.T) {
	// The second text is markdown with a stray ")" that balancing removes.
	texts := []string{"plain text", "[md](url))"}
	out, any, _ := markdownsan.SanitizeBatch(texts, markdownsan.Options{MaxDepth: 10})
	if out[0] != "plain text" {
		t.Fatalf("plain text should pass through unchanged, got %q", out[0])
	}
	if !any {
		t.Fatalf("expected at least one sanitization to be recorded")
	}
}

func TestRenderHTML_RendersLinkAndHeader(t *testing.T) {
	html := markdownsan.RenderHTML("# Title\n\n[link](https://example.com)")
	if !strings.Contains(html, "<h1") {
		t.Fatalf("expected a rendered header element, got %q", html)
	}
	if !strings.Contains(html, `href="https://example.com"`) {
		t.Fatalf("expected a rendered link element, got %q", html)
	}
}
