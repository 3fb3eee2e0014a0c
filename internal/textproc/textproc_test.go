package textproc_test

import (
	"strings"
	"testing"

	"github.com/valpere/peretran-nmt/internal/textproc"
)

func defaultOpts() textproc.Options {
	return textproc.Options{MinChars: 2, MinAlnumRatio: 0.3, MaxSentenceChars: 40}
}

func TestStripControl(t *testing.T) {
	in := "hello\x00\x01world\tok\n"
	got := textproc.StripControl(in)
	if strings.ContainsRune(got, 0x00) || strings.ContainsRune(got, 0x01) {
		t.Fatalf("control chars not stripped: %q", got)
	}
	if !strings.Contains(got, "\t") || !strings.Contains(got, "\n") {
		t.Fatalf("tab/newline should survive: %q", got)
	}
}

func TestIsNoise(t *testing.T) {
	opts := defaultOpts()
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"too short", "a", true},
		{"empty", "", true},
		{"all space", "     ", true},
		{"all symbols", "!!!???", true},
		{"low alnum ratio", "a!!!!!!!!!!", true},
		{"normal text", "Hello world, this is fine.", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textproc.IsNoise(tt.in, opts); got != tt.want {
				t.Errorf("IsNoise(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitSentences_Basic(t *testing.T) {
	opts := defaultOpts()
	s := "First sentence. Second sentence! Third one?"
	got := textproc.SplitSentences(s, opts)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(got), got)
	}
}

func TestSplitSentences_NoBoundary(t *testing.T) {
	opts := textproc.Options{MinChars: 2, MinAlnumRatio: 0.3, MaxSentenceChars: 0}
	s := "no terminal punctuation here"
	got := textproc.SplitSentences(s, opts)
	if len(got) != 1 || got[0] != s {
		t.Fatalf("expected single sentence, got %v", got)
	}
}

func TestSplitSentences_EnforcesMaxChars(t *testing.T) {
	opts := textproc.Options{MinChars: 2, MinAlnumRatio: 0.3, MaxSentenceChars: 20}
	s := "this is a very long sentence, with many clauses; that must be split, somehow."
	got := textproc.SplitSentences(s, opts)
	for _, sent := range got {
		if len([]rune(sent)) > 20 && !strings.ContainsAny(sent, " ") {
			t.Errorf("oversized unsplittable sentence: %q", sent)
		}
	}
	if len(got) < 2 {
		t.Fatalf("expected splitting into multiple pieces, got %v", got)
	}
}

func TestChunkSentences_Ordering(t *testing.T) {
	sentences := []string{"One.", "Two.", "Three.", "Four."}
	chunks := textproc.ChunkSentences(sentences, 10, " ")
	joined := strings.Join(chunks, "|")
	if strings.Index(joined, "One") > strings.Index(joined, "Two") ||
		strings.Index(joined, "Two") > strings.Index(joined, "Three") {
		t.Fatalf("chunk ordering not preserved: %v", chunks)
	}
}

func TestChunkSentences_Empty(t *testing.T) {
	if got := textproc.ChunkSentences(nil, 10, " "); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
}

func TestRemoveNewRepeats_DropsHallucinatedRun(t *testing.T) {
	src := "Hello world"
	out := "Hello!!!! world"
	got := textproc.RemoveNewRepeats(src, out)
	if strings.Contains(got, "!!!!") {
		t.Fatalf("expected run removed, got %q", got)
	}
}

func TestRemoveNewRepeats_KeepsRunPresentInSource(t *testing.T) {
	src := "Wait... what??"
	out := "Attends... quoi??"
	got := textproc.RemoveNewRepeats(src, out)
	if !strings.Contains(got, "...") {
		t.Fatalf("run present in source should be kept, got %q", got)
	}
}

func TestRemoveNewRepeats_Idempotent(t *testing.T) {
	src := "plain text"
	out := "one &&&& two     three"
	once := textproc.RemoveNewRepeats(src, out)
	twice := textproc.RemoveNewRepeats(src, once)
	if once != twice {
		t.Fatalf("not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestStripArtifacts_UnwrapsQuotes(t *testing.T) {
	got := textproc.StripArtifacts(`"Bonjour le monde"`)
	if got != "Bonjour le monde" {
		t.Fatalf("expected unwrapped text, got %q", got)
	}
}

func TestStripArtifacts_LeavesUnwrappedTextAlone(t *testing.T) {
	in := "no quotes here"
	if got := textproc.StripArtifacts(in); got != in {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}
