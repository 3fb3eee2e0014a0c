// Package engine implements the central translation orchestration:
// per-item auto-chunk/sentence-split/mask/translate/unmask/sanitize, pivot
// fallback when no family supports a pair directly, and a last-resort
// unitary-family attempt before giving up. Progress is logged to stderr in
// the same "try, log, fall through to the next option" structure used for
// retrying a single backend, generalized here to trying one family after
// another.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/markdownsan"
	"github.com/valpere/peretran-nmt/internal/modelmgr"
	"github.com/valpere/peretran-nmt/internal/pivot"
	"github.com/valpere/peretran-nmt/internal/symbolmask"
	"github.com/valpere/peretran-nmt/internal/textproc"
	"github.com/valpere/peretran-nmt/internal/translator"
)

// tracer is a no-op TracerProvider by default (otel.Tracer returns a
// no-op implementation until a real provider is registered via
// otel.SetTracerProvider). Wiring a real exporter is a one-line change
// at startup; none is registered here to keep tests free of network
// dependencies.
var tracer = otel.Tracer("github.com/valpere/peretran-nmt/internal/engine")

// LanguageDetector identifies the most likely language of a text, returning
// cfg.UndeterminedCode when it cannot decide. internal/detector.Detector satisfies this.
type LanguageDetector interface {
	DetectCode(text string) string
}

// ResultMetadata accompanies a single TranslationResult.
type ResultMetadata struct {
	SourceLang        string
	TargetLang        string
	ModelFamily       string
	WasAutoDetected   bool
	WasPivoted        bool
	PivotLang         string
	ChunkCount        int
	ChunkSize         int
	AutoChunked       bool
	MaskCount         int
	MarkdownSanitized bool
	DurationMs        int64
}

// TranslationResult is the per-item outcome of Translate.
type TranslationResult struct {
	Text     string
	Metadata ResultMetadata
	Err      error
}

// Options controls one Translate call.
type Options struct {
	SourceLang      string // empty triggers auto-detect
	TargetLang      string
	PreferredFamily string
	Beam            int
	MaxNewTokens    int
	WithMetadata    bool
	// SplitSentences is nil when the caller didn't specify it, in which
	// case cfg.PerformSentenceSplittingDefault applies.
	SplitSentences *bool
}

// Engine drives the full translation pipeline for one or more input texts.
type Engine struct {
	cfg      *config.Snapshot
	models   *modelmgr.Manager
	detector LanguageDetector
}

func New(cfg *config.Snapshot, models *modelmgr.Manager, detector LanguageDetector) *Engine {
	return &Engine{cfg: cfg, models: models, detector: detector}
}

// Translate runs the pipeline over each item independently, preserving
// input order: len(out) == len(items) and out[i] corresponds to items[i]
// even when out[i].Err != nil.
func (e *Engine) Translate(ctx context.Context, items []string, opts Options) []TranslationResult {
	out := make([]TranslationResult, len(items))
	for i, item := range items {
		out[i] = e.translateItem(ctx, item, opts)
	}
	return out
}

func (e *Engine) splitSentencesFlag(opts Options) bool {
	if opts.SplitSentences != nil {
		return *opts.SplitSentences
	}
	return e.cfg.PerformSentenceSplittingDefault
}

// translateItem handles one input text: source-language resolution, the
// step-2 fixed-size auto-chunk split (distinct from sentence splitting),
// per-part translation, and reassembly.
func (e *Engine) translateItem(ctx context.Context, text string, opts Options) TranslationResult {
	ctx, span := tracer.Start(ctx, "engine.translateItem")
	defer span.End()

	start := time.Now()
	meta := ResultMetadata{TargetLang: opts.TargetLang}

	src := opts.SourceLang
	if src == "" {
		src = e.detector.DetectCode(text)
		meta.WasAutoDetected = true
	}
	meta.SourceLang = src

	if src == e.cfg.UndeterminedCode {
		meta.DurationMs = time.Since(start).Milliseconds()
		return TranslationResult{Text: e.cfg.SanitizePlaceholder, Err: fmt.Errorf("engine: could not determine source language"), Metadata: meta}
	}
	if src == opts.TargetLang {
		meta.DurationMs = time.Since(start).Milliseconds()
		return TranslationResult{Text: text, Metadata: meta}
	}

	beam := clampBeam(e.cfg, opts.Beam)
	maxTokens := opts.MaxNewTokens
	if maxTokens <= 0 {
		maxTokens = e.cfg.MaxGenTokens
	}
	splitSentences := e.splitSentencesFlag(opts)

	var parts []string
	if e.cfg.AutoChunkEnabled && len([]rune(text)) > e.cfg.AutoChunkMaxChars {
		parts = splitFixedSize(text, e.cfg.AutoChunkMaxChars)
	} else {
		parts = []string{text}
	}
	meta.AutoChunked = len(parts) > 1
	meta.ChunkSize = e.cfg.AutoChunkMaxChars

	outputs := make([]string, len(parts))
	var family translator.ModelFamily
	var pivoted bool
	var pivotLang string
	var firstErr error

	for i, part := range parts {
		out, fam, piv, pLang, chunkCount, maskCount, err := e.translatePart(ctx, part, src, opts.TargetLang, opts.PreferredFamily, maxTokens, beam, splitSentences)
		meta.ChunkCount += chunkCount
		meta.MaskCount += maskCount
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			outputs[i] = e.cfg.SanitizePlaceholder
			continue
		}
		outputs[i] = out
		family = fam
		if piv {
			pivoted = true
			pivotLang = pLang
		}
	}

	joined := strings.Join(outputs, e.cfg.JoinWith)

	if e.cfg.MarkdownSanitize && markdownsan.IsMarkdown(joined) {
		res := markdownsan.Sanitize(joined, markdownsan.Options{
			SafeMode:         e.cfg.MarkdownSafeMode,
			SafeModeAuto:     e.cfg.MarkdownSafeModeAuto,
			MaxDepth:         e.cfg.MarkdownMaxDepth,
			ProblematicPairs: e.cfg.MarkdownProblematicPairs,
			SourceLang:       src,
			TargetLang:       opts.TargetLang,
		})
		joined = res.Text
		meta.MarkdownSanitized = res.WasSanitized
	}

	meta.ModelFamily = string(family)
	meta.WasPivoted = pivoted
	meta.PivotLang = pivotLang
	meta.DurationMs = time.Since(start).Milliseconds()

	if firstErr != nil {
		return TranslationResult{Text: joined, Err: firstErr, Metadata: meta}
	}
	return TranslationResult{Text: joined, Metadata: meta}
}

// translatePart runs noise-check, mask, sentence-split-into-chunks, batched
// translation, unmask, and repeat-symbol cleanup over a single auto-chunk
// part (or the whole item, when auto-chunking is disabled).
func (e *Engine) translatePart(ctx context.Context, part, src, tgt, preferredFamily string, maxTokens, beam int, splitSentences bool) (string, translator.ModelFamily, bool, string, int, int, error) {
	clean := part
	if e.cfg.InputSanitize {
		clean = textproc.StripControl(clean)
	}
	if e.cfg.InputSanitize && textproc.IsNoise(clean, textproc.Options{MinChars: e.cfg.MinChars, MinAlnumRatio: e.cfg.MinAlnumRatio}) {
		return e.cfg.SanitizePlaceholder, "", false, "", 0, 0, nil
	}

	var masked string
	var maskLog symbolmask.Log
	if e.cfg.SymbolMasking {
		masked, maskLog = symbolmask.Mask(clean, symbolmask.Options{
			Enabled:    true,
			MaskDigits: e.cfg.MaskDigits,
			MaskPunct:  e.cfg.MaskPunct,
			MaskEmoji:  e.cfg.MaskEmoji,
		})
	} else {
		masked = clean
	}

	var chunks []string
	if splitSentences {
		sentences := textproc.SplitSentences(masked, textproc.Options{MaxSentenceChars: e.cfg.MaxSentenceChars})
		chunks = textproc.ChunkSentences(sentences, e.cfg.MaxChunkChars, e.cfg.JoinWith)
	}
	if len(chunks) == 0 {
		chunks = []string{masked}
	}

	translated, family, pivoted, pivotLang, err := e.translateChunks(ctx, chunks, src, tgt, preferredFamily, maxTokens, beam)
	if err != nil {
		return "", "", false, "", len(chunks), len(maskLog), err
	}

	joined := strings.Join(translated, e.cfg.JoinWith)
	joined = textproc.RemoveNewRepeats(masked, joined)
	joined = textproc.StripArtifacts(joined)

	if e.cfg.SymbolMasking {
		joined = symbolmask.Unmask(joined, maskLog, symbolmask.Options{
			Enabled:    true,
			MaskDigits: e.cfg.MaskDigits,
			MaskPunct:  e.cfg.MaskPunct,
			MaskEmoji:  e.cfg.MaskEmoji,
		})
	}

	return joined, family, pivoted, pivotLang, len(chunks), len(maskLog), nil
}

// translateChunks attempts direct translation, then pivot routing, then a
// last-resort attempt via each multilingual family in turn. If the pivot
// route is found but either hop fails, it still falls through to the
// unitary-family last resort rather than surfacing the hop error directly.
func (e *Engine) translateChunks(ctx context.Context, chunks []string, src, tgt, preferredFamily string, maxTokens, beam int) ([]string, translator.ModelFamily, bool, string, error) {
	out, family, directErr := e.runDirect(ctx, chunks, src, tgt, preferredFamily, maxTokens, beam)
	if directErr == nil {
		return out, family, false, "", nil
	}
	lastErr := directErr

	if e.cfg.PivotFallback {
		if p, pErr := pivot.SelectPivot(e.cfg, src, tgt); pErr != nil {
			fmt.Fprintf(os.Stderr, "[engine] pivot selection failed for %s->%s: %v\n", src, tgt, pErr)
			lastErr = pErr
		} else {
			fmt.Fprintf(os.Stderr, "[engine] pivoting %s->%s via %s\n", src, tgt, p)
			mid, _, hopErr := e.runDirect(ctx, chunks, src, p, "", maxTokens, beam)
			if hopErr != nil {
				lastErr = hopErr
			} else if final, fam, hop2Err := e.runDirect(ctx, mid, p, tgt, "", maxTokens, beam); hop2Err != nil {
				lastErr = hop2Err
			} else {
				return final, fam, true, p, nil
			}
		}
	}

	if e.cfg.AutoFamilyFallback {
		for _, fam := range []translator.ModelFamily{translator.MBart50, translator.M2M100} {
			if out, family, fbErr := e.runDirect(ctx, chunks, src, tgt, string(fam), maxTokens, beam); fbErr == nil {
				return out, family, false, "", nil
			}
		}
	}

	return nil, "", false, "", lastErr
}

// runDirect resolves a translator for src->tgt and runs chunks through it in
// groups of cfg.BatchSize, preserving chunk order across batches.
func (e *Engine) runDirect(ctx context.Context, chunks []string, src, tgt, preferredFamily string, maxTokens, beam int) ([]string, translator.ModelFamily, error) {
	tr, family, err := e.models.Resolve(ctx, src, tgt, preferredFamily)
	if err != nil {
		return nil, "", err
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = len(chunks)
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	out := make([]string, 0, len(chunks))
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batchOut, err := tr.Run(ctx, chunks[i:end], maxTokens, beam)
		if err != nil {
			return nil, "", err
		}
		out = append(out, batchOut...)
	}
	return out, family, nil
}

// splitFixedSize slices text into fixed-size rune runs no longer than
// maxChars, used by the step-2 auto-chunk split (distinct from sentence
// splitting, which is content-aware).
func splitFixedSize(text string, maxChars int) []string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return []string{text}
	}
	var out []string
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// clampBeam bounds the requested beam width to cfg.MaxBeam when configured
// (0 means unset/unbounded).
func clampBeam(cfg *config.Snapshot, beam int) int {
	if beam <= 0 {
		beam = 1
	}
	if cfg.MaxBeam > 0 && beam > cfg.MaxBeam {
		return cfg.MaxBeam
	}
	return beam
}
