package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/engine"
	"github.com/valpere/peretran-nmt/internal/modelcache"
	"github.com/valpere/peretran-nmt/internal/modelmgr"
	"github.com/valpere/peretran-nmt/internal/translator"
)

type taggingTranslator struct{ family translator.ModelFamily }

func (t taggingTranslator) Run(ctx context.Context, batch []string, maxTokens, beam int) ([]string, error) {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = "[" + string(t.family) + "]" + s
	}
	return out, nil
}
func (taggingTranslator) MoveToCPU() {}
func (taggingTranslator) Release()   {}

type stubSource struct{}

func (stubSource) Resolve(ctx context.Context, family translator.ModelFamily, modelName string) (string, error) {
	return "/models/" + modelName, nil
}

type stubDetector struct{ code string }

func (d stubDetector) DetectCode(text string) string { return d.code }

func baseConfig() *config.Snapshot {
	return &config.Snapshot{
		DefaultFamily:       "opus-mt",
		AutoFamilyFallback:  true,
		PivotFallback:       true,
		FamilyFallbackOrder: []string{"opus-mt", "mbart50", "m2m100"},
		SupportedLangs:      config.NewLangSet("en", "de"),
		MBart50Langs:        config.NewLangSet("en", "fr"),
		M2M100Langs:         config.NewLangSet("en", "de"),
		DefaultPivotLang:    "en",
		MaxGenTokens:        64,
		JoinWith:            " ",
		UndeterminedCode:    "und",
	}
}

func newManager(cfg *config.Snapshot) *modelmgr.Manager {
	cache := modelcache.New(modelcache.Options{Capacity: 8})
	return modelmgr.New(cfg, cache, stubSource{}, func(family translator.ModelFamily, modelPath, src, tgt string) (translator.Translator, error) {
		return taggingTranslator{family: family}, nil
	})
}

func TestTranslate_DirectPairSucceeds(t *testing.T) {
	cfg := baseConfig()
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	results := eng.Translate(context.Background(), []string{"hello"}, engine.Options{
		SourceLang: "en",
		TargetLang: "de",
	})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if !strings.Contains(results[0].Text, "hello") {
		t.Fatalf("expected translated text to contain original content, got %q", results[0].Text)
	}
	if results[0].Metadata.ModelFamily != string(translator.OpusMT) {
		t.Fatalf("expected opus-mt family, got %q", results[0].Metadata.ModelFamily)
	}
}

func TestTranslate_PreservesOrderAndAlignment(t *testing.T) {
	cfg := baseConfig()
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	items := []string{"one", "two", "three"}
	results := eng.Translate(context.Background(), items, engine.Options{
		SourceLang: "en",
		TargetLang: "de",
	})

	if len(results) != len(items) {
		t.Fatalf("expected %d results, got %d", len(items), len(results))
	}
	for i, item := range items {
		if !strings.Contains(results[i].Text, item) {
			t.Fatalf("result %d = %q does not correspond to input %q", i, results[i].Text, item)
		}
	}
}

func TestTranslate_SameSourceAndTargetShortCircuits(t *testing.T) {
	cfg := baseConfig()
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	results := eng.Translate(context.Background(), []string{"hello"}, engine.Options{
		SourceLang: "en",
		TargetLang: "en",
	})

	if results[0].Text != "hello" {
		t.Fatalf("expected passthrough text, got %q", results[0].Text)
	}
	if results[0].Metadata.ModelFamily != "" {
		t.Fatalf("expected no family used for passthrough, got %q", results[0].Metadata.ModelFamily)
	}
}

func TestTranslate_AutoDetectsWhenSourceEmpty(t *testing.T) {
	cfg := baseConfig()
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "en"})

	results := eng.Translate(context.Background(), []string{"hello"}, engine.Options{
		TargetLang: "de",
	})

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if !results[0].Metadata.WasAutoDetected {
		t.Fatalf("expected WasAutoDetected to be true")
	}
	if results[0].Metadata.SourceLang != "en" {
		t.Fatalf("expected detected source 'en', got %q", results[0].Metadata.SourceLang)
	}
}

func TestTranslate_UndeterminedSourceIsError(t *testing.T) {
	cfg := baseConfig()
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	results := eng.Translate(context.Background(), []string{"???"}, engine.Options{
		TargetLang: "de",
	})

	if results[0].Err == nil {
		t.Fatalf("expected error for undetermined source language")
	}
}

func TestTranslate_PivotsWhenNoDirectFamilySupportsPair(t *testing.T) {
	cfg := baseConfig()
	// de->fr: opus-mt knows en/de, mbart50 knows en/fr, m2m100 knows en/de.
	// No single family covers both de and fr, so the only route is a
	// de->en->fr pivot through the shared language "en".
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	results := eng.Translate(context.Background(), []string{"hello"}, engine.Options{
		SourceLang: "de",
		TargetLang: "fr",
	})

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if !results[0].Metadata.WasPivoted {
		t.Fatalf("expected pivot routing to have been used")
	}
	if results[0].Metadata.PivotLang != "en" {
		t.Fatalf("expected pivot through 'en', got %q", results[0].Metadata.PivotLang)
	}
}

func TestTranslate_BeamIsClamped(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxBeam = 2
	eng := engine.New(cfg, newManager(cfg), stubDetector{code: "und"})

	results := eng.Translate(context.Background(), []string{"hello"}, engine.Options{
		SourceLang: "en",
		TargetLang: "de",
		Beam:       10,
	})

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
}
