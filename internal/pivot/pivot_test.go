package pivot_test

import (
	"testing"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/pivot"
)

func testConfig() *config.Snapshot {
	return &config.Snapshot{
		DefaultPivotLang: "en",
		SupportedLangs:   config.NewLangSet("en", "de", "fr", "yue"),
		MBart50Langs:     config.NewLangSet("en", "de", "ar"),
		M2M100Langs:      config.NewLangSet("en", "fr", "zh"),
	}
}

func TestSelectPivot_PrefersDefaultPivot(t *testing.T) {
	cfg := testConfig()
	got, err := pivot.SelectPivot(cfg, "de", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "en" {
		t.Fatalf("expected en as pivot, got %q", got)
	}
}

func TestSelectPivot_NoRouteErrors(t *testing.T) {
	cfg := &config.Snapshot{
		DefaultPivotLang: "en",
		SupportedLangs:   config.NewLangSet("yue"),
		MBart50Langs:     config.NewLangSet("tlh"),
		M2M100Langs:      config.NewLangSet(),
	}
	_, err := pivot.SelectPivot(cfg, "yue", "tlh")
	if err == nil {
		t.Fatalf("expected no-pivot error for disjoint language sets")
	}
}

func TestSelectPivot_FallsBackToPreferenceOrderWhenDefaultUnreachable(t *testing.T) {
	cfg := &config.Snapshot{
		DefaultPivotLang: "en", // not in SupportedLangs below, so unreachable
		SupportedLangs:   config.NewLangSet("de", "fr", "es"),
	}
	got, err := pivot.SelectPivot(cfg, "de", "fr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "es" {
		t.Fatalf("expected es chosen via preference order, got %q", got)
	}
}
