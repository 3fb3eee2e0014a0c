// Package config resolves runtime parameters once at startup into an
// immutable Snapshot. Nothing downstream mutates a Snapshot; it is built by
// New and passed by value/reference to every other component.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Device selects where translation models are loaded.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// LangSet is a configured set of language codes a model family supports.
type LangSet map[string]bool

func NewLangSet(codes ...string) LangSet {
	s := make(LangSet, len(codes))
	for _, c := range codes {
		s[c] = true
	}
	return s
}

func (s LangSet) Has(code string) bool { return s[strings.ToLower(code)] }

// Snapshot is the full set of recognized runtime options.
// It is built once by New and never mutated afterward.
type Snapshot struct {
	Device           Device
	MaxBackendWorkers int

	MaxCachedModels int

	EnableQueue        bool
	MaxQueueSize       int
	TranslateTimeout   time.Duration
	MaxInflight        int
	EnableAdmissionRate bool
	AdmissionRatePerSec float64
	AdmissionBurst      int

	AutoFamilyFallback  bool
	FamilyFallbackOrder []string
	DefaultFamily       string

	PivotFallback   bool
	DefaultPivotLang string

	InputSanitize     bool
	MinAlnumRatio     float64
	MinChars          int
	UndeterminedCode  string

	PerformSentenceSplittingDefault bool
	MaxSentenceChars                int
	MaxChunkChars                   int
	JoinWith                        string

	SymbolMasking bool
	MaskDigits    bool
	MaskPunct     bool
	MaskEmoji     bool

	MarkdownSanitize         bool
	MarkdownSafeMode         bool
	MarkdownSafeModeAuto     bool
	MarkdownMaxDepth         int
	MarkdownProblematicPairs map[string]bool

	AutoChunkEnabled  bool
	AutoChunkMaxChars int

	MaxBeam      int // 0 means unset/unbounded
	BatchSize    int
	MaxGenTokens int

	RetryAfterMinSec int
	RetryAfterMaxSec int
	RetryAfterAlpha  float64

	SanitizePlaceholder string
	AlignResponses      bool

	EnableMemoryMonitor    bool
	RAMWarningPct          float64
	RAMCriticalPct         float64
	VRAMWarningPct         float64
	VRAMCriticalPct        float64
	MemoryCheckInterval    int
	MaintenanceInterval    time.Duration
	IdleEvictionTimeoutSec int

	SupportedLangs LangSet
	MBart50Langs   LangSet
	M2M100Langs    LangSet

	PreloadedModelsDir string
	HTTPAddr           string

	// TelemetryDBPath, when non-empty, enables an opt-in diagnostic sqlite
	// request log (internal/telemetry). Empty disables it.
	TelemetryDBPath string
}

// New reads configuration once from viper (flags, env, optional file merged
// by the caller before New is invoked) and returns an immutable Snapshot.
func New(v *viper.Viper) (*Snapshot, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	device := Device(strings.ToLower(v.GetString("device")))
	if device != DeviceGPU {
		device = DeviceCPU
	}

	maxInflight := v.GetInt("max_inflight")
	if maxInflight <= 0 {
		if device == DeviceGPU {
			maxInflight = 1
		} else {
			maxInflight = v.GetInt("max_backend_workers")
		}
	}

	s := &Snapshot{
		Device:            device,
		MaxBackendWorkers: v.GetInt("max_backend_workers"),

		MaxCachedModels: v.GetInt("max_cached_models"),

		EnableQueue:         v.GetBool("enable_queue"),
		MaxQueueSize:        v.GetInt("max_queue_size"),
		TranslateTimeout:    time.Duration(v.GetInt("translate_timeout_sec")) * time.Second,
		MaxInflight:         maxInflight,
		EnableAdmissionRate: v.GetBool("enable_admission_rate"),
		AdmissionRatePerSec: v.GetFloat64("admission_rate_per_sec"),
		AdmissionBurst:      v.GetInt("admission_burst"),

		AutoFamilyFallback:  v.GetBool("auto_family_fallback"),
		FamilyFallbackOrder: splitList(v.GetString("family_fallback_order")),
		DefaultFamily:       v.GetString("default_family"),

		PivotFallback:    v.GetBool("pivot_fallback"),
		DefaultPivotLang: v.GetString("default_pivot_lang"),

		InputSanitize:    v.GetBool("input_sanitize"),
		MinAlnumRatio:    v.GetFloat64("min_alnum_ratio"),
		MinChars:         v.GetInt("min_chars"),
		UndeterminedCode: v.GetString("undetermined_code"),

		PerformSentenceSplittingDefault: v.GetBool("perform_sentence_splitting_default"),
		MaxSentenceChars:                v.GetInt("max_sentence_chars"),
		MaxChunkChars:                   v.GetInt("max_chunk_chars"),
		JoinWith:                        v.GetString("join_with"),

		SymbolMasking: v.GetBool("symbol_masking"),
		MaskDigits:    v.GetBool("mask_digits"),
		MaskPunct:     v.GetBool("mask_punct"),
		MaskEmoji:     v.GetBool("mask_emoji"),

		MarkdownSanitize:     v.GetBool("markdown_sanitize"),
		MarkdownSafeMode:     v.GetBool("markdown_safe_mode"),
		MarkdownSafeModeAuto: v.GetBool("markdown_safe_mode_auto"),
		MarkdownMaxDepth:     v.GetInt("markdown_max_depth"),
		MarkdownProblematicPairs: toBoolSet(v.GetStringSlice("markdown_problematic_pairs")),

		AutoChunkEnabled:  v.GetBool("auto_chunk_enabled"),
		AutoChunkMaxChars: v.GetInt("auto_chunk_max_chars"),

		MaxBeam:      v.GetInt("max_beam"),
		BatchSize:    v.GetInt("batch_size"),
		MaxGenTokens: v.GetInt("max_gen_tokens"),

		RetryAfterMinSec: v.GetInt("retry_after_min_sec"),
		RetryAfterMaxSec: v.GetInt("retry_after_max_sec"),
		RetryAfterAlpha:  v.GetFloat64("retry_after_alpha"),

		SanitizePlaceholder: v.GetString("sanitize_placeholder"),
		AlignResponses:      v.GetBool("align_responses"),

		EnableMemoryMonitor:    v.GetBool("enable_memory_monitor"),
		RAMWarningPct:          v.GetFloat64("ram_warning_pct"),
		RAMCriticalPct:         v.GetFloat64("ram_critical_pct"),
		VRAMWarningPct:         v.GetFloat64("vram_warning_pct"),
		VRAMCriticalPct:        v.GetFloat64("vram_critical_pct"),
		MemoryCheckInterval:    v.GetInt("memory_check_interval"),
		MaintenanceInterval:    time.Duration(v.GetInt("maintenance_interval_sec")) * time.Second,
		IdleEvictionTimeoutSec: v.GetInt("idle_eviction_timeout_sec"),

		SupportedLangs: toLangSet(v.GetStringSlice("supported_langs")),
		MBart50Langs:   toLangSet(v.GetStringSlice("mbart50_langs")),
		M2M100Langs:    toLangSet(v.GetStringSlice("m2m100_langs")),

		PreloadedModelsDir: v.GetString("preloaded_models_dir"),
		HTTPAddr:           v.GetString("http_addr"),

		TelemetryDBPath: v.GetString("telemetry_db_path"),
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return s, nil
}

func (s *Snapshot) validate() error {
	if s.MaxCachedModels < 1 {
		return fmt.Errorf("max_cached_models must be >= 1, got %d", s.MaxCachedModels)
	}
	if s.MaxInflight < 1 {
		return fmt.Errorf("max_inflight must be >= 1, got %d", s.MaxInflight)
	}
	if s.RetryAfterAlpha <= 0 || s.RetryAfterAlpha > 1 {
		return fmt.Errorf("retry_after_alpha must be in (0,1], got %f", s.RetryAfterAlpha)
	}
	if s.RetryAfterMinSec < 1 || s.RetryAfterMaxSec < s.RetryAfterMinSec {
		return fmt.Errorf("invalid retry_after bounds [%d,%d]", s.RetryAfterMinSec, s.RetryAfterMaxSec)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device", "cpu")
	v.SetDefault("max_backend_workers", runtime.NumCPU())

	v.SetDefault("max_cached_models", 3)

	v.SetDefault("enable_queue", true)
	v.SetDefault("max_queue_size", 32)
	v.SetDefault("translate_timeout_sec", 0)
	v.SetDefault("max_inflight", 0)
	v.SetDefault("enable_admission_rate", false)
	v.SetDefault("admission_rate_per_sec", 10.0)
	v.SetDefault("admission_burst", 20)

	v.SetDefault("auto_family_fallback", true)
	v.SetDefault("family_fallback_order", "opus-mt,mbart50,m2m100")
	v.SetDefault("default_family", "opus-mt")

	v.SetDefault("pivot_fallback", true)
	v.SetDefault("default_pivot_lang", "en")

	v.SetDefault("input_sanitize", true)
	v.SetDefault("min_alnum_ratio", 0.3)
	v.SetDefault("min_chars", 2)
	v.SetDefault("undetermined_code", "und")

	v.SetDefault("perform_sentence_splitting_default", true)
	v.SetDefault("max_sentence_chars", 400)
	v.SetDefault("max_chunk_chars", 800)
	v.SetDefault("join_with", " ")

	v.SetDefault("symbol_masking", true)
	v.SetDefault("mask_digits", false)
	v.SetDefault("mask_punct", false)
	v.SetDefault("mask_emoji", true)

	v.SetDefault("markdown_sanitize", true)
	v.SetDefault("markdown_safe_mode", false)
	v.SetDefault("markdown_safe_mode_auto", true)
	v.SetDefault("markdown_max_depth", 10)
	v.SetDefault("markdown_problematic_pairs", []string{})

	v.SetDefault("auto_chunk_enabled", true)
	v.SetDefault("auto_chunk_max_chars", 4000)

	v.SetDefault("max_beam", 0)
	v.SetDefault("batch_size", 16)
	v.SetDefault("max_gen_tokens", 256)

	v.SetDefault("retry_after_min_sec", 1)
	v.SetDefault("retry_after_max_sec", 60)
	v.SetDefault("retry_after_alpha", 0.2)

	v.SetDefault("sanitize_placeholder", "")
	v.SetDefault("align_responses", true)

	v.SetDefault("enable_memory_monitor", true)
	v.SetDefault("ram_warning_pct", 85.0)
	v.SetDefault("ram_critical_pct", 92.0)
	v.SetDefault("vram_warning_pct", 85.0)
	v.SetDefault("vram_critical_pct", 92.0)
	v.SetDefault("memory_check_interval", 20)
	v.SetDefault("maintenance_interval_sec", 300)
	v.SetDefault("idle_eviction_timeout_sec", 900)

	v.SetDefault("supported_langs", defaultOpusLangs())
	v.SetDefault("mbart50_langs", defaultMBart50Langs())
	v.SetDefault("m2m100_langs", defaultM2M100Langs())

	v.SetDefault("preloaded_models_dir", "/app/models")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("telemetry_db_path", "")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toLangSet(codes []string) LangSet {
	s := make(LangSet, len(codes))
	for _, c := range codes {
		s[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return s
}

func toBoolSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func defaultOpusLangs() []string {
	return []string{
		"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk", "zh", "ja",
		"ko", "ar", "he", "tr", "sv", "fi", "da", "no", "cs", "sk", "ro", "hu",
		"bg", "el", "hi", "vi", "th", "id", "ms", "fa", "ur", "ps", "yi",
	}
}

func defaultMBart50Langs() []string {
	return []string{
		"ar", "cs", "de", "en", "es", "et", "fi", "fr", "gu", "hi", "it", "ja",
		"kk", "ko", "lt", "lv", "my", "ne", "nl", "ro", "ru", "si", "tr", "vi",
		"zh", "af", "az", "bn", "fa", "he", "hr", "id", "ka", "km", "mk", "ml",
		"mn", "mr", "pl", "ps", "pt", "sv", "sw", "ta", "te", "th", "tl", "uk",
		"ur", "xh", "gl", "sl",
	}
}

func defaultM2M100Langs() []string {
	return []string{
		"en", "es", "fr", "de", "it", "pt", "nl", "pl", "ru", "uk", "zh", "ja",
		"ko", "ar", "he", "tr", "sv", "fi", "da", "no", "cs", "hi", "vi", "th",
		"id", "ms", "fa", "ur", "bn", "ta", "te", "mr", "gu", "kn", "ml", "pa",
	}
}
