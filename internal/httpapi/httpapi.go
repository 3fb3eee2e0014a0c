// Package httpapi wires the translation engine, model cache, and queue
// manager behind an HTTP surface: health/readiness probes, cache and
// language-pair introspection, single and batch translate endpoints, and
// language-detection endpoints. Routing, request logging, recovery, and
// CORS follow a chi router setup in the same register a small Go HTTP
// service typically uses (chi middleware stack, cors.Handler, JSON
// encode/decode by hand, PORT-style addr config, http.ListenAndServe).
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/detector"
	"github.com/valpere/peretran-nmt/internal/engine"
	"github.com/valpere/peretran-nmt/internal/modelcache"
	"github.com/valpere/peretran-nmt/internal/modelmgr"
	"github.com/valpere/peretran-nmt/internal/queue"
	"github.com/valpere/peretran-nmt/internal/telemetry"
	"github.com/valpere/peretran-nmt/internal/translator"
)

// Server bundles every component a request handler needs.
type Server struct {
	cfg    *config.Snapshot
	engine *engine.Engine
	cache  *modelcache.Cache
	models *modelmgr.Manager
	queue  *queue.Manager
	detect *detector.Detector
	tel    *telemetry.Store
}

func New(cfg *config.Snapshot, eng *engine.Engine, cache *modelcache.Cache, models *modelmgr.Manager, q *queue.Manager, det *detector.Detector) *Server {
	return &Server{cfg: cfg, engine: eng, cache: cache, models: models, queue: q, detect: det}
}

// WithTelemetry attaches an optional diagnostic request log; passing nil
// disables logging (the zero-value default).
func (s *Server) WithTelemetry(tel *telemetry.Store) *Server {
	s.tel = tel
	return s
}

func (s *Server) logRequest(ctx context.Context, entry telemetry.RequestEntry) {
	if s.tel == nil {
		return
	}
	_ = s.tel.Log(ctx, entry)
}

// Router builds the full chi router for the service.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeoutOrDefault()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID", "X-Enable-Metadata"},
	}))
	r.Use(s.requestIDMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/cache", s.handleCacheStatus)
	r.Get("/model_name", s.handleModelName)
	r.Get("/lang_pairs", s.handleLangPairs)
	r.Get("/get_languages", s.handleGetLanguages)
	r.Get("/discover/{family}", s.handleDiscoverFamily)

	r.Get("/translate", s.handleTranslateGET)
	r.Post("/translate", s.handleTranslatePOST)
	r.Get("/language_detection", s.handleDetectGET)
	r.Post("/language_detection", s.handleDetectPOST)

	return r
}

func (s *Server) timeoutOrDefault() time.Duration {
	if s.cfg.TranslateTimeout > 0 {
		return s.cfg.TranslateTimeout
	}
	return 60 * time.Second
}

// requestIDMiddleware echoes the caller's X-Request-ID back on every
// response, generating one when the caller didn't send one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// queueErrorResponse is the 429/503 body shape: a human message plus a
// Retry-After hint in seconds.
type queueErrorResponse struct {
	Message       string `json:"message"`
	RetryAfterSec int    `json:"retry_after_sec"`
}

// writeError maps a domain error to an appropriate HTTP status and, where
// applicable, a Retry-After hint.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unsupported *modelmgr.UnsupportedPairError
	var overflow *queue.OverflowError
	var busy *queue.BusyError

	switch {
	case errors.As(err, &unsupported):
		writeJSON(w, http.StatusBadRequest, unsupportedPairResponse{
			Error: "Unsupported language pair",
			Src:   unsupported.Src,
			Tgt:   unsupported.Tgt,
		})
	case errors.As(err, &overflow):
		retryAfter := s.queue.EstimateRetryAfter(overflow.Waiters)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, queueErrorResponse{Message: "Too many requests; queue full", RetryAfterSec: retryAfter})
	case errors.As(err, &busy):
		retryAfter := s.queue.EstimateRetryAfter(-1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusServiceUnavailable, queueErrorResponse{Message: "translation service is busy", RetryAfterSec: retryAfter})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		retryAfter := s.queue.EstimateRetryAfter(-1)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusServiceUnavailable, queueErrorResponse{Message: "translation timed out", RetryAfterSec: retryAfter})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	st := s.cache.Status()
	if s.cfg.EnableMemoryMonitor && (st.RAMPct >= s.cfg.RAMCriticalPct || st.VRAMPct >= s.cfg.VRAMCriticalPct) {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"device":       string(s.cfg.Device),
		"queueEnabled": s.cfg.EnableQueue,
		"maxInflight":  s.cfg.MaxInflight,
	})
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	st := s.cache.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capacity": st.Capacity,
		"size":     st.Size,
		"keys":     st.Keys,
		"ram_pct":  st.RAMPct,
		"vram_pct": st.VRAMPct,
	})
}

// handleModelName reports the running configuration snapshot a client needs
// to understand how translations will be served: device, batching, and the
// feature flags that change output shape.
func (s *Server) handleModelName(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device":                      string(s.cfg.Device),
		"default_family":             s.cfg.DefaultFamily,
		"batch_size":                  s.cfg.BatchSize,
		"max_beam":                    s.cfg.MaxBeam,
		"perform_sentence_splitting": s.cfg.PerformSentenceSplittingDefault,
		"auto_chunk_enabled":          s.cfg.AutoChunkEnabled,
		"input_sanitize":              s.cfg.InputSanitize,
		"symbol_masking":              s.cfg.SymbolMasking,
		"markdown_sanitize":           s.cfg.MarkdownSanitize,
		"pivot_fallback":              s.cfg.PivotFallback,
		"auto_family_fallback":        s.cfg.AutoFamilyFallback,
	})
}

// allLangSets lists every model family's language set alongside its name,
// in a fixed order so cartesian-pair output is deterministic.
func allLangSets(cfg *config.Snapshot) []struct {
	family translator.ModelFamily
	set    config.LangSet
} {
	return []struct {
		family translator.ModelFamily
		set    config.LangSet
	}{
		{translator.OpusMT, cfg.SupportedLangs},
		{translator.MBart50, cfg.MBart50Langs},
		{translator.M2M100, cfg.M2M100Langs},
	}
}

// handleLangPairs returns the cartesian product (with src != tgt) of the
// union of every configured family's language set. A listed pair is not
// necessarily covered by a single family.
func (s *Server) handleLangPairs(w http.ResponseWriter, r *http.Request) {
	langs := unionLangs(allLangSets(s.cfg))

	pairs := make([][2]string, 0, len(langs)*(len(langs)-1))
	for _, a := range langs {
		for _, b := range langs {
			if a != b {
				pairs = append(pairs, [2]string{a, b})
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"languagePairs": pairs})
}

// handleGetLanguages returns every supported language code, filtered down
// to those reachable from source_lang and/or reachable to target_lang when
// either query parameter is present.
func (s *Server) handleGetLanguages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceLang := normalizeLangCode(q.Get("source_lang"))
	targetLang := normalizeLangCode(q.Get("target_lang"))

	sets := allLangSets(s.cfg)
	langs := unionLangs(sets)
	if sourceLang == "" && targetLang == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"languages": langs})
		return
	}

	var filtered []string
	for _, lang := range langs {
		ok := true
		if sourceLang != "" && (lang == sourceLang || !anySetHas(sets, sourceLang, lang)) {
			ok = false
		}
		if targetLang != "" && (lang == targetLang || !anySetHas(sets, lang, targetLang)) {
			ok = false
		}
		if ok {
			filtered = append(filtered, lang)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"languages": filtered})
}

func anySetHas(sets []struct {
	family translator.ModelFamily
	set    config.LangSet
}, codes ...string) bool {
	for _, s := range sets {
		hasAll := true
		for _, code := range codes {
			if !s.set.Has(code) {
				hasAll = false
				break
			}
		}
		if hasAll {
			return true
		}
	}
	return false
}

func unionLangs(sets []struct {
	family translator.ModelFamily
	set    config.LangSet
}) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range sets {
		for code := range s.set {
			if !seen[code] {
				seen[code] = true
				out = append(out, code)
			}
		}
	}
	return out
}

// handleDiscoverFamily reports the language set discovered for one model
// family, or every family's set when {family} is "all".
func (s *Server) handleDiscoverFamily(w http.ResponseWriter, r *http.Request) {
	familyParam := chi.URLParam(r, "family")

	if familyParam == "all" {
		out := map[string][]string{}
		for _, s := range allLangSets(s.cfg) {
			var langs []string
			for code := range s.set {
				langs = append(langs, code)
			}
			out[string(s.family)] = langs
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"families": out})
		return
	}

	family := translator.ModelFamily(familyParam)
	set := langSetFor(s.cfg, family)
	if set == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown model family"})
		return
	}

	var langs []string
	for code := range set {
		langs = append(langs, code)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"family": string(family), "languages": langs})
}

func langSetFor(cfg *config.Snapshot, family translator.ModelFamily) config.LangSet {
	switch family {
	case translator.MBart50:
		return cfg.MBart50Langs
	case translator.M2M100:
		return cfg.M2M100Langs
	case translator.OpusMT:
		return cfg.SupportedLangs
	default:
		return nil
	}
}

// validateLangCode confirms s parses as a BCP-47 language tag, treating the
// empty string as valid (callers read that as "auto-detect").
func validateLangCode(s string) error {
	if s == "" {
		return nil
	}
	_, err := language.Parse(s)
	return err
}

func normalizeLangCode(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
