package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/engine"
	"github.com/valpere/peretran-nmt/internal/telemetry"
	"github.com/valpere/peretran-nmt/internal/textproc"
)

// flexStringList decodes a JSON value that is either a bare string or a
// list of strings into a single slice, matching the `text` field's two
// accepted shapes on POST /translate.
type flexStringList []string

func (f *flexStringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = []string{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

type translatePOSTRequest struct {
	Text                     flexStringList `json:"text"`
	TargetLang               string         `json:"target_lang"`
	SourceLang               string         `json:"source_lang"`
	BeamSize                 int            `json:"beam_size"`
	PerformSentenceSplitting *bool          `json:"perform_sentence_splitting"`
}

type translateGETResponse struct {
	Translations []string `json:"translations"`
	PivotPath    string   `json:"pivot_path,omitempty"`
}

type translatePOSTResponse struct {
	TargetLang      string                  `json:"target_lang"`
	SourceLang      string                  `json:"source_lang"`
	DetectedLangs   []string                `json:"detected_langs,omitempty"`
	Translated      []string                `json:"translated"`
	TranslationTime float64                 `json:"translation_time"`
	PivotPath       string                  `json:"pivot_path,omitempty"`
	Metadata        []engine.ResultMetadata `json:"metadata,omitempty"`
}

type unsupportedPairResponse struct {
	Error string `json:"error"`
	Src   string `json:"src"`
	Tgt   string `json:"tgt"`
}

func (s *Server) handleTranslatePOST(w http.ResponseWriter, r *http.Request) {
	var req translatePOSTRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	outcome, ok := s.runTranslate(w, r, []string(req.Text), req.SourceLang, req.TargetLang, req.BeamSize, req.PerformSentenceSplitting)
	if !ok {
		return
	}

	resp := translatePOSTResponse{
		TargetLang:      outcome.targetLang,
		SourceLang:      outcome.resolvedSrc,
		Translated:      outcome.translated(),
		TranslationTime: outcome.durationSec,
		PivotPath:       outcome.pivotPath(),
	}
	if outcome.wasAutoDetected {
		resp.DetectedLangs = []string{outcome.resolvedSrc}
	}
	if outcome.withMetadata {
		resp.Metadata = outcome.metadata()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranslateGET(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	beamSize, _ := strconv.Atoi(q.Get("beam_size"))

	var splitSentences *bool
	if raw := q.Get("perform_sentence_splitting"); raw != "" {
		v := raw == "true" || raw == "1" || raw == "yes"
		splitSentences = &v
	}

	outcome, ok := s.runTranslate(w, r, q["text"], q.Get("source_lang"), q.Get("target_lang"), beamSize, splitSentences)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, translateGETResponse{
		Translations: outcome.translated(),
		PivotPath:    outcome.pivotPath(),
	})
}

// translateOutcome holds everything both /translate response shapes are
// built from, so GET and POST share one execution path.
type translateOutcome struct {
	results         []engine.TranslationResult
	resolvedSrc     string
	targetLang      string
	wasAutoDetected bool
	withMetadata    bool
	durationSec     float64
}

func (o *translateOutcome) translated() []string {
	out := make([]string, len(o.results))
	for i, res := range o.results {
		out[i] = res.Text
	}
	return out
}

func (o *translateOutcome) pivotPath() string {
	for _, res := range o.results {
		if res.Metadata.WasPivoted {
			return res.Metadata.SourceLang + "->" + res.Metadata.PivotLang + "->" + res.Metadata.TargetLang
		}
	}
	return ""
}

func (o *translateOutcome) metadata() []engine.ResultMetadata {
	out := make([]engine.ResultMetadata, len(o.results))
	for i, res := range o.results {
		out[i] = res.Metadata
	}
	return out
}

// runTranslate normalizes inputs, validates the language pair, executes the
// translation through a queue slot, and reports the outcome. It writes an
// error response itself and returns ok=false when the request cannot
// proceed.
func (s *Server) runTranslate(w http.ResponseWriter, r *http.Request, texts []string, sourceLang, targetLang string, beamSize int, splitSentences *bool) (*translateOutcome, bool) {
	if targetLang == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "target_lang is required"})
		return nil, false
	}
	targetLang = normalizeLangCode(targetLang)
	if err := validateLangCode(targetLang); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid target_lang: " + err.Error()})
		return nil, false
	}
	if err := validateLangCode(normalizeLangCode(sourceLang)); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid source_lang: " + err.Error()})
		return nil, false
	}

	wasAutoDetected := false
	resolvedSrc := normalizeLangCode(sourceLang)
	if resolvedSrc == "" {
		wasAutoDetected = true
		if sample := firstNonNoiseText(s.cfg, texts); sample != "" {
			resolvedSrc = s.detect.DetectCode(sample)
		}
	}

	if resolvedSrc != "" && resolvedSrc == targetLang {
		writeJSON(w, http.StatusBadRequest, unsupportedPairResponse{
			Error: "Unsupported language pair",
			Src:   resolvedSrc,
			Tgt:   targetLang,
		})
		return nil, false
	}

	outcome := &translateOutcome{
		resolvedSrc:     resolvedSrc,
		targetLang:      targetLang,
		wasAutoDetected: wasAutoDetected,
		withMetadata:    enableMetadataRequested(r),
	}

	if len(texts) == 0 {
		outcome.results = nil
		outcome.durationSec = 0
		return outcome, true
	}

	if beamSize <= 0 {
		beamSize = 5
	}

	slot, err := s.queue.Acquire(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	defer slot.Release()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeoutOrDefault())
	defer cancel()

	start := time.Now()
	results := s.engine.Translate(ctx, texts, engine.Options{
		SourceLang:     resolvedSrc,
		TargetLang:     targetLang,
		Beam:           beamSize,
		WithMetadata:   outcome.withMetadata,
		SplitSentences: splitSentences,
	})
	outcome.durationSec = time.Since(start).Seconds()
	outcome.results = results

	// requestIDMiddleware has already set the echoed or generated ID on the
	// response; each item's row gets its own suffixed ID.
	requestID := w.Header().Get("X-Request-ID")
	producedOutput := false
	for i, res := range results {
		errMsg := ""
		if res.Err != nil {
			errMsg = res.Err.Error()
		} else {
			producedOutput = true
		}
		s.logRequest(r.Context(), telemetry.RequestEntry{
			ID:          requestID + "#" + strconv.Itoa(i),
			Endpoint:    "/translate",
			SourceLang:  res.Metadata.SourceLang,
			TargetLang:  res.Metadata.TargetLang,
			ModelFamily: res.Metadata.ModelFamily,
			WasPivoted:  res.Metadata.WasPivoted,
			DurationMs:  res.Metadata.DurationMs,
			Error:       errMsg,
		})
	}
	if producedOutput {
		slot.RecordSuccess()
	}

	return outcome, true
}

func firstNonNoiseText(cfg *config.Snapshot, texts []string) string {
	opts := textproc.Options{MinChars: cfg.MinChars, MinAlnumRatio: cfg.MinAlnumRatio}
	for _, t := range texts {
		if !textproc.IsNoise(t, opts) {
			return t
		}
	}
	return ""
}

func enableMetadataRequested(r *http.Request) bool {
	v := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Enable-Metadata")))
	return v == "1" || v == "true" || v == "yes"
}
