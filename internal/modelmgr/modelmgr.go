// Package modelmgr resolves a language pair to a loaded Translator,
// building the candidate model-family list (preferred family first, then
// configured fallbacks filtered to pairs the family actually supports),
// trying each in turn, and caching the result under both the requested and
// the actually-used family key.
package modelmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/modelcache"
	"github.com/valpere/peretran-nmt/internal/translator"
)

// UnsupportedPairError reports that no configured model family can serve
// src->tgt.
type UnsupportedPairError struct {
	Src, Tgt string
}

func (e *UnsupportedPairError) Error() string {
	return fmt.Sprintf("language pair %s->%s is not supported by any model family", e.Src, e.Tgt)
}

// ModelLoadError wraps the last load failure across all attempted families.
type ModelLoadError struct {
	Pair string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load a model for %s: %v", e.Pair, e.Err)
}
func (e *ModelLoadError) Unwrap() error { return e.Err }

// LoaderFunc builds a Translator for one family+pair, given the resolved
// on-disk model path. The loaders in cmd/ implement it by calling
// internal/translator's three family constructors.
type LoaderFunc func(family translator.ModelFamily, modelPath, srcLang, tgtLang string) (translator.Translator, error)

// Manager resolves and caches Translators.
type Manager struct {
	cfg    *config.Snapshot
	cache  *modelcache.Cache
	source translator.ModelSource
	load   LoaderFunc
}

func New(cfg *config.Snapshot, cache *modelcache.Cache, source translator.ModelSource, load LoaderFunc) *Manager {
	return &Manager{cfg: cfg, cache: cache, source: source, load: load}
}

func (m *Manager) isPairSupported(family translator.ModelFamily, src, tgt string) bool {
	return family.Supports(m.cfg, src, tgt)
}

// candidateFamilies builds the ordered family list to attempt for src->tgt:
// explicit preferred family (with optional fallback augmentation), no
// preference with fallback enabled, or no preference with fallback
// disabled (default family only).
func (m *Manager) candidateFamilies(src, tgt, preferred string) []translator.ModelFamily {
	var out []translator.ModelFamily
	seen := make(map[translator.ModelFamily]bool)
	add := func(f translator.ModelFamily) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	if preferred != "" {
		add(translator.ModelFamily(preferred))
		if m.cfg.AutoFamilyFallback {
			for _, f := range m.cfg.FamilyFallbackOrder {
				fam := translator.ModelFamily(strings.TrimSpace(f))
				if fam == translator.ModelFamily(preferred) {
					continue
				}
				if m.isPairSupported(fam, src, tgt) {
					add(fam)
				}
			}
		}
		return out
	}

	if m.cfg.AutoFamilyFallback {
		for _, f := range m.cfg.FamilyFallbackOrder {
			fam := translator.ModelFamily(strings.TrimSpace(f))
			if m.isPairSupported(fam, src, tgt) {
				add(fam)
			}
		}
		return out
	}

	add(translator.ModelFamily(m.cfg.DefaultFamily))
	return out
}

// cacheKey formats the "src->tgt:family" key used to index the model cache.
func cacheKey(src, tgt string, family translator.ModelFamily) string {
	return fmt.Sprintf("%s->%s:%s", src, tgt, family)
}

// Resolve returns a Translator for src->tgt, trying preferredFamily first
// (if given) and then configured fallbacks. On success the Translator is
// cached under both the requested-family key and the actually-used-family
// key, so multilingual models are reused across different requested
// families.
func (m *Manager) Resolve(ctx context.Context, src, tgt, preferredFamily string) (translator.Translator, translator.ModelFamily, error) {
	requestedKey := cacheKey(src, tgt, translator.ModelFamily(nonEmpty(preferredFamily, m.cfg.DefaultFamily)))
	if cached, ok := m.cache.Get(requestedKey); ok {
		if t, ok := cached.(translator.Translator); ok {
			return t, translator.ModelFamily(nonEmpty(preferredFamily, m.cfg.DefaultFamily)), nil
		}
	}

	families := m.candidateFamilies(src, tgt, preferredFamily)
	if len(families) == 0 {
		return nil, "", &UnsupportedPairError{Src: src, Tgt: tgt}
	}

	var lastErr error
	for _, family := range families {
		modelName, srcLang, tgtLang, err := family.ModelID(src, tgt)
		if err != nil {
			lastErr = err
			continue
		}

		path, err := m.source.Resolve(ctx, family, modelName)
		if err != nil {
			lastErr = err
			continue
		}

		t, err := m.load(family, path, srcLang, tgtLang)
		if err != nil {
			lastErr = err
			continue
		}

		actualKey := cacheKey(src, tgt, family)
		m.cache.Put(actualKey, t)
		if actualKey != requestedKey {
			m.cache.PutAlias(requestedKey, actualKey)
		}
		return t, family, nil
	}

	return nil, "", &ModelLoadError{Pair: fmt.Sprintf("%s->%s", src, tgt), Err: lastErr}
}

// Preload warms the cache for a set of "src->tgt" pairs, comma- or
// semicolon-separated, skipping invalid or unsupported entries with a
// best-effort policy: one failure doesn't abort the rest of the batch.
func (m *Manager) Preload(ctx context.Context, pairs string) []error {
	pairs = strings.TrimSpace(pairs)
	if pairs == "" {
		return nil
	}

	var list []string
	for _, p := range strings.Split(pairs, ";") {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	if len(list) == 1 && strings.Contains(list[0], ",") {
		list = nil
		for _, p := range strings.Split(pairs, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
	}

	var errs []error
	for _, pair := range list {
		src, tgt, ok := strings.Cut(pair, "->")
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if !ok || src == "" || tgt == "" {
			errs = append(errs, fmt.Errorf("invalid preload pair %q", pair))
			continue
		}
		if !m.cfg.SupportedLangs.Has(src) || !m.cfg.SupportedLangs.Has(tgt) || src == tgt {
			errs = append(errs, fmt.Errorf("unsupported preload pair %s->%s", src, tgt))
			continue
		}
		if _, _, err := m.Resolve(ctx, src, tgt, ""); err != nil {
			errs = append(errs, fmt.Errorf("preload %s->%s: %w", src, tgt, err))
		}
	}
	return errs
}

func nonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
