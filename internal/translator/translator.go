// Package translator defines the opaque translation capability contract and
// the three model-family adapters that satisfy it: context-aware calls
// with wrapped errors, where the work is delegated to the opaque
// RuntimeBackend/ModelSource capabilities instead of a network service.
package translator

import (
	"context"
	"fmt"

	"github.com/valpere/peretran-nmt/internal/config"
)

// ModelFamily identifies one of the three supported pretrained-model
// families.
type ModelFamily string

const (
	OpusMT  ModelFamily = "opus-mt"
	MBart50 ModelFamily = "mbart50"
	M2M100  ModelFamily = "m2m100"
)

// Supports reports whether family can translate src->tgt given the
// configured language sets.
func (f ModelFamily) Supports(cfg *config.Snapshot, src, tgt string) bool {
	if src == tgt {
		return false
	}
	switch f {
	case MBart50:
		return cfg.MBart50Langs.Has(src) && cfg.MBart50Langs.Has(tgt)
	case M2M100:
		return cfg.M2M100Langs.Has(src) && cfg.M2M100Langs.Has(tgt)
	case OpusMT:
		return cfg.SupportedLangs.Has(src) && cfg.SupportedLangs.Has(tgt)
	default:
		return false
	}
}

// ModelID returns the Hugging Face model identifier and the src/tgt
// language codes as the family expects them (mBART50 needs a "_XX" suffix,
// M2M100 and Opus-MT use bare codes).
func (f ModelFamily) ModelID(src, tgt string) (modelName, srcLang, tgtLang string, err error) {
	switch f {
	case MBart50:
		return "facebook/mbart-large-50-many-to-many-mmt", src + "_XX", tgt + "_XX", nil
	case M2M100:
		return "facebook/m2m100_418M", src, tgt, nil
	case OpusMT:
		return fmt.Sprintf("Helsinki-NLP/opus-mt-%s-%s", src, tgt), src, tgt, nil
	default:
		return "", "", "", fmt.Errorf("translator: unsupported model family %q", f)
	}
}

// NeedsLangTags reports whether a family requires explicit src_lang/tgt_lang
// generation arguments (the multilingual families do; Opus-MT's pair-
// specific models do not).
func (f ModelFamily) NeedsLangTags() bool {
	return f == MBart50 || f == M2M100
}

// RuntimeBackend is the opaque inference capability a Translator adapter
// drives. It stands in for the transformer runtime (e.g. a Python
// subprocess, an ONNX session, or an in-process ctranslate2 binding) which
// is out of scope for this module.
type RuntimeBackend interface {
	// Generate runs batched sequence-to-sequence inference and returns one
	// output string per input, in order.
	Generate(ctx context.Context, modelPath string, inputs []string, opts GenerateOptions) ([]string, error)
	// MoveToCPU releases any accelerator residency for modelPath.
	MoveToCPU(modelPath string)
	// Unload fully releases modelPath's resources.
	Unload(modelPath string)
}

// GenerateOptions bounds a single Run call.
type GenerateOptions struct {
	SrcLang      string
	TgtLang      string
	NeedsLangTag bool
	Beam         int
	MaxNewTokens int
	BatchSize    int
}

// ModelSource resolves a family+pair to an on-disk model path, preferring a
// preloaded snapshot over a fresh hub download.
type ModelSource interface {
	Resolve(ctx context.Context, family ModelFamily, modelName string) (path string, err error)
}

// Translator is the capability internal/modelcache manages and
// internal/engine drives. It never exposes the underlying runtime directly.
type Translator interface {
	// Run translates a batch of texts, returning one translation per input
	// in the same order.
	Run(ctx context.Context, batch []string, maxTokens, beam int) ([]string, error)
	MoveToCPU()
	Release()
}

// adapter is the shared implementation behind the three family-scoped
// constructors below; only the family and the language-tag behavior differ.
type adapter struct {
	family    ModelFamily
	modelPath string
	srcLang   string
	tgtLang   string
	backend   RuntimeBackend
}

func newAdapter(family ModelFamily, modelPath, srcLang, tgtLang string, backend RuntimeBackend) *adapter {
	return &adapter{family: family, modelPath: modelPath, srcLang: srcLang, tgtLang: tgtLang, backend: backend}
}

func (a *adapter) Run(ctx context.Context, batch []string, maxTokens, beam int) ([]string, error) {
	out, err := a.backend.Generate(ctx, a.modelPath, batch, GenerateOptions{
		SrcLang:      a.srcLang,
		TgtLang:      a.tgtLang,
		NeedsLangTag: a.family.NeedsLangTags(),
		Beam:         beam,
		MaxNewTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("translator: %s generate: %w", a.family, err)
	}
	if len(out) != len(batch) {
		return nil, fmt.Errorf("translator: %s returned %d outputs for %d inputs", a.family, len(out), len(batch))
	}
	return out, nil
}

func (a *adapter) MoveToCPU() { a.backend.MoveToCPU(a.modelPath) }
func (a *adapter) Release()   { a.backend.Unload(a.modelPath) }

// NewOpusMTTranslator adapts backend to the Opus-MT pair-specific model at
// modelPath for the given src/tgt codes.
func NewOpusMTTranslator(modelPath, src, tgt string, backend RuntimeBackend) Translator {
	return newAdapter(OpusMT, modelPath, src, tgt, backend)
}

// NewMBart50Translator adapts backend to the shared mBART50 multilingual
// model, tagging generation with the "_XX"-suffixed language codes.
func NewMBart50Translator(modelPath, srcTag, tgtTag string, backend RuntimeBackend) Translator {
	return newAdapter(MBart50, modelPath, srcTag, tgtTag, backend)
}

// NewM2M100Translator adapts backend to the shared M2M100 multilingual
// model.
func NewM2M100Translator(modelPath, src, tgt string, backend RuntimeBackend) Translator {
	return newAdapter(M2M100, modelPath, src, tgt, backend)
}
