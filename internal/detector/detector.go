// Package detector identifies the most likely language of a text using
// lingua-go's statistical n-gram model, exposed both in its native
// ISO-639-1 form and as the lowercase LanguageCode convention the rest of
// this module uses, with a configurable sentinel for "could not decide".
package detector

import (
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector        lingua.LanguageDetector
	undeterminedCode string
}

// Option configures a Detector's UndeterminedCode sentinel.
type Option func(*Detector)

// WithUndeterminedCode overrides the default "und" sentinel returned by
// DetectCode when no language can be determined.
func WithUndeterminedCode(code string) Option {
	return func(d *Detector) { d.undeterminedCode = code }
}

func New(opts ...Option) *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	d := &Detector{detector: detector, undeterminedCode: "und"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// DetectCode returns the lowercase language code for text, or the
// configured undetermined sentinel when detection fails. This is the
// method internal/engine's LanguageDetector contract calls.
func (d *Detector) DetectCode(text string) string {
	code, ok := d.DetectISO(text)
	if !ok {
		return d.undeterminedCode
	}
	return strings.ToLower(code)
}
