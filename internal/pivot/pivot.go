// Package pivot selects an intermediate language when no model family
// supports a direct src->tgt pair but a two-hop src->pivot->tgt route
// exists, using a decision-by-priority-list shape: pick the winning pivot
// language the same way a priority list picks a winning candidate.
package pivot

import (
	"fmt"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/translator"
)

// NoPivotError reports that no language is reachable from both src and tgt
// across the configured model families.
type NoPivotError struct {
	Src, Tgt string
}

func (e *NoPivotError) Error() string {
	return fmt.Sprintf("no pivot language connects %s and %s", e.Src, e.Tgt)
}

// families is the fixed evaluation order used to build reachability sets;
// it does not need to match config.FamilyFallbackOrder since pivot
// reachability considers every configured family regardless of preference.
var families = []translator.ModelFamily{translator.OpusMT, translator.MBart50, translator.M2M100}

// reachableFrom returns every language code that some family pairs with
// lang (in either direction, since translation families are symmetric over
// their language set membership).
func reachableFrom(cfg *config.Snapshot, lang string) map[string]bool {
	out := make(map[string]bool)
	for _, fam := range families {
		var set config.LangSet
		switch fam {
		case translator.MBart50:
			set = cfg.MBart50Langs
		case translator.M2M100:
			set = cfg.M2M100Langs
		case translator.OpusMT:
			set = cfg.SupportedLangs
		}
		if set.Has(lang) {
			for code := range set {
				if code != lang {
					out[code] = true
				}
			}
		}
	}
	return out
}

// SelectPivot picks the pivot language connecting src and tgt. The
// configured DefaultPivotLang wins if it is in the intersection (the common
// case: most pairs the source service doesn't directly support still route
// through English); otherwise the first match in a fixed, deterministic
// preference order breaks the tie so repeated calls are stable.
func SelectPivot(cfg *config.Snapshot, src, tgt string) (string, error) {
	fromSrc := reachableFrom(cfg, src)
	fromTgt := reachableFrom(cfg, tgt)

	intersection := make(map[string]bool)
	for lang := range fromSrc {
		if fromTgt[lang] && lang != src && lang != tgt {
			intersection[lang] = true
		}
	}
	if len(intersection) == 0 {
		return "", &NoPivotError{Src: src, Tgt: tgt}
	}

	if cfg.DefaultPivotLang != "" && intersection[cfg.DefaultPivotLang] {
		return cfg.DefaultPivotLang, nil
	}

	for _, candidate := range preferenceOrder {
		if intersection[candidate] {
			return candidate, nil
		}
	}

	// Fall back to the lexicographically smallest code so behavior stays
	// deterministic even for a pivot language outside the preference list.
	best := ""
	for lang := range intersection {
		if best == "" || lang < best {
			best = lang
		}
	}
	return best, nil
}

// preferenceOrder ranks widely-supported, high-resource languages highest
// so pivot routes favor well-trained models on both hops.
var preferenceOrder = []string{"en", "es", "fr", "de", "zh", "ru", "it", "pt", "nl", "pl", "ja"}
