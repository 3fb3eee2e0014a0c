package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/peretran-nmt/internal/backend"
	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/modelcache"
	"github.com/valpere/peretran-nmt/internal/modelmgr"
	"github.com/valpere/peretran-nmt/internal/translator"
)

var preloadPairs string

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Warm the model cache for a set of language pairs",
	Long:  `Resolves and loads a Translator for each "src->tgt" pair, comma- or semicolon-separated, before serve starts taking traffic.`,
	RunE:  runPreload,
}

func init() {
	preloadCmd.Flags().StringVar(&preloadPairs, "pairs", "", `language pairs to preload, e.g. "en->de,en->fr"`)
	preloadCmd.MarkFlagRequired("pairs")
	rootCmd.AddCommand(preloadCmd)
}

func runPreload(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("preload: %w", err)
	}

	cache := modelcache.New(modelcache.Options{Capacity: cfg.MaxCachedModels})
	rt := backend.Unconfigured{}
	source := backend.NewLocalModelSource(cfg.PreloadedModelsDir)
	loader := func(family translator.ModelFamily, modelPath, srcLang, tgtLang string) (translator.Translator, error) {
		switch family {
		case translator.MBart50:
			return translator.NewMBart50Translator(modelPath, srcLang, tgtLang, rt), nil
		case translator.M2M100:
			return translator.NewM2M100Translator(modelPath, srcLang, tgtLang, rt), nil
		default:
			return translator.NewOpusMTTranslator(modelPath, srcLang, tgtLang, rt), nil
		}
	}

	models := modelmgr.New(cfg, cache, source, loader)
	errs := models.Preload(context.Background(), preloadPairs)
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, "preload:", e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("preload: %d pair(s) failed", len(errs))
	}
	return nil
}
