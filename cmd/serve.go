package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/peretran-nmt/internal/backend"
	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/detector"
	"github.com/valpere/peretran-nmt/internal/engine"
	"github.com/valpere/peretran-nmt/internal/httpapi"
	"github.com/valpere/peretran-nmt/internal/maintenance"
	"github.com/valpere/peretran-nmt/internal/modelcache"
	"github.com/valpere/peretran-nmt/internal/modelmgr"
	"github.com/valpere/peretran-nmt/internal/queue"
	"github.com/valpere/peretran-nmt/internal/telemetry"
	"github.com/valpere/peretran-nmt/internal/translator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config http_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	addr := serveAddr
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	if addr == "" {
		addr = ":8080"
	}

	sampler := newMemorySampler()
	cache := modelcache.New(modelcache.Options{
		Capacity:        cfg.MaxCachedModels,
		Sampler:         sampler,
		CheckInterval:   cfg.MemoryCheckInterval,
		RAMWarningPct:   cfg.RAMWarningPct,
		RAMCriticalPct:  cfg.RAMCriticalPct,
		VRAMWarningPct:  cfg.VRAMWarningPct,
		VRAMCriticalPct: cfg.VRAMCriticalPct,
		OnEmergency: func(msg string) {
			fmt.Fprintln(os.Stderr, "[cache] memory emergency:", msg)
		},
		OnEvict: func(key string) {
			fmt.Fprintln(os.Stderr, "[cache] evicted:", key)
		},
	})

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
	det := detector.New(detector.WithUndeterminedCode(cfg.UndeterminedCode))
	eng := engine.New(cfg, models, det)
	q := queue.New(cfg)

	srv := httpapi.New(cfg, eng, cache, models, q, det)

	if cfg.TelemetryDBPath != "" {
		tel, err := telemetry.Open(cfg.TelemetryDBPath)
		if err != nil {
			return fmt.Errorf("serve: opening telemetry db: %w", err)
		}
		defer tel.Close()
		srv = srv.WithTelemetry(tel)
	}

	stopMaintenance := maintenance.Start(cfg, cache)
	defer stopMaintenance()

	fmt.Fprintln(os.Stderr, "listening on", addr)
	return http.ListenAndServe(addr, srv.Router())
}
