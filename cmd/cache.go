package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/peretran-nmt/internal/config"
	"github.com/valpere/peretran-nmt/internal/modelcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Report the model cache configuration",
	Long:  `Prints the configured cache capacity, the model count of a freshly built cache, and current host RAM/VRAM usage without starting the HTTP service.`,
	RunE:  runCacheStatus,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	cache := modelcache.New(modelcache.Options{
		Capacity:        cfg.MaxCachedModels,
		Sampler:         newMemorySampler(),
		RAMWarningPct:   cfg.RAMWarningPct,
		RAMCriticalPct:  cfg.RAMCriticalPct,
		VRAMWarningPct:  cfg.VRAMWarningPct,
		VRAMCriticalPct: cfg.VRAMCriticalPct,
	})
	st := cache.Status()

	fmt.Printf("capacity:       %d\n", st.Capacity)
	fmt.Printf("loaded models:  %d\n", st.Size)
	fmt.Printf("ram usage:      %.1f%%\n", st.RAMPct)
	if st.HasVRAM {
		fmt.Printf("vram usage:     %.1f%%\n", st.VRAMPct)
	} else {
		fmt.Printf("vram usage:     n/a\n")
	}
	return nil
}
