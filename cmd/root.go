package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "peretran-nmt",
	Short: "Self-hosted neural machine translation service",
	Long: `peretran-nmt serves text translation over HTTP using locally loaded
Opus-MT, mBART50, and M2M100 models, with pivot-language routing, model
caching, and bounded-concurrency admission control.`,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.peretran-nmt.yaml)")
}

// initConfig wires viper to read ENV vars (PERETRAN_ prefix) and an optional
// config file before any subcommand's RunE calls config.New.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".peretran-nmt")
	}

	viper.SetEnvPrefix("peretran")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		cobra.CheckErr(fmt.Errorf("fatal error reading config file: %w", err))
	}
}
