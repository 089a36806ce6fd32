package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ClusterLabs/pcs-sub012/internal/config"
)

// Version is the current release.
const Version = "0.1.0"

var (
	cfgFile   string
	overrides []string
)

var rootCmd = &cobra.Command{
	Use:   "clusterd",
	Short: "Asynchronous cluster configuration task daemon",
	Long: `clusterd accepts cluster configuration commands over HTTP, runs them in a
pool of worker processes and keeps their progress reports and results until
the caller collects them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a config value, e.g. --set pool.size=8")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig applies defaults, the config file, CLUSTERD_* environment
// variables and --set overrides, then validates the result.
func loadConfig() (*config.Config, error) {
	args, err := parseOverrides(overrides)
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader().WithCmdArgs(args)
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseOverrides(pairs []string) (map[string]string, error) {
	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", pair)
		}
		args[key] = value
	}
	return args, nil
}
