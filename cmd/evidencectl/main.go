// Command evidencectl drives the retrieval pipeline from a terminal: run
// retrievals, fuse text, index evidence and manage corpus membership.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kirillkom/evidence-retrieval/internal/bootstrap"
	"github.com/kirillkom/evidence-retrieval/internal/config"
	"github.com/kirillkom/evidence-retrieval/internal/observability/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "evidencectl",
	Short: "Operate the evidence retrieval engine",
	Long: `evidencectl runs the retrieval pipeline in-process against the stores
configured through the environment (the same variables the api and worker
read). Defaults for corpus, actor and top-k may come from an evidencectl.yaml
file or EVIDENCECTL_* variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./evidencectl.yaml or ~/.config/evidencectl/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("actor", "", "actor id used for corpus access checks")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("evidencectl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "evidencectl"))
		}
	}

	viper.SetEnvPrefix("EVIDENCECTL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger writes JSON logs to stderr so stdout stays machine-readable.
func newLogger(cfg config.Config) *slog.Logger {
	level := cfg.LogLevel
	if override := viper.GetString("log_level"); override != "" {
		level = override
	}
	return logging.NewJSONLoggerTo(os.Stderr, "evidencectl", level)
}

// openApp wires the pipeline from environment configuration.
func openApp(ctx context.Context) (*bootstrap.App, *slog.Logger, error) {
	cfg := config.Load()
	logger := newLogger(cfg)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "evidencectl", Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return app, logger, nil
}

// openInput returns stdin for "-" or an empty path, otherwise the named file.
func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
