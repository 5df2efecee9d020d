package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mohammedgqudah/ff/internal/config"
	"github.com/mohammedgqudah/ff/internal/logging"
	"github.com/mohammedgqudah/ff/internal/output"
	"github.com/mohammedgqudah/ff/internal/telemetry"
	"github.com/mohammedgqudah/ff/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile      string
	verbose      bool
	outputFormat string
	noColor      bool

	// set by loadRuntime before any subcommand runs
	cfg      *config.Config
	logger   *zap.Logger
	provider *telemetry.Provider
)

var rootCmd = &cobra.Command{
	Use:   "ff",
	Short: "Inspect the page cache and inject block device faults",
	Long: `ff looks at what the kernel caches for a file and can make the blocks under
it fail, to study how file systems and applications behave when writeback
hits an I/O error.

Page frame numbers and /proc/kpageflags need CAP_SYS_ADMIN. Device-mapper
commands need root and dmsetup(8).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command
func Execute() error {
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()
	return execute()
}

// execute runs the command tree and reports metrics even when the command
// failed, since cobra skips post-run hooks after an error
func execute() error {
	err := rootCmd.Execute()
	if merr := reportMetrics(rootCmd); merr != nil && err == nil {
		err = merr
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ff.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatHuman, "output format (human, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("metrics", false, "print operation metrics when done")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("metrics", rootCmd.PersistentFlags().Lookup("metrics"))

	// Add subcommands
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(dmCmd)
	rootCmd.AddCommand(extentsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	config.BindDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ff")
	}

	viper.SetEnvPrefix("FF")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadRuntime builds the configuration, logger and metrics provider shared by
// all subcommands
func loadRuntime(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = loaded

	if err := output.ValidateFormat(outputFormat); err != nil {
		return err
	}
	if noColor {
		output.DisableColor()
	}

	logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	if cfg.Metrics {
		provider, err = telemetry.NewProvider(cmd.Context(), &telemetry.Config{
			ServiceName:    "ff",
			ServiceVersion: version.Get().Version,
			Global:         true,
			Logger:         logger,
		})
		if err != nil {
			return err
		}
	}

	logger.Debug("Configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("config_file", viper.ConfigFileUsed()))
	return nil
}

func reportMetrics(cmd *cobra.Command) error {
	if provider == nil {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := provider
	provider = nil
	defer p.Shutdown(ctx)

	samples, err := p.Snapshot(ctx)
	if err != nil {
		return err
	}

	w := cmd.ErrOrStderr()
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.Colors.Heading("Metrics"))
	for _, s := range samples {
		name := s.Name
		if s.Attributes != "" {
			name += "{" + s.Attributes + "}"
		}
		if s.Count > 0 {
			fmt.Fprintf(w, "  %-60s count=%d sum=%g\n", name, s.Count, s.Value)
			continue
		}
		fmt.Fprintf(w, "  %-60s %g\n", name, s.Value)
	}
	return nil
}

func formatter(cmd *cobra.Command) *output.Formatter {
	return output.NewFormatter(cmd.OutOrStdout(), outputFormat)
}
