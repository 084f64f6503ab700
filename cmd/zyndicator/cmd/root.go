package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/matthew-graves/the-zyndicator/internal/config"
	"github.com/matthew-graves/the-zyndicator/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration, loaded before every command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Optional .env file path.
	envFile string
	// Rotating log file, closed by Execute.
	logCloser io.Closer
	// Config keys bound to command-line flags, applied to each new loader.
	flagBindings = map[string]*pflag.Flag{}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "zyndicator",
	Short: "QR-anchored label code scanner",
	Long: `zyndicator reads the printed code next to a QR symbol on a label.

Each frame is searched for a QR code. The band below it is cut out upright,
binarized and read by an OCR engine. Readings are stabilized by a rolling
majority vote and forwarded to a code server that deduplicates and stores them.

Examples:
  zyndicator serve --port 3000
  zyndicator scan ./frames --server ws://localhost:3000/ws
  zyndicator config init`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnvFile(envFile); err != nil {
			return err
		}
		if err := initConfig(); err != nil {
			return err
		}
		logger, closer, err := newLogger(globalConfig.Log, globalConfig.Verbose, os.Stderr)
		if err != nil {
			return err
		}
		logCloser = closer
		slog.SetDefault(logger)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.Flags().GetBool("version")
		if v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "zyndicator version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/zyndicator, /etc/zyndicator)")
	pf.StringVar(&envFile, "env-file", "", "load environment variables from this file (default .env when present)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "also write logs to this file, rotated by size")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	bindFlags(pf, map[string]string{
		"verbose":   "verbose",
		"log.level": "log-level",
		"log.file":  "log-file",
	})
}

// bindFlags records config keys backed by flags. A bound flag only wins
// over file and env values when it was set on the command line.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("bind flag %s: no such flag", name))
		}
		flagBindings[key] = f
	}
}

// newConfigLoader returns a loader on a fresh viper instance with all flag
// bindings applied.
func newConfigLoader() *config.Loader {
	v := viper.New()
	for key, f := range flagBindings {
		_ = v.BindPFlag(key, f)
	}
	return config.NewLoaderWithViper(v)
}

// initConfig reads in config file and ENV variables if set. Validation is
// left to the commands that need a complete configuration.
func initConfig() error {
	configLoader = newConfigLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			slog.Error("Falling back to default configuration", "error", err)
			return config.DefaultConfig()
		}
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = newConfigLoader()
	}
	return configLoader
}
