// internal/commands/root.go
package llmeval

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mwiater/llmeval/internal/appconfig"
	"github.com/mwiater/llmeval/internal/logging"
)

var (
	cfgFile       string
	envFile       string
	currentConfig *appconfig.Config
	configMissing bool
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "llmeval",
	Short:        "llmeval: personal benchmark harness for comparing LLMs across providers",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}

		v := appconfig.NewViper()
		v.SetConfigFile(cfgFile)
		configMissing = false
		if err := appconfig.ReadInConfig(v); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			configMissing = true
		}
		for _, name := range []string{"debug", "logFile"} {
			if f := cmd.Root().PersistentFlags().Lookup(name); f != nil && f.Changed {
				_ = v.BindPFlag(name, f)
			}
		}

		cfg, err := appconfig.Decode(v)
		if err != nil {
			return err
		}
		if !configMissing {
			cfg.ConfigPath = cfgFile
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		currentConfig = &cfg

		if err := logging.Init(currentConfig.LogFilePath(), currentConfig.Debug); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.LogEvent("llmeval %s: %s (config %s)", appVersion, cmd.CommandPath(), cfgFile)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logging.Close()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		_ = logging.Close()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with provider API keys (ignored when absent)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
}

// loadEnv reads API keys from the dotenv file without overriding the environment.
func loadEnv() error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// requireConfigFile fails commands that mutate results when no config file was found.
func requireConfigFile() error {
	if configMissing {
		return fmt.Errorf("%w: config file %q not found", appconfig.ErrConfig, cfgFile)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	if currentConfig == nil {
		cfg := appconfig.Default()
		return &cfg
	}
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
