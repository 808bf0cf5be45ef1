// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pollster/internal/config"
	"github.com/xkilldash9x/pollster/internal/observability"
)

type configKeyType struct{}

// configKey carries the validated *config.Config from the root command to
// its subcommands.
var configKey = configKeyType{}

// flagBindings maps command flags onto the configuration keys they override.
var flagBindings = map[string]string{
	"url":      "campaign.url",
	"count":    "campaign.count",
	"headless": "browser.headless",
	"config":   "campaign.answers_file",
	"backend":  "browser.backend",
	"report":   "campaign.report_file",
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree, so tests never share flag state.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultLauncherFactory)
}

func newRootCommand(factory launcherFactory) *cobra.Command {
	var settingsFile string

	rootCmd := &cobra.Command{
		Use:           "pollster",
		Short:         "Pollster fills and submits a web survey form with weighted random answers.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, settingsFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pollster"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if err := bindFlags(cmd.Flags(), v); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pollster"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting pollster", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (default is ./pollster.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRunCmd(factory))
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with the signal-aware ctx from main.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.Sync()
	return err
}

// initializeConfig reads the optional settings file and the POLLSTER_
// environment into v.
func initializeConfig(v *viper.Viper, settingsFile string) error {
	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("pollster")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("POLLSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if settingsFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading settings file: %w", err)
		}
	}
	return nil
}

// bindFlags lets explicitly set flags take precedence over the settings file
// and the environment.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	for name, key := range flagBindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// configFrom returns the configuration stored by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return cfg, nil
}
