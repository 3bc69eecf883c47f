package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openmirror/mirrorbox/internal/mirror"
	"github.com/openmirror/mirrorbox/internal/mirror/config"
	"github.com/openmirror/mirrorbox/internal/utils"
	"github.com/openmirror/mirrorbox/internal/version"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "mirrorbox",
	Short:   "One-way periodic mirror of a source directory into a replica",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return setupLogging(viper.GetString("log_file"))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper()
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		slog.Info("mirrorbox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

		m := mirror.NewManager(cfg)

		defer slog.Info("Bye!")
		if err := m.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("mirrorbox run", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("source", "s", "", "Source directory to mirror from")
	rootCmd.PersistentFlags().StringP("replica", "r", "", "Replica directory to mirror into")
	rootCmd.PersistentFlags().DurationP("interval", "i", config.DefaultInterval, "Interval between mirror cycles")
	rootCmd.PersistentFlags().BoolP("watch", "w", false, "Also trigger cycles on source filesystem events")
	rootCmd.PersistentFlags().String("logfile", config.DefaultLogFilePath, "Log file path")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "mirrorbox config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setupLogging routes all log lines to a tinted stdout handler and a plain
// text handler appending to the log file.
func setupLogging(logFile string) error {
	logFile, err := utils.ResolvePath(logFile)
	if err != nil {
		return err
	}
	if err := utils.EnsureParent(logFile); err != nil {
		return err
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)
	return nil
}

func loadConfig(cmd *cobra.Command) error {
	// config path
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(filepath.Join(home, ".mirrorbox"))
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	viper.BindPFlag("source_dir", cmd.Flags().Lookup("source"))
	viper.BindPFlag("replica_dir", cmd.Flags().Lookup("replica"))
	viper.BindPFlag("interval", cmd.Flags().Lookup("interval"))
	viper.BindPFlag("watch", cmd.Flags().Lookup("watch"))
	viper.BindPFlag("log_file", cmd.Flags().Lookup("logfile"))

	// Set up environment variables
	viper.SetEnvPrefix("MIRRORBOX")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() (*config.Config, error) {
	cfg := &config.Config{
		Path:       viper.ConfigFileUsed(),
		SourceDir:  viper.GetString("source_dir"),
		ReplicaDir: viper.GetString("replica_dir"),
		Interval:   config.Duration(viper.GetDuration("interval")),
		Watch:      viper.GetBool("watch"),
		LogFile:    viper.GetString("log_file"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
