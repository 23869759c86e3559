package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnomegl/teleinvite/internal/config"
	"github.com/gnomegl/teleinvite/internal/prompt"
)

var version = "dev"

var (
	homeDir    string
	configFile string
	logLevel   string
	logFile    string
	envFile    string

	logger  *zap.Logger
	presets *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "teleinvite",
	Short: "Teleinvite invites the members of your groups into a target group",
	Long: `Teleinvite walks the groups each of your Telegram accounts belongs to and
invites their members into a single target group, up to a per-account cap.

Run without a subcommand to configure and start inviting. Every question can be
answered ahead of time with a TG_<KEY> environment variable or a .env file.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initLogger(); err != nil {
			return err
		}
		var err error
		presets, err = prompt.NewPresets(envFile)
		if err != nil {
			return err
		}
		logger.Debug("Starting", zap.String("command", cmd.CommandPath()), zap.String("home", homeDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInvite,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&homeDir, "home", config.GetConfigDir(), "Directory holding configuration, sessions and the invite ledger")
	pf.StringVar(&configFile, "config", "", "Path to the configuration file (default <home>/clients.json)")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Path to the log file (default <home>/teleinvite.log)")
	pf.StringVar(&envFile, "env-file", ".env", "File with TG_<KEY> preset answers")

	addInviteFlags(rootCmd.Flags())
}

func initLogger() error {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}

	path := logFile
	if path == "" {
		path = config.GetLogPath(homeDir)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	logger, err = cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.GetConfigPath(homeDir)
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
