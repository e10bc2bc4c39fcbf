package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"podrepo-agent/internal/config"
	"podrepo-agent/internal/constants"
	"podrepo-agent/internal/system"
	"podrepo-agent/internal/version"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgManager *config.Manager
	logger     *logrus.Logger
	configFile string
	logLevel   string
	logStderr  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "podrepo-agent",
	Short: "CocoaPods source repository agent",
	Long: `podrepo-agent v` + version.Version + `

Keeps the CocoaPods source repositories of this machine in sync with a
project's Podfile and reports which ones are being updated.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initialiseAgent(); err != nil {
			return err
		}
		updateLogLevel(cmd)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	configFile = config.DefaultConfigFile
	logLevel = config.DefaultLogLevel

	rootCmd.PersistentFlags().StringVar(&configFile, "config", configFile, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logStderr, "log-stderr", false, "also write logs to stderr")

	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(diagnosticsCmd)
	rootCmd.AddCommand(versionCmd)
}

// initialiseAgent initialises the configuration manager and logger
func initialiseAgent() error {
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05",
	})

	cfgManager = config.New()
	cfgManager.SetConfigFile(configFile)

	// Load config early to determine log file path
	if err := cfgManager.LoadConfig(); err != nil {
		return err
	}
	logFile := cfgManager.GetConfig().LogFile
	if logFile == "" {
		logFile = config.DefaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var out io.Writer = &lumberjack.Logger{Filename: logFile, MaxSize: 10, MaxBackups: 5, MaxAge: 14, Compress: true}
	if logStderr {
		out = io.MultiWriter(os.Stderr, out)
	}
	logger.SetOutput(out)
	return nil
}

// updateLogLevel applies the --log-level flag, falling back to the config file
func updateLogLevel(cmd *cobra.Command) {
	cfg := cfgManager.GetConfig()

	levelName := cfg.LogLevel
	if cmd.Flag("log-level").Changed {
		levelName = logLevel
		cfg.LogLevel = logLevel
	}
	if levelName == "" {
		levelName = constants.LogLevelInfo
		cfg.LogLevel = levelName
	}

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		logger.WithField("level", levelName).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// checkNotRoot refuses to run commands that touch the repos directory as root
func checkNotRoot() error {
	return system.CheckNotRoot()
}
