package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fenilmodi00/nuri-bid-crawler/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "nuri-crawler",
	Short: "nuri-crawler collects open bid announcements from the Nuri procurement portal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.LoadConfig()
		closer, err := setupLogging(logrus.StandardLogger(), cfg.LogLevel, cfg.LogFormat, cfg.LogFile, os.Stdout)
		if err != nil {
			return err
		}
		logFile = closer
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
	SilenceUsage: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging applies level and format to logger and tees output into path when it is set
func setupLogging(logger *logrus.Logger, level, format, path string, stdout io.Writer) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if path == "" {
		logger.SetOutput(stdout)
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(stdout, f))
	return f, nil
}
