package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sentinel-dev/sentinel-core/internal/config"
	"github.com/sentinel-dev/sentinel-core/internal/daemon"
	"github.com/sentinel-dev/sentinel-core/internal/logger"
	"github.com/sentinel-dev/sentinel-core/internal/netsample"
)

var (
	socketPath string
	logLevel   string
	logFile    string
)

func main() {
	root := &cobra.Command{
		Use:   "sentineld",
		Short: "sentinel workstation supervisor daemon",
		RunE:  run,
	}

	defaultSocket := defaultSocketPath()
	root.Flags().StringVar(&socketPath, "socket", defaultSocket, "command surface unix socket path")
	root.Flags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
	root.Flags().StringVar(&logFile, "log-file", "", "additionally append logs to this file")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sentineld: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logLevel, logFile); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Default

	userConfigDir, err := config.GetUserConfigDir()
	if err != nil {
		return fmt.Errorf("get user config dir: %w", err)
	}
	projectDir, err := config.GetProjectDir()
	if err != nil {
		return fmt.Errorf("get project dir: %w", err)
	}
	if err := config.EnsureConfigDirs(userConfigDir, projectDir); err != nil {
		return fmt.Errorf("ensure config dirs: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("ensure socket dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return daemon.Run(ctx, daemon.Options{
		Log:             log,
		SocketPath:      socketPath,
		UserConfigDir:   userConfigDir,
		ProjectDir:      projectDir,
		SampleInterval:  netsample.DefaultInterval,
		HistoryCapacity: netsample.DefaultHistoryCapacity,
	})
}

func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "sentinel", "sentinel.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "sentinel.sock")
	}
	return filepath.Join(home, ".sentinel", "sentinel.sock")
}
