// Command airdcppd runs the client as a headless daemon: load config,
// build the App, run until SIGINT/SIGTERM. Grounded on cobra's use as the
// CLI bootstrap across the example pack (several repos use
// spf13/cobra+spf13/viper for exactly this shape of single-command daemon
// entrypoint).
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	client "github.com/airdcpp-go/client"
	"github.com/airdcpp-go/client/internal/adc"
	"github.com/airdcpp-go/client/internal/config"
	"github.com/airdcpp-go/client/internal/logging"
)

var (
	configPath string
	dataDir    string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "airdcppd",
		Short: "airdcpp-go headless client daemon",
		RunE:  run,
	}
	root.Flags().StringVar(&configPath, "config", "./airdcpp.yaml", "path to the YAML config file")
	root.Flags().StringVar(&dataDir, "data-dir", "", "override the configured data directory")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warning, error")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := logging.SetLevel(logLevel); err != nil {
		return err
	}
	log := logging.New("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pid, err := loadOrCreatePID(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	app, err := client.New(cfg, pid)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Infof("starting, cid=%s", adc.CIDFromPID(pid))
	return app.Run(ctx)
}

// loadOrCreatePID reads the per-install PID from <dataDir>/pid, generating
// and persisting a fresh random one on first run. The PID never changes
// again: it's the root of this install's CID.
func loadOrCreatePID(dataDir string) (adc.PID, error) {
	path := dataDir + "/pid"
	data, err := os.ReadFile(path)
	if err == nil && len(data) == 24 {
		var pid adc.PID
		copy(pid[:], data)
		return pid, nil
	}

	var pid adc.PID
	if _, err := rand.Read(pid[:]); err != nil {
		return adc.PID{}, err
	}
	if err := os.WriteFile(path, pid[:], 0600); err != nil {
		return adc.PID{}, err
	}
	return pid, nil
}
