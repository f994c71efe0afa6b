package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/vassal-bridge/pkg/api"
	"github.com/cuemby/vassal-bridge/pkg/attrs"
	"github.com/cuemby/vassal-bridge/pkg/bridge"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run NAME [-- ARGV...]",
	Short: "Run a vassal inside a container",
	Long: `Run the vassal NAME inside a container until the container exits or the
bridge receives SIGINT, SIGTERM or SIGHUP. The container is destroyed on
every exit path.

Arguments after NAME become the container command.

Examples:
  # Run a vassal described by an attribute file
  vassal-bridge run --docker-emperor --attrs /etc/vassals/app.yaml app -- uwsgi --ini app.ini`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVassal,
}

func init() {
	runCmd.Flags().String("attrs", "", "YAML file with the vassal's docker-* attributes")
	runCmd.Flags().Int("emperor-fd", -1, "Supervisor control pipe descriptor")
	runCmd.Flags().Int("emperor-config-fd", -1, "Supervisor config pipe descriptor")
}

func runVassal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	name, argv := args[0], args[1:]

	var store attrs.Store = attrs.Map{}
	if path, _ := cmd.Flags().GetString("attrs"); path != "" {
		fs, err := attrs.Load(path)
		if err != nil {
			return err
		}
		store = fs
	}

	var control []*os.File
	for _, flag := range []string{"emperor-fd", "emperor-config-fd"} {
		fd, _ := cmd.Flags().GetInt(flag)
		if fd >= 0 {
			control = append(control, os.NewFile(uintptr(fd), flag))
		}
	}

	runner, err := bridge.NewRunner(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if cfg.MetricsAddr != "" {
		hs := api.NewHealthServer(runner)
		go func() {
			if err := hs.Start(cfg.MetricsAddr); err != nil {
				log.Logger.Error().Err(err).Msg("health server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = hs.Stop(shutdownCtx)
		}()
	}

	workloadLog := log.WithWorkload(name)
	workloadLog.Debug().Str("session", runner.SessionID()).Msg("bridge starting")

	err = runner.Run(ctx, bridge.Request{
		Name:    name,
		Argv:    argv,
		Attrs:   store,
		Control: control,
	})
	switch {
	case errors.Is(err, bridge.ErrSkipped):
		return nil
	case errors.Is(err, bridge.ErrDisabled):
		log.Warn("container engine integration disabled, pass --docker-emperor to enable it")
		return nil
	case err != nil:
		return fmt.Errorf("vassal %s: %w", name, err)
	}
	return nil
}
