package main

import (
	"context"
	"fmt"

	"github.com/cuemby/vassal-bridge/pkg/bridge"
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy NAME",
	Short: "Stop and delete the container of a vassal",
	Long: `Stop and delete the container named NAME, as the bridge does when a
vassal exits. Use it to clean up after a bridge that was killed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		runner, err := bridge.NewRunner(cfg)
		if err != nil {
			return err
		}

		if err := runner.Destroy(context.Background(), args[0]); err != nil {
			return err
		}

		fmt.Printf("✓ Container %s destroyed\n", args[0])
		return nil
	},
}
