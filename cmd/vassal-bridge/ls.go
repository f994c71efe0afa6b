package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cuemby/vassal-bridge/pkg/bridge"
	"github.com/cuemby/vassal-bridge/pkg/types"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List containers recorded in the ledger",
	Long: `List the containers recorded in the ledger of --state-dir and whether
the engine still has them. Rows marked "stale" belong to bridges that did
not get to tear their container down.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		runner, err := bridge.NewRunner(cfg)
		if err != nil {
			return err
		}

		entries, err := runner.List(context.Background())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No containers recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCONTAINER\tIMAGE\tSTATE\tPID\tENGINE")
		for _, e := range entries {
			engineState := "stale"
			if e.Live {
				engineState = "live"
			}
			h := types.ContainerHandle{ID: e.ContainerID, Name: e.Name}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", e.Name, h.ShortID(), e.Image, e.State, e.PID, engineState)
		}
		return w.Flush()
	},
}
