package main

import (
	"fmt"
	"os"

	"github.com/cuemby/vassal-bridge/pkg/api"
	"github.com/cuemby/vassal-bridge/pkg/config"
	"github.com/cuemby/vassal-bridge/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vassal-bridge",
	Short: "vassal-bridge - run supervised vassals inside containers",
	Long: `vassal-bridge runs one supervised vassal inside a container.

The supervisor spawns one bridge per vassal. The bridge creates and starts
the vassal's container through the local engine socket, hands the
supervisor's control descriptors to the process inside it, forwards the
container's output to stderr and destroys the container when it exits.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOutput, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{
			Level:      log.ParseLevel(level),
			JSONOutput: jsonOutput,
		})
		return nil
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"vassal-bridge version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	api.Version = Version

	addBridgeFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(lsCmd)
}

// addBridgeFlags registers the flags shared by every subcommand.
func addBridgeFlags(flags *pflag.FlagSet) {
	flags.Bool("docker-emperor", false, "Enable the container engine integration")
	flags.Bool("emperor-docker", false, "Alias of --docker-emperor")
	flags.Bool("docker-emperor-required", false, "Like --docker-emperor, but vassals without an image are an error")
	flags.Bool("emperor-docker-required", false, "Alias of --docker-emperor-required")
	flags.Bool("docker-debug", false, "Log every engine request and response")
	flags.String("docker-daemon-socket", config.DefaultSocketPath, "Container engine socket path")
	flags.Duration("socket-timeout", config.DefaultTimeout, "Connect and transfer timeout of engine calls")
	flags.String("vassals-dir", "", "Directory for default proxy sockets (default: working directory)")
	flags.Int("listen-queue", config.DefaultListenQueue, "Backlog of sockets bound by the bridge")
	flags.String("chmod-socket", "", "Octal mode applied to bound unix sockets")
	flags.Int("max-conflict-retries", config.DefaultMaxConflictRetries, "Destroy-and-recreate cycles on a name conflict (0 = unlimited)")
	flags.Duration("conflict-backoff", config.DefaultConflictBackoff, "Pause step between conflict retries")
	flags.String("state-dir", "", "Directory of the container ledger (disabled when empty)")
	flags.String("metrics-addr", "", "Serve health and Prometheus metrics on this address")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Log in JSON")
}

// loadConfig builds the bridge configuration from the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	cfg := config.Default()

	enabled, _ := flags.GetBool("docker-emperor")
	enabledAlias, _ := flags.GetBool("emperor-docker")
	required, _ := flags.GetBool("docker-emperor-required")
	requiredAlias, _ := flags.GetBool("emperor-docker-required")
	cfg.Enabled = enabled || enabledAlias
	cfg.Required = required || requiredAlias

	cfg.Debug, _ = flags.GetBool("docker-debug")
	cfg.SocketPath, _ = flags.GetString("docker-daemon-socket")
	cfg.Timeout, _ = flags.GetDuration("socket-timeout")
	cfg.VassalsDir, _ = flags.GetString("vassals-dir")
	cfg.ListenQueue, _ = flags.GetInt("listen-queue")
	cfg.MaxConflictRetries, _ = flags.GetInt("max-conflict-retries")
	cfg.ConflictBackoff, _ = flags.GetDuration("conflict-backoff")
	cfg.StateDir, _ = flags.GetString("state-dir")
	cfg.MetricsAddr, _ = flags.GetString("metrics-addr")

	mode, _ := flags.GetString("chmod-socket")
	if mode != "" {
		var perm uint32
		if _, err := fmt.Sscanf(mode, "%o", &perm); err != nil {
			return nil, fmt.Errorf("invalid --chmod-socket %q: %w", mode, err)
		}
		cfg.ChmodSocket = perm
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
