/*
Package log provides structured logging for vassal-bridge using zerolog.

The bridge runs as a child of the process supervisor, which collects the
bridge's stderr as the vassal log. Structured records and the raw attach
stream therefore share one sink: structured lines come from this package,
the container's TTY output is written verbatim by pkg/attach.

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
		Output:     os.Stderr,
	})

Context Loggers:

	// Component-specific logs
	engineLog := log.WithComponent("engine")
	engineLog.Debug().Str("path", "/containers/json?all=1").Msg("engine request")

	// Workload-specific logs
	wl := log.WithWorkload("w1")
	wl.Error().Err(err).Msg("unable to create container")

	// Workload + container logs
	cl := log.WithContainer("w1", "3f2a...")
	cl.Info().Msg("container stopped")

# Security

Debug mode in pkg/engine logs request and response bodies verbatim. Do not
enable it when credentials can appear in container environments.
*/
package log
