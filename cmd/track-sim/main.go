package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/legalize2/location-tracker-app/internal/tracksim"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

// Default simulation parameters.
const (
	defaultLinks    = 5
	defaultSamples  = 120
	defaultInterval = 5 * time.Second
	defaultTimeout  = 30 * time.Second
	runTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8090", "Base URL of the tracker service")
		links     = flag.Int("links", defaultLinks, "Number of simulated devices (tracking links)")
		samples   = flag.Int("samples", defaultSamples, "Number of fixes per device")
		interval  = flag.Duration("interval", defaultInterval, "Synthetic capture spacing between fixes")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		subscribe = flag.Bool("subscribe", true, "Verify live delivery over WebSocket")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := &tracksim.Config{
		BaseURL:   *baseURL,
		Links:     *links,
		Samples:   *samples,
		Interval:  *interval,
		Timeout:   *timeout,
		Subscribe: *subscribe,
		Verbose:   *verbose,
	}

	if err := tracksim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}
