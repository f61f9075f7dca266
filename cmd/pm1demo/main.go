// Command pm1demo connects to a PM1 chassis, optionally runs a canned
// motion sequence, and optionally serves a live telemetry dashboard.
// It is a demonstration/operator harness, not the SDK's public API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autolabor/pm1sdk"
	"github.com/autolabor/pm1sdk/internal/config"
	"github.com/autolabor/pm1sdk/internal/telemetry"
	"github.com/autolabor/pm1sdk/web"
)

func main() {
	configPath := flag.String("config", "/etc/pm1sdk/config.yaml", "Path to config file")
	port := flag.String("port", "", "Serial port (empty = autodiscover)")
	demoDrive := flag.Bool("demo-drive", false, "Run a canned square-path motion sequence")
	telemetryAddr := flag.String("telemetry", "", "Override telemetry listen address (e.g. :8090)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] pm1demo starting")

	cfg := config.LoadConfig(*configPath)
	if *telemetryAddr != "" {
		cfg.Telemetry.ListenAddr = *telemetryAddr
		cfg.Telemetry.Enabled = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	go connectWithRetry(ctx, *port, 10)

	if cfg.Telemetry.Enabled {
		logger := telemetry.New(telemetry.Config{
			Enabled:    cfg.Logging.Enabled,
			Path:       cfg.Logging.Path,
			IntervalMs: cfg.Logging.Interval,
		})
		srv := telemetry.NewServer(cfg.Telemetry.ListenAddr, snapshotter, logger, web.FS)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("[main] telemetry server exited: %v", err)
			}
		}()
	}

	if *demoDrive {
		go runDemoSequence(ctx)
	}

	<-ctx.Done()
	if err := pm1sdk.Shutdown(); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

// connectable collapses Initialize/Shutdown into the retry helper's
// expected shape.
type connectable struct {
	port string
}

func (c connectable) Connect() error { return pm1sdk.Initialize(c.port) }
func (c connectable) Close() error   { return pm1sdk.Shutdown() }

// connectWithRetry attempts to connect with exponential backoff,
// starting at 1s and doubling up to 60s, retrying up to maxAttempts
// then continuing at the max interval indefinitely.
func connectWithRetry(ctx context.Context, port string, maxAttempts int) {
	c := connectable{port: port}
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[chassis] connect attempt %d/%d failed: %v (retry in %v)", attempt, maxAttempts, err, delay)
			} else {
				log.Printf("[chassis] connect attempt %d failed: %v (retry in %v)", attempt, err, delay)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > maxDelay {
				delay = maxDelay
			}
		} else {
			log.Printf("[chassis] connected successfully (attempt %d)", attempt+1)
			return
		}
	}
}

// snapshotter reads the live SDK state into a telemetry snapshot. Only
// the pose is filled in; before a session is established its fields
// are NaN.
func snapshotter() telemetry.Snapshot {
	pose := pm1sdk.GetOdometry()
	return telemetry.Snapshot{Pose: pose}
}

// runDemoSequence drives a simple square path once a session is up,
// for operators checking a fresh chassis bring-up.
func runDemoSequence(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if pm1sdk.CheckState() == nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	log.Println("[demo] starting square path")
	for side := 0; side < 4; side++ {
		if ctx.Err() != nil {
			return
		}
		if err := pm1sdk.GoStraight(1.0, 0.3); err != nil {
			log.Printf("[demo] go_straight: %v", err)
			return
		}
		if err := pm1sdk.TurnAround(1.5707963, 0.5); err != nil {
			log.Printf("[demo] turn_around: %v", err)
			return
		}
	}
	log.Println("[demo] square path complete")
}
