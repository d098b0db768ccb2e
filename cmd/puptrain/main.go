// Command puptrain drives a LEGO Powered Up train hub over BLE. By
// default it connects, optionally sets a speed, and holds the link until
// interrupted. -demo runs a short acceleration show and -diag runs a
// command-by-command diagnostic sequence with full traffic logging.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"puptrain/internal/ble"
	"puptrain/internal/config"
	"puptrain/internal/hub"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ~/.config/puptrain/config.yaml)")
	address := flag.String("address", "", "hub address, skips scanning (overrides config)")
	name := flag.String("name", "", "advertised-name substring to scan for (overrides config)")
	speed := flag.Int("speed", 0, "motor power to hold, -100..100")
	led := flag.String("led", "", "LED color to set after connecting")
	demo := flag.Bool("demo", false, "run the demo show and exit")
	diag := flag.Bool("diag", false, "run the diagnostic sequence and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *address != "" {
		cfg.Hub.Address = *address
	}
	if *name != "" {
		cfg.Hub.Name = *name
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	opts := hubOptions(cfg, logger)
	h := hub.New(ble.NewBluetoothAdapter(), opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Connecting to %s...", describeTarget(cfg))
	if err := h.Connect(ctx); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer h.Disconnect()
	log.Printf("Hub ready, %d ports attached", len(h.Ports()))

	if *led != "" {
		h.SetLED(*led)
	}

	switch {
	case *demo:
		runShow(ctx, h)
	case *diag:
		runDiagnostics(ctx, h)
	default:
		if *speed != 0 {
			h.SetSpeed(*speed)
		}
		log.Println("Holding link, Ctrl+C to quit")
		select {
		case <-ctx.Done():
			log.Println("Shutting down...")
		case <-h.HeartbeatStopped():
			log.Println("Heartbeat stopped, link presumed lost")
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func hubOptions(cfg *config.Config, logger *slog.Logger) hub.Options {
	opts := hub.DefaultOptions()
	opts.NameFilter = cfg.Hub.Name
	opts.Address = cfg.Hub.Address
	opts.ScanTimeout = cfg.Hub.ScanTimeout.Std()
	opts.ConnectTimeout = cfg.Hub.ConnectTimeout.Std()
	opts.DiscoveryTimeout = cfg.Discovery.Timeout.Std()
	opts.HeartbeatEnabled = cfg.Heartbeat.Enabled
	opts.HeartbeatInterval = cfg.Heartbeat.Interval.Std()
	opts.RequestFeedback = cfg.Hub.RequestFeedback
	opts.MotorPort = cfg.Hub.MotorPort
	opts.Required = cfg.RequiredKinds()
	opts.InitialLED = cfg.Hub.InitialLED
	opts.Logger = logger
	opts.Observer = hub.NewLogObserver(logger)
	return opts
}

func describeTarget(cfg *config.Config) string {
	if cfg.Hub.Address != "" {
		return cfg.Hub.Address
	}
	return fmt.Sprintf("first hub advertising %q", cfg.Hub.Name)
}

// sleep waits for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runShow ramps the train up, cruises, and brakes back down.
func runShow(ctx context.Context, h *hub.Hub) {
	log.Println("Starting demo show...")
	h.SetLED("green")
	sleep(ctx, 500*time.Millisecond)

	for s := 0; s <= 50; s += 10 {
		h.SetSpeed(s)
		if !sleep(ctx, 700*time.Millisecond) {
			return
		}
	}

	log.Println("Cruising...")
	if !sleep(ctx, 3*time.Second) {
		return
	}

	for s := 50; s >= 0; s -= 10 {
		h.SetSpeed(s)
		if !sleep(ctx, 500*time.Millisecond) {
			return
		}
	}

	h.Stop()
	sleep(ctx, 300*time.Millisecond)
	h.SetLED("white")
	log.Println("Demo show complete")
}

// runDiagnostics exercises the hub one command class at a time, with long
// pauses so each hub response can be matched to its command in the log.
func runDiagnostics(ctx context.Context, h *hub.Hub) {
	log.Println("--- Test 1: LED color changes ---")
	for _, color := range []string{"green", "blue", "red", "white"} {
		h.SetLED(color)
		if !sleep(ctx, time.Second) {
			return
		}
	}

	log.Println("--- Test 2: slow speed steps ---")
	for _, s := range []int{10, 0, -10, 0} {
		h.SetSpeed(s)
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}

	log.Println("--- Test 3: LED + motor combination ---")
	h.SetLED("green")
	sleep(ctx, 500*time.Millisecond)
	h.SetSpeed(20)
	if !sleep(ctx, 3*time.Second) {
		return
	}
	h.Stop()
	sleep(ctx, 500*time.Millisecond)
	h.SetLED("white")

	log.Println("--- Test 4: idle keep-alive soak ---")
	if !sleep(ctx, 10*time.Second) {
		return
	}

	log.Println("All diagnostics complete")
}
