package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chaz8081/bpcuff/internal/ble"
	"github.com/chaz8081/bpcuff/internal/bpm"
	"github.com/chaz8081/bpcuff/internal/config"
	"github.com/chaz8081/bpcuff/internal/logging"
	"github.com/chaz8081/bpcuff/internal/publish"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/bpcuff/config.yaml)")
	address := flag.String("address", "", "cuff BLE address, overrides the config file")
	once := flag.Bool("once", false, "exit after the first completed poll")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *address != "" {
		cfg.Device.Address = *address
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(level, cfg.LogFormat)

	printBanner(cfg)

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := ble.NewTinygoAdapter()
	if err := adapter.Enable(); err != nil {
		logger.Error("failed to enable BLE adapter", "error", err)
		os.Exit(1)
	}
	logger.Info("[BLE] adapter ready")

	var publisher *publish.MQTTPublisher
	if cfg.MQTT.Enabled {
		publisher = publish.NewMQTTPublisher(cfg.MQTT, logger)
		if err := publisher.Connect(10 * time.Second); err != nil {
			// Outcomes still get logged locally; publishing recovers on its
			// own through the client's retry loop.
			logger.Warn("mqtt connect failed, continuing without broker", "error", err)
		}
		defer publisher.Close()
	}

	listener := bpm.NewListener()
	listener.UpdateInterval = time.Duration(cfg.Poll.Interval)
	poller := bpm.NewPoller(adapter, listener, logger)
	poller.Timeout = time.Duration(cfg.Poll.NotifyTimeout)

	// The scan callback must stay quick; polls run from the main loop
	// instead. A full channel just drops the advertisement, the cuff
	// re-advertises anyway.
	advCh := make(chan ble.Advertisement, 1)
	go func() {
		err := adapter.Scan(ctx, func(adv ble.Advertisement) {
			if !matchesTarget(cfg, adv) {
				return
			}
			select {
			case advCh <- adv:
			default:
			}
		})
		if err != nil {
			logger.Error("[BLE] scan stopped", "error", err)
		}
		close(advCh)
	}()

	logger.Info("scanning for cuff",
		"address", cfg.Device.Address, "name_prefix", cfg.Device.NamePrefix)

	for {
		select {
		case adv, ok := <-advCh:
			if !ok {
				logger.Info("scan ended, shutting down")
				return
			}
			outcome := poller.HandleAdvertisement(ctx, adv)
			if outcome == nil {
				continue
			}

			logOutcome(logger, outcome)
			if publisher != nil {
				if err := publisher.Publish(outcome); err != nil {
					logger.Error("publish failed", "error", err)
				}
			}
			if *once {
				logger.Info("single poll complete, exiting")
				return
			}

		case <-ctx.Done():
			logger.Info("received shutdown signal")
			return
		}
	}
}

// matchesTarget reports whether an advertisement belongs to the configured
// cuff. An explicit address wins; otherwise the advertised name prefix
// decides.
func matchesTarget(cfg *config.Config, adv ble.Advertisement) bool {
	if cfg.Device.Address != "" {
		return strings.EqualFold(adv.Address, cfg.Device.Address)
	}
	return strings.HasPrefix(adv.LocalName, cfg.Device.NamePrefix)
}

// logOutcome prints one poll result, one line per reading.
func logOutcome(logger *slog.Logger, outcome *bpm.Outcome) {
	if outcome.Measurement == nil {
		logger.Warn("poll finished without a measurement",
			"device", outcome.Device.Name, "readings", len(outcome.Readings))
	} else {
		logger.Info("measurement received", "device", outcome.Device.Name)
	}
	for _, r := range outcome.Readings {
		logger.Info("reading", "key", string(r.Key), "name", r.Name,
			"value", r.Value, "unit", r.Unit)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== bpcuff ===")
	if cfg.Device.Address != "" {
		fmt.Printf("  Device:   %s\n", cfg.Device.Address)
	} else {
		fmt.Printf("  Device:   name prefix %q\n", cfg.Device.NamePrefix)
	}
	fmt.Printf("  Interval: %s\n", time.Duration(cfg.Poll.Interval))
	fmt.Printf("  Timeout:  %s\n", time.Duration(cfg.Poll.NotifyTimeout))
	if cfg.MQTT.Enabled {
		fmt.Printf("  MQTT:     %s:%d topic %s\n", cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.Topic)
	}
	fmt.Printf("  Log:      %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Println("==============")
}
