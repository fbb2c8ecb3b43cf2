package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dpup/prefab"
	"github.com/dpup/prefab/logging"
	"golang.org/x/sync/errgroup"

	api "github.com/ifsp/robotnav/server/api/v1"
	"github.com/ifsp/robotnav/server/internal/cache"
	"github.com/ifsp/robotnav/server/internal/clients/mapbox"
	"github.com/ifsp/robotnav/server/internal/clients/mqtt"
	"github.com/ifsp/robotnav/server/internal/clients/osrm"
	"github.com/ifsp/robotnav/server/internal/clients/robot"
	"github.com/ifsp/robotnav/server/internal/clients/voice"
	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/journal"
	"github.com/ifsp/robotnav/server/internal/lib/dispatch"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
	"github.com/ifsp/robotnav/server/internal/services"
)

func main() {
	// Load configuration using Prefab's config system
	appConfig := loadConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(logging.EnsureLogger(context.Background()))
	defer cancel()

	// Directions, memoized for repeated requests
	cacheInstance := cache.NewCache()
	cacheInstance.StartPeriodicCleanup(ctx, time.Minute)
	provider := cache.NewDirectionsCache(newProvider(appConfig.Directions), cacheInstance, appConfig.Directions.CacheTTL)

	var bridge *mqtt.Bridge
	if appConfig.MQTT.Enabled {
		var err error
		bridge, err = mqtt.Dial(mqtt.Options{
			Broker:        appConfig.MQTT.Broker,
			ClientID:      appConfig.MQTT.ClientID,
			FixTopic:      appConfig.MQTT.FixTopic,
			CommandPrefix: appConfig.MQTT.CommandPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to connect to MQTT: %v", err)
		}
		defer bridge.Close()
		log.Printf("Connected to MQTT broker at %s", appConfig.MQTT.Broker)
	}

	// Robot-side collaborators are fire-and-forget behind ordered queues
	robotQueue := dispatch.NewQueue("robot", appConfig.Robot.QueueSize, appConfig.Robot.Timeout)
	voiceQueue := dispatch.NewQueue("voice", appConfig.Robot.QueueSize, appConfig.Voice.Timeout)

	var executor robot.Executor
	if appConfig.Robot.Transport == "mqtt" {
		executor = bridge.Executor()
	} else {
		executor = robot.NewClient(appConfig.Robot.BaseURL, appConfig.Robot.Timeout)
	}

	var announcer voice.Announcer = voice.Nop{}
	if appConfig.Voice.Enabled {
		announcer = voice.NewAsync(voice.NewClient(appConfig.Voice.BaseURL, appConfig.Voice.Timeout), voiceQueue)
	}

	var recorder journal.Recorder = journal.Nop{}
	if appConfig.Journal.Enabled {
		j, err := journal.Open(appConfig.Journal.Path)
		if err != nil {
			log.Fatalf("Failed to open journal: %v", err)
		}
		defer j.Close()
		recorder = j
	}

	navService := services.NewNavigationService(appConfig.Navigation, services.Dependencies{
		Provider:  provider,
		Executor:  robot.NewAsync(executor, robotQueue),
		Announcer: announcer,
		Journal:   recorder,
	})
	monitor := services.NewDeviationMonitor(navService, appConfig.Navigation, clock.New())

	if bridge != nil {
		if err := bridge.SubscribeFixes(ctx, navService.IngestFix); err != nil {
			log.Fatalf("Failed to subscribe to GPS fixes: %v", err)
		}
	}

	for _, queue := range []*dispatch.Queue{robotQueue, voiceQueue} {
		if err := queue.Start(ctx); err != nil {
			log.Fatalf("Failed to start dispatch queue: %v", err)
		}
	}
	if err := monitor.Start(ctx); err != nil {
		log.Fatalf("Failed to start deviation monitor: %v", err)
	}

	log.Printf("Navigation server starting")
	log.Printf("Directions provider: %s, robot transport: %s", appConfig.Directions.Provider, appConfig.Robot.Transport)

	handlers := api.NewHandlers(navService, appConfig.Navigation.MonitorPeriod, api.WithHealth(func() api.Health {
		stats := cacheInstance.Stats()
		return api.Health{
			MonitorRunning: monitor.Running(),
			QueuePending: map[string]int{
				"robot": robotQueue.Pending(),
				"voice": voiceQueue.Pending(),
			},
			CacheEntries: stats.TotalEntries,
			CacheStale:   stats.StaleEntries,
		}
	}))

	// Server configuration (port, etc.) will be loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithHTTPHandlerFunc("/", handlers.Home),
		prefab.WithHTTPHandlerFunc("/gps", handlers.PostGPS),
		prefab.WithHTTPHandlerFunc("/gps/nmea", handlers.PostNMEA),
		prefab.WithHTTPHandlerFunc("/gps/live", handlers.GetLive),
		prefab.WithHTTPHandlerFunc("/gps/live/ws", handlers.LiveStream),
		prefab.WithHTTPHandlerFunc("/route", handlers.PostRoute),
		prefab.WithHTTPHandlerFunc("/route.kml", handlers.GetRouteKML),
		prefab.WithHTTPHandlerFunc("/obstacle", handlers.PostObstacle),
		prefab.WithHTTPHandlerFunc("/events", handlers.GetEvents),
		prefab.WithHTTPHandlerFunc("/health", handlers.GetHealth),
	)

	// The server blocks until a shutdown signal; background work stops when it returns
	// or fails.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer cancel()
		if err := server.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		monitor.Stop()
		robotQueue.Stop()
		voiceQueue.Stop()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("Navigation server stopped: %v", err)
	}
	log.Printf("Navigation server stopped")
}

// loadConfig loads configuration using Prefab's config system
// Configuration is loaded from prefab.yaml and environment variables with PF__ prefix
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	sections := []struct {
		key    string
		target interface{}
	}{
		{"navigation", &appConfig.Navigation},
		{"directions", &appConfig.Directions},
		{"robot", &appConfig.Robot},
		{"voice", &appConfig.Voice},
		{"mqtt", &appConfig.MQTT},
		{"journal", &appConfig.Journal},
	}
	for _, section := range sections {
		if err := prefab.Config.Unmarshal(section.key, section.target); err != nil {
			log.Fatalf("Failed to unmarshal %s section: %v", section.key, err)
		}
	}

	return appConfig
}

// newProvider builds the configured directions provider
func newProvider(cfg config.DirectionsConfig) routing.Provider {
	switch cfg.Provider {
	case "osrm":
		return osrm.NewClient(cfg.OSRMURL, cfg.OSRMProfile, cfg.Timeout)
	default:
		return mapbox.NewClient(cfg.MapboxToken, cfg.MapboxURL, cfg.Timeout)
	}
}
