package config

import (
	"fmt"
	"time"
)

// Config represents the complete server configuration. Each section is loaded from the
// matching top-level key in prefab.yaml.
type Config struct {
	Navigation NavigationConfig `koanf:"navigation"`
	Directions DirectionsConfig `koanf:"directions"`
	Robot      RobotConfig      `koanf:"robot"`
	Voice      VoiceConfig      `koanf:"voice"`
	MQTT       MQTTConfig       `koanf:"mqtt"`
	Journal    JournalConfig    `koanf:"journal"`
}

// NavigationConfig holds the route-following policy
type NavigationConfig struct {
	SliceStepMeters     float64       `koanf:"slice_step_meters"`
	SliceTurnDegrees    float64       `koanf:"slice_turn_degrees"`
	TurnEmissionDegrees float64       `koanf:"turn_emission_degrees"`
	PositionWindow      int           `koanf:"position_window"`
	MonitorPeriod       time.Duration `koanf:"monitor_period"`
	ArrivalRadiusMeters float64       `koanf:"arrival_radius_meters"`
	CruiseSpeed         int           `koanf:"cruise_speed"`
	ReducedSpeed        int           `koanf:"reduced_speed"`
	MinimumSpeed        int           `koanf:"minimum_speed"`
	ModerateDeviation   float64       `koanf:"moderate_deviation_meters"`
	ModerateHeading     float64       `koanf:"moderate_heading_degrees"`
	SevereDeviation     float64       `koanf:"severe_deviation_meters"`
	SevereHeading       float64       `koanf:"severe_heading_degrees"`
	RerouteDeviation    float64       `koanf:"reroute_deviation_meters"`
	RerouteHeading      float64       `koanf:"reroute_heading_degrees"`
	RerouteCooldown     time.Duration `koanf:"reroute_cooldown"`
	StopBeforeReplace   bool          `koanf:"stop_before_replace"`
	AnnounceReroutes    bool          `koanf:"announce_reroutes"`
}

// DirectionsConfig selects and configures the directions provider
type DirectionsConfig struct {
	Provider    string        `koanf:"provider"` // "mapbox" or "osrm"
	MapboxToken string        `koanf:"mapbox_token"`
	MapboxURL   string        `koanf:"mapbox_url"`
	OSRMURL     string        `koanf:"osrm_url"`
	OSRMProfile string        `koanf:"osrm_profile"`
	Timeout     time.Duration `koanf:"timeout"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// RobotConfig holds command executor settings
type RobotConfig struct {
	Transport string        `koanf:"transport"` // "http" or "mqtt"
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	QueueSize int           `koanf:"queue_size"`
}

// VoiceConfig holds voice announcer settings
type VoiceConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// MQTTConfig holds broker settings for fix ingestion and the mqtt executor transport
type MQTTConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Broker        string `koanf:"broker"`
	ClientID      string `koanf:"client_id"`
	FixTopic      string `koanf:"fix_topic"`
	CommandPrefix string `koanf:"command_prefix"`
}

// JournalConfig holds the event journal location
type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Navigation: NavigationConfig{
			SliceStepMeters:     12,
			SliceTurnDegrees:    25,
			TurnEmissionDegrees: 15,
			PositionWindow:      5,
			MonitorPeriod:       time.Second,
			ArrivalRadiusMeters: 3,
			CruiseSpeed:         60,
			ReducedSpeed:        40,
			MinimumSpeed:        20,
			ModerateDeviation:   4,
			ModerateHeading:     30,
			SevereDeviation:     8,
			SevereHeading:       60,
			RerouteDeviation:    12,
			RerouteHeading:      90,
			RerouteCooldown:     8 * time.Second,
			StopBeforeReplace:   true,
			AnnounceReroutes:    true,
		},
		Directions: DirectionsConfig{
			Provider:    "mapbox",
			MapboxURL:   "https://api.mapbox.com",
			OSRMURL:     "https://router.project-osrm.org",
			OSRMProfile: "foot",
			Timeout:     10 * time.Second,
			CacheTTL:    5 * time.Minute,
		},
		Robot: RobotConfig{
			Transport: "http",
			BaseURL:   "http://localhost:5000",
			Timeout:   2 * time.Second,
			QueueSize: 32,
		},
		Voice: VoiceConfig{
			Enabled: true,
			BaseURL: "http://localhost:5001",
			Timeout: 2 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "robotnav-server",
			FixTopic:      "inertial/gps",
			CommandPrefix: "robot",
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "data/journal.db",
		},
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	n := c.Navigation
	positives := []struct {
		name  string
		value float64
	}{
		{"navigation.slice_step_meters", n.SliceStepMeters},
		{"navigation.slice_turn_degrees", n.SliceTurnDegrees},
		{"navigation.turn_emission_degrees", n.TurnEmissionDegrees},
		{"navigation.arrival_radius_meters", n.ArrivalRadiusMeters},
		{"navigation.moderate_deviation_meters", n.ModerateDeviation},
		{"navigation.moderate_heading_degrees", n.ModerateHeading},
		{"navigation.reroute_deviation_meters", n.RerouteDeviation},
		{"navigation.reroute_heading_degrees", n.RerouteHeading},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.value)
		}
	}

	if n.PositionWindow <= 0 {
		return fmt.Errorf("navigation.position_window must be positive, got %d", n.PositionWindow)
	}
	if n.MonitorPeriod <= 0 {
		return fmt.Errorf("navigation.monitor_period must be positive, got %s", n.MonitorPeriod)
	}
	if n.RerouteCooldown < 0 {
		return fmt.Errorf("navigation.reroute_cooldown must not be negative, got %s", n.RerouteCooldown)
	}
	if n.SevereDeviation < n.ModerateDeviation || n.SevereHeading < n.ModerateHeading {
		return fmt.Errorf("severe thresholds must not be below moderate thresholds")
	}
	if !(n.CruiseSpeed >= n.ReducedSpeed && n.ReducedSpeed >= n.MinimumSpeed && n.MinimumSpeed >= 0 && n.CruiseSpeed <= 100) {
		return fmt.Errorf("speed tiers must satisfy 100 >= cruise >= reduced >= minimum >= 0, got %d/%d/%d",
			n.CruiseSpeed, n.ReducedSpeed, n.MinimumSpeed)
	}

	switch c.Directions.Provider {
	case "mapbox":
		if c.Directions.MapboxToken == "" {
			return fmt.Errorf("directions.mapbox_token is required for the mapbox provider")
		}
	case "osrm":
		if c.Directions.OSRMURL == "" {
			return fmt.Errorf("directions.osrm_url is required for the osrm provider")
		}
	default:
		return fmt.Errorf("unknown directions.provider %q", c.Directions.Provider)
	}

	switch c.Robot.Transport {
	case "http":
		if c.Robot.BaseURL == "" {
			return fmt.Errorf("robot.base_url is required for the http transport")
		}
	case "mqtt":
		if !c.MQTT.Enabled {
			return fmt.Errorf("robot.transport mqtt requires mqtt.enabled")
		}
	default:
		return fmt.Errorf("unknown robot.transport %q", c.Robot.Transport)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal.path is required when the journal is enabled")
	}
	return nil
}
