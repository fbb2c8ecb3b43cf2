package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/paulmach/orb"

	"github.com/ifsp/robotnav/server/internal/clients/mapbox"
	"github.com/ifsp/robotnav/server/internal/clients/osrm"
	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

func main() {
	var (
		providerName = flag.String("provider", "mapbox", "Directions provider: mapbox or osrm")
		token        = flag.String("token", "", "Mapbox access token (or set MAPBOX_TOKEN env var)")
		osrmURL      = flag.String("osrm-url", "https://router.project-osrm.org", "OSRM base URL")
		originStr    = flag.String("origin", "-22.833870,-47.052640", "Origin coordinates (lat,lon)")
		destStr      = flag.String("dest", "-22.832650,-47.050950", "Destination coordinates (lat,lon)")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Directions Test Tool\n\n")
		fmt.Printf("Fetches a walking route and prints the robot program it slices into.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -token=YOUR_TOKEN\n", os.Args[0])
		fmt.Printf("  %s -provider=osrm -origin=\"-22.8338,-47.0526\" -dest=\"-22.8326,-47.0509\"\n", os.Args[0])
		return
	}

	var originLat, originLon, destLat, destLon float64
	if _, err := fmt.Sscanf(*originStr, "%f,%f", &originLat, &originLon); err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	if _, err := fmt.Sscanf(*destStr, "%f,%f", &destLat, &destLon); err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}
	origin := orb.Point{originLon, originLat}
	destination := orb.Point{destLon, destLat}

	var provider routing.Provider
	switch *providerName {
	case "osrm":
		provider = osrm.NewClient(*osrmURL, "foot", 10*time.Second)
	case "mapbox":
		key := *token
		if key == "" {
			key = os.Getenv("MAPBOX_TOKEN")
		}
		if key == "" {
			log.Fatal("Mapbox token required. Use -token flag or MAPBOX_TOKEN env var")
		}
		provider = mapbox.NewClient(key, "", 10*time.Second)
	default:
		log.Fatalf("Unknown provider %q", *providerName)
	}

	fmt.Printf("Directions Test (%s)\n", *providerName)
	fmt.Printf("======================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", originLat, originLon)
	fmt.Printf("Destination: %.6f, %.6f\n", destLat, destLon)
	fmt.Printf("Straight line: %.1f m\n\n", geo.Distance(origin, destination))

	directions, err := provider.Directions(context.Background(), origin, destination)
	if err != nil {
		log.Fatalf("Directions failed: %v", err)
	}

	fmt.Printf("✅ Directions successful!\n")
	fmt.Printf("Distance: %.1f m (geometry %.1f m)\n", directions.DistanceMeters, geo.PathLength(directions.Geometry))
	fmt.Printf("Duration: %.1f minutes\n", directions.DurationSeconds/60.0)
	fmt.Printf("Geometry points: %d\n\n", len(directions.Geometry))

	policy := config.DefaultConfig().Navigation
	waypoints := routing.NewSlicer(policy.SliceStepMeters, policy.SliceTurnDegrees).Slice(directions.Geometry)
	commands := routing.NewCommandGenerator(policy.TurnEmissionDegrees).Generate(waypoints)

	fmt.Printf("Waypoints: %d\n", len(waypoints))
	for i, wp := range waypoints {
		fmt.Printf("  %2d  %.6f, %.6f\n", i, wp.Lat(), wp.Lon())
	}
	fmt.Printf("\nRobot program (%d commands):\n", len(commands))
	for _, cmd := range commands {
		fmt.Printf("  %s\n", cmd)
	}
}
