package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"github.com/ifsp/robotnav/server/internal/config"
	"github.com/ifsp/robotnav/server/internal/lib/geo"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "point-distance":
		handlePointDistance()
	case "bearing":
		handleBearing()
	case "slice-polyline":
		handleSlicePolyline()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func pointFlags(fs *flag.FlagSet) (*float64, *float64, *float64, *float64) {
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")
	return lat1, lng1, lat2, lng2
}

func handlePointDistance() {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1, lng1, lat2, lng2 := pointFlags(fs)
	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 -22.83387 --lng1 -47.05264 --lat2 -22.83265 --lng2 -47.05095")
		os.Exit(1)
	}

	p1 := orb.Point{*lng1, *lat1}
	p2 := orb.Point{*lng2, *lat2}

	fmt.Printf("Point 1: %.6f, %.6f\n", *lat1, *lng1)
	fmt.Printf("Point 2: %.6f, %.6f\n", *lat2, *lng2)
	fmt.Printf("Distance: %.2f meters\n", geo.Distance(p1, p2))
}

func handleBearing() {
	fs := flag.NewFlagSet("bearing", flag.ExitOnError)
	lat1, lng1, lat2, lng2 := pointFlags(fs)
	heading := fs.Float64("heading", -1, "Current heading in degrees, prints the turn needed")
	fs.Parse(os.Args[2:])

	p1 := orb.Point{*lng1, *lat1}
	p2 := orb.Point{*lng2, *lat2}
	bearing := geo.Bearing(p1, p2)

	fmt.Printf("Bearing: %.1f°\n", bearing)
	if *heading >= 0 {
		turn := geo.SignedTurn(*heading, bearing)
		direction := "right"
		if turn < 0 {
			direction = "left"
		}
		fmt.Printf("Turn from %.1f°: %.1f° %s\n", *heading, turn, direction)
	}
}

func handleSlicePolyline() {
	fs := flag.NewFlagSet("slice-polyline", flag.ExitOnError)
	encoded := fs.String("polyline", "", "Polyline6 encoded geometry, as returned by Mapbox")
	fs.Parse(os.Args[2:])

	if *encoded == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils slice-polyline --polyline '<polyline6>'")
		os.Exit(1)
	}

	codec := polyline.Codec{Dim: 2, Scale: 1e6}
	coords, _, err := codec.DecodeCoords([]byte(*encoded))
	if err != nil {
		log.Fatalf("Failed to decode polyline: %v", err)
	}

	geometry := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		geometry = append(geometry, orb.Point{c[1], c[0]})
	}

	policy := config.DefaultConfig().Navigation
	waypoints := routing.NewSlicer(policy.SliceStepMeters, policy.SliceTurnDegrees).Slice(geometry)

	fmt.Printf("Decoded %d points, %.1f meters\n", len(geometry), geo.PathLength(geometry))
	fmt.Printf("Sliced into %d waypoints:\n", len(waypoints))
	for i, wp := range waypoints {
		fmt.Printf("  %2d  %.6f, %.6f\n", i, wp.Lat(), wp.Lon())
	}
	for _, cmd := range routing.NewCommandGenerator(policy.TurnEmissionDegrees).Generate(waypoints) {
		fmt.Printf("  %s\n", cmd)
	}
}

func printUsage() {
	fmt.Println("Geo Utilities Test Tool")
	fmt.Println()
	fmt.Println("Usage: test-geo-utils <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  point-distance   Great-circle distance between two points")
	fmt.Println("  bearing          Initial bearing between two points")
	fmt.Println("  slice-polyline   Decode a polyline6 geometry and slice it into waypoints")
	fmt.Println("  help             Show this message")
}
