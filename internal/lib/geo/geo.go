package geo

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

// EarthRadius is the mean Earth radius in meters used by all distance calculations
const EarthRadius = 6371000.0

// ErrInvalidCoordinate is returned for positions outside WGS84 bounds
var ErrInvalidCoordinate = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// Distance calculates great-circle distance in meters using the Haversine formula
func Distance(a, b orb.Point) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat())
	lat2 := toRadians(b.Lat())
	dlat := lat2 - lat1
	dlon := toRadians(b.Lon() - a.Lon())

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// Bearing returns the initial great-circle bearing from a to b in degrees, within [0, 360).
// Coincident points have no direction; Bearing returns 0 for them.
func Bearing(a, b orb.Point) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Lat())
	lat2 := toRadians(b.Lat())
	dlon := toRadians(b.Lon() - a.Lon())

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return normalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}

// SignedTurn returns the smallest signed rotation from bearing `from` to bearing `to`,
// within (-180, 180]. Positive values turn right (clockwise), negative values turn left.
func SignedTurn(from, to float64) float64 {
	turn := math.Mod(to-from+540, 360)
	if turn < 0 {
		turn += 360
	}
	turn -= 180
	if turn == -180 {
		return 180
	}
	return turn
}

// IsValid validates latitude and longitude values
func IsValid(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NewPoint creates a position from longitude and latitude values with validation
func NewPoint(longitude, latitude float64) (orb.Point, error) {
	p := orb.Point{longitude, latitude}
	if !IsValid(p) {
		return orb.Point{}, ErrInvalidCoordinate
	}
	return p, nil
}

// PathLength sums the great-circle length of every segment of path
func PathLength(path orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += Distance(path[i-1], path[i])
	}
	return total
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func normalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}
