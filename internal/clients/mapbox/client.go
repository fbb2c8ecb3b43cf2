// Package mapbox computes walking directions with the Mapbox Directions API.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-polyline"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

const defaultBaseURL = "https://api.mapbox.com"

// polyline6 is the precision Mapbox uses when geometries=polyline6
var polyline6 = polyline.Codec{Dim: 2, Scale: 1e6}

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client provides access to the Mapbox Directions API, walking profile
type Client struct {
	accessToken string
	baseURL     string
	httpClient  HTTPDoer
}

// NewClient creates a new Mapbox Directions client
func NewClient(accessToken, baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(accessToken, baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client with a custom HTTP implementation
func NewClientWithHTTPDoer(accessToken, baseURL string, doer HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		accessToken: accessToken,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  doer,
	}
}

// Directions requests a walking route from start to end. Geometry is decoded at full
// resolution.
func (c *Client) Directions(ctx context.Context, start, end orb.Point) (*routing.Directions, error) {
	query := url.Values{}
	query.Set("geometries", "polyline6")
	query.Set("overview", "full")
	query.Set("access_token", c.accessToken)

	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/walking/%s;%s?%s",
		c.baseURL, formatCoordinate(start), formatCoordinate(end), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, naverr.Provider("failed to create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, naverr.Provider("mapbox request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, naverr.Provider("failed to read mapbox response", err)
	}

	var response directionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, naverr.Provider(fmt.Sprintf("mapbox error %d", resp.StatusCode), fmt.Errorf("%s", truncate(body)))
		}
		return nil, naverr.Provider("failed to decode mapbox response", err)
	}

	switch {
	case response.Code == "NoRoute" || response.Code == "NoSegment":
		return nil, naverr.NoRoute("no walking route between the given points")
	case resp.StatusCode >= 400:
		return nil, naverr.Provider(fmt.Sprintf("mapbox error %d", resp.StatusCode), fmt.Errorf("%s: %s", response.Code, response.Message))
	case len(response.Routes) == 0:
		return nil, naverr.NoRoute("no routes found in response")
	}

	route := response.Routes[0]
	geometry, err := decodeGeometry(route.Geometry)
	if err != nil {
		return nil, naverr.Provider("failed to decode route geometry", err)
	}
	if len(geometry) < 2 {
		return nil, naverr.NoRoute("route geometry is empty")
	}

	return &routing.Directions{
		Geometry:        geometry,
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
	}, nil
}

// decodeGeometry converts a polyline6 string to [lng, lat] points
func decodeGeometry(encoded string) (orb.LineString, error) {
	coords, _, err := polyline6.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}

	line := make(orb.LineString, 0, len(coords))
	for _, coord := range coords {
		line = append(line, orb.Point{coord[1], coord[0]})
	}
	return line, nil
}

func formatCoordinate(p orb.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Lon(), p.Lat())
}

func truncate(body []byte) string {
	if len(body) > 256 {
		return string(body[:256])
	}
	return string(body)
}

type directionsResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Routes  []mapboxRoute `json:"routes"`
}

type mapboxRoute struct {
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
