// Package osrm computes foot directions against an OSRM routing server. It serves as
// the fallback provider when no Mapbox token is configured.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// HTTPDoer is the subset of *http.Client used by the client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the OSRM route service
type Client struct {
	baseURL    string
	profile    string
	httpClient HTTPDoer
}

// NewClient creates an OSRM client for the given profile, usually "foot"
func NewClient(baseURL, profile string, timeout time.Duration) *Client {
	return NewClientWithHTTPDoer(baseURL, profile, &http.Client{Timeout: timeout})
}

// NewClientWithHTTPDoer creates a client with a custom HTTP implementation
func NewClientWithHTTPDoer(baseURL, profile string, doer HTTPDoer) *Client {
	if profile == "" {
		profile = "foot"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: doer,
	}
}

// Directions requests a route from start to end with full GeoJSON geometry
func (c *Client) Directions(ctx context.Context, start, end orb.Point) (*routing.Directions, error) {
	endpoint := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, c.profile, start.Lon(), start.Lat(), end.Lon(), end.Lat())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, naverr.Provider("failed to create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, naverr.Provider("osrm request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, naverr.Provider("failed to read osrm response", err)
	}

	var response routeResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if resp.StatusCode >= 400 {
			return nil, naverr.Provider(fmt.Sprintf("osrm error %d", resp.StatusCode), err)
		}
		return nil, naverr.Provider("failed to decode osrm response", err)
	}

	// OSRM answers NoRoute and NoSegment with a 400 status
	if response.Code == "NoRoute" || response.Code == "NoSegment" {
		return nil, naverr.NoRoute("no route between the given points")
	}
	if resp.StatusCode >= 400 || response.Code != "Ok" {
		return nil, naverr.Provider(fmt.Sprintf("osrm error %d", resp.StatusCode), fmt.Errorf("%s: %s", response.Code, response.Message))
	}
	if len(response.Routes) == 0 {
		return nil, naverr.NoRoute("no routes found in response")
	}

	route := response.Routes[0]
	if route.Geometry == nil {
		return nil, naverr.NoRoute("route geometry is empty")
	}
	line, ok := route.Geometry.Coordinates.(orb.LineString)
	if !ok || len(line) < 2 {
		return nil, naverr.NoRoute("route geometry is empty")
	}

	return &routing.Directions{
		Geometry:        line,
		DistanceMeters:  route.Distance,
		DurationSeconds: route.Duration,
	}, nil
}

type routeResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
}
