package osrm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const okResponse = `{
  "code": "Ok",
  "routes": [{
    "geometry": {"type": "LineString", "coordinates": [[-47.05264, -22.83387], [-47.05264, -22.8335], [-47.0521, -22.8335]]},
    "distance": 101.3,
    "duration": 72.9
  }]
}`

func newServer(t *testing.T, code int, body string, check func(r *http.Request)) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDirections_Success(t *testing.T) {
	server := newServer(t, http.StatusOK, okResponse, func(r *http.Request) {
		assert.Equal(t, "/route/v1/foot/-47.052640,-22.833870;-47.052100,-22.833500", r.URL.Path)
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		assert.Equal(t, "full", r.URL.Query().Get("overview"))
	})

	client := NewClient(server.URL, "", time.Second)
	directions, err := client.Directions(context.Background(), orb.Point{-47.05264, -22.83387}, orb.Point{-47.0521, -22.8335})

	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{-47.05264, -22.83387}, {-47.05264, -22.8335}, {-47.0521, -22.8335}}, directions.Geometry)
	assert.Equal(t, 101.3, directions.DistanceMeters)
	assert.Equal(t, 72.9, directions.DurationSeconds)
}

func TestDirections_NoRoute(t *testing.T) {
	server := newServer(t, http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route between points"}`, nil)

	client := NewClient(server.URL, "foot", time.Second)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDirections_InvalidQuery(t *testing.T) {
	server := newServer(t, http.StatusBadRequest, `{"code":"InvalidQuery","message":"Query string malformed"}`, nil)

	client := NewClient(server.URL, "foot", time.Second)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})

	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, err.Error(), "InvalidQuery")
}

func TestDirections_ServerDown(t *testing.T) {
	server := newServer(t, http.StatusOK, okResponse, nil)
	server.Close()

	client := NewClient(server.URL, "foot", time.Second)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestDirections_PointGeometry(t *testing.T) {
	body := `{"code":"Ok","routes":[{"geometry":{"type":"Point","coordinates":[1,2]},"distance":0,"duration":0}]}`
	server := newServer(t, http.StatusOK, body, nil)

	client := NewClient(server.URL, "foot", time.Second)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
