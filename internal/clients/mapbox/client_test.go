package mapbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if resp, ok := args.Get(0).(*http.Response); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

var campus = [][]float64{
	{-22.833870, -47.052640},
	{-22.833500, -47.052640},
	{-22.833500, -47.052100},
}

func routeResponse(coords [][]float64) string {
	encoded := string(polyline6.EncodeCoords(nil, coords))
	return fmt.Sprintf(`{"code":"Ok","routes":[{"geometry":%q,"distance":96.4,"duration":70.2}]}`, encoded)
}

func TestDirections_Success(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, routeResponse(campus)), nil)

	client := NewClientWithHTTPDoer("pk.test", "", mockHTTP)
	directions, err := client.Directions(context.Background(), orb.Point{-47.05264, -22.83387}, orb.Point{-47.0521, -22.8335})

	require.NoError(t, err)
	require.Len(t, directions.Geometry, 3)
	assert.InDelta(t, -47.052640, directions.Geometry[0].Lon(), 1e-6)
	assert.InDelta(t, -22.833870, directions.Geometry[0].Lat(), 1e-6)
	assert.InDelta(t, -47.052100, directions.Geometry[2].Lon(), 1e-6)
	assert.Equal(t, 96.4, directions.DistanceMeters)
	assert.Equal(t, 70.2, directions.DurationSeconds)
	mockHTTP.AssertExpectations(t)
}

func TestDirections_RequestFormat(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodGet
	})).Return(createMockResponse(200, routeResponse(campus)), nil).Run(func(args mock.Arguments) {
		req := args.Get(0).(*http.Request)
		assert.Equal(t, "/directions/v5/mapbox/walking/-47.052640,-22.833870;-47.052100,-22.833500", req.URL.Path)
		assert.Equal(t, "polyline6", req.URL.Query().Get("geometries"))
		assert.Equal(t, "full", req.URL.Query().Get("overview"))
		assert.Equal(t, "pk.test", req.URL.Query().Get("access_token"))
	})

	client := NewClientWithHTTPDoer("pk.test", "https://api.mapbox.com/", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{-47.05264, -22.83387}, orb.Point{-47.0521, -22.8335})
	require.NoError(t, err)
	mockHTTP.AssertExpectations(t)
}

func TestDirections_NoRoute(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(200, `{"code":"NoRoute","message":"No route found","routes":[]}`), nil)

	client := NewClientWithHTTPDoer("pk.test", "", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})

	require.Error(t, err)
	assert.True(t, naverr.Is(err, naverr.ProviderError))
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Equal(t, http.StatusNotFound, naverr.HTTPStatus(err))
}

func TestDirections_EmptyRoutes(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(200, `{"code":"Ok","routes":[]}`), nil)

	client := NewClientWithHTTPDoer("pk.test", "", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestDirections_Unauthorized(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(
		createMockResponse(401, `{"message":"Not Authorized - Invalid Token"}`), nil)

	client := NewClientWithHTTPDoer("bad", "", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})

	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Contains(t, err.Error(), "401")
}

func TestDirections_NonJSONError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(createMockResponse(502, `<html>bad gateway</html>`), nil)

	client := NewClientWithHTTPDoer("pk.test", "", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})
	assert.Equal(t, http.StatusServiceUnavailable, naverr.HTTPStatus(err))
}

func TestDirections_TransportError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).Return(nil, errors.New("dial tcp: timeout"))

	client := NewClientWithHTTPDoer("pk.test", "", mockHTTP)
	_, err := client.Directions(context.Background(), orb.Point{0, 0}, orb.Point{1, 1})

	require.Error(t, err)
	assert.True(t, naverr.Is(err, naverr.ProviderError))
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestDecodeGeometry_InvalidPolyline(t *testing.T) {
	_, err := decodeGeometry("\x01")
	assert.Error(t, err)
}
