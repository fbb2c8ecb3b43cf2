package v1

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/dpup/prefab/logging"
	"github.com/paulmach/orb"
	"github.com/samber/lo"
	"github.com/twpayne/go-kml"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
	"github.com/ifsp/robotnav/server/internal/lib/session"
)

// GetRouteKML renders the active route as a KML document
func (h *Handlers) GetRouteKML(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	route, ok := h.nav.ActiveRoute()
	if !ok {
		writeError(r.Context(), w, naverr.NoRoute("no active route"))
		return
	}

	var buf bytes.Buffer
	if err := routeDocument(route).WriteIndent(&buf, "", "  "); err != nil {
		writeError(r.Context(), w, fmt.Errorf("failed to encode kml: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "route-"+route.ID+".kml"))
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Errorw(r.Context(), "Failed to write kml", "error", err)
	}
}

func routeDocument(route *session.Route) *kml.CompoundElement {
	waypoints := lo.Map(route.Waypoints, func(p orb.Point, i int) kml.Element {
		return kml.Placemark(
			kml.Name(fmt.Sprintf("Waypoint %d", i)),
			kml.Point(kml.Coordinates(toCoordinate(p))),
		)
	})

	return kml.KML(
		kml.Document(
			kml.Name("Route "+route.ID),
			kml.Description(fmt.Sprintf("%.1f m, %.0f s, %d commands",
				route.DistanceMeters, route.DurationSeconds, len(route.Commands))),
			kml.Placemark(
				kml.Name("Route"),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(lo.Map(route.Geometry, func(p orb.Point, _ int) kml.Coordinate {
						return toCoordinate(p)
					})...),
				),
			),
			kml.Folder(append([]kml.Element{kml.Name("Waypoints")}, waypoints...)...),
			kml.Placemark(
				kml.Name("Destination"),
				kml.Point(kml.Coordinates(toCoordinate(route.Destination))),
			),
		),
	)
}

func toCoordinate(p orb.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Lon(), Lat: p.Lat()}
}
