package v1

import (
	"fmt"
	"net/http"

	"github.com/dpup/prefab/logging"
)

// Home serves a plain HTML index of the API at the server root
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	// Only handle the root path
	if r.URL.Path != "/" {
		writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	html := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>robotnav</title>
    <style>
        body { font-family: 'Courier New', Consolas, monospace; background: #000; color: #0f0; padding: 20px; line-height: 1.4; }
        a { color: #0ff; text-decoration: none; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">robotnav</span>

Navigation control for the campus delivery robot.

<span class="header">Endpoints:</span>
  POST /gps             {"pos": [lng, lat]}                  - Report a GPS fix
  POST /gps/nmea        raw NMEA sentences                   - Report fixes from a receiver
  GET  <a href="/gps/live">/gps/live</a>                                                  - Smoothed position and target
  GET  /gps/live/ws                                          - Live status over a websocket
  POST /route           {"coordinates": [[lng, lat], [lng, lat]]} - Plan and send a route
  GET  <a href="/route.kml">/route.kml</a>                                                 - Active route as KML
  POST /obstacle        {"hit": true|false}                  - Set or clear the obstacle flag
  GET  <a href="/events">/events?limit=N</a>                                            - Recent navigation events
  GET  <a href="/health">/health</a>                                                    - Monitor, queue and cache state
</pre>
</body>
</html>`

	if _, err := fmt.Fprint(w, html); err != nil {
		logging.Errorw(r.Context(), "Failed to write homepage HTML", "error", err)
	}
}
