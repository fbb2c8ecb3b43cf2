package v1

import (
	"net/http"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the map UI is served from another origin on the robot's network
	},
}

// LiveStream pushes the live status over a websocket once per period until the client
// goes away
func (h *Handlers) LiveStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warnw(r.Context(), "Live stream: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Reading is only needed to notice close frames and disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.livePeriod)
	defer ticker.Stop()

	for {
		if err := conn.SetWriteDeadline(time.Now().Add(h.livePeriod + time.Second)); err != nil {
			return
		}
		if err := conn.WriteJSON(h.nav.Live()); err != nil {
			logging.Debugw(r.Context(), "Live stream: client gone", "error", err)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}
