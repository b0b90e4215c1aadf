package api

import (
	"context"
	"net/http"
	"time"

	"github.com/streamgate-proxy/streamgate/internal/cache"
	"github.com/streamgate-proxy/streamgate/internal/vpn"
)

// HandleHealthz returns a handler for GET /healthz.
// No authentication is required. The store check is advisory: the gateway
// degrades to cache misses when the store is down, so this still reports ok.
// VPN state comes from the background refresher's last probe, never from a
// live round trip.
func HandleHealthz(store cache.Store, fleet *vpn.Fleet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		storeStatus := "ok"
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				storeStatus = "unreachable"
			}
		}
		body := map[string]any{
			"status": "ok",
			"store":  storeStatus,
		}
		if fleet != nil {
			instances := make(map[string]string)
			for _, id := range fleet.Instances() {
				if st, ok := fleet.LastStatus(id); ok {
					instances[id] = st.Status
				} else {
					instances[id] = "unknown"
				}
			}
			body["vpn"] = instances
		}
		WriteJSON(w, http.StatusOK, body)
	}
}
