package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/streamgate-proxy/streamgate/internal/buildinfo"
)

var startTime = time.Now()

type systemInfo struct {
	Version       string `json:"version"`
	GitCommit     string `json:"git_commit"`
	BuildTime     string `json:"build_time"`
	GoVersion     string `json:"go_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// HandleSystemInfo returns a handler for GET /api/v1/system/info.
func HandleSystemInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, systemInfo{
			Version:       buildinfo.Version,
			GitCommit:     buildinfo.GitCommit,
			BuildTime:     buildinfo.BuildTime,
			GoVersion:     runtime.Version(),
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
		})
	}
}
