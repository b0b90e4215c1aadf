package api

import (
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
	"github.com/streamgate-proxy/streamgate/internal/slideshow"
)

// HandleSlideshow handles GET /download-slideshow?url=<token>. The post is
// re-resolved server side, its images and audio are fetched and rendered
// into a video, and the file is served once before its workspace is removed.
func HandleSlideshow(gw *gateway.Gateway, svc *slideshow.Service, logs *requestlog.Service, egress string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := newRecorder(logs, r, "slideshow", egress)

		if svc == nil {
			rec.emit(http.StatusNotImplemented, "SLIDESHOW_DISABLED")
			WriteError(w, http.StatusNotImplemented, "SLIDESHOW_DISABLED", "slideshow rendering is not enabled")
			return
		}

		images, audio, serr := gw.SlideshowAssets(r.Context(), r.URL.Query().Get("url"))
		if serr != nil {
			rec.emit(serr.Status, serr.Code)
			writeServiceError(w, serr)
			return
		}

		outputPath, cleanup, err := svc.Create(r.Context(), images, audio)
		if err != nil {
			rec.emit(http.StatusInternalServerError, "SLIDESHOW_FAILED")
			WriteError(w, http.StatusInternalServerError, "SLIDESHOW_FAILED", "failed to render slideshow")
			return
		}
		defer cleanup()

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Disposition", `attachment; filename="slideshow.mp4"`)
		w.Header().Set("X-Filename", "slideshow.mp4")
		http.ServeFile(w, r, outputPath)
		rec.emit(http.StatusOK, "")
	}
}
