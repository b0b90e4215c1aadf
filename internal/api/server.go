package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/streamgate-proxy/streamgate/internal/cache"
	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/proxy"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
	"github.com/streamgate-proxy/streamgate/internal/slideshow"
	"github.com/streamgate-proxy/streamgate/internal/vpn"
)

// ServerConfig wires the HTTP server. Gateway and Streamer are required;
// Fleet, Slideshow, Logs and LogRepo are optional and their routes are
// only registered when present.
type ServerConfig struct {
	ListenAddress   string
	Port            int
	AdminToken      string
	APIMaxBodyBytes int64

	Gateway   *gateway.Gateway
	Streamer  *proxy.Streamer
	Store     cache.Store
	Fleet     *vpn.Fleet
	Slideshow *slideshow.Service
	Logs      *requestlog.Service
	LogRepo   *requestlog.Repo

	// EgressInstance names the fleet member this gateway egresses through,
	// recorded with every request log entry.
	EgressInstance string
}

// Server wraps the HTTP server and mux for the gateway API.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
}

// NewServer creates a new API server wired with all routes.
func NewServer(cfg ServerConfig) *Server {
	mux := http.NewServeMux()

	// Public endpoints (no auth).
	public := http.NewServeMux()
	public.Handle("GET /{$}", HandleRoot())
	public.Handle("GET /healthz", HandleHealthz(cfg.Store, cfg.Fleet))
	public.Handle("POST /extract",
		RequestBodyLimitMiddleware(cfg.APIMaxBodyBytes,
			HandleExtract(cfg.Gateway, cfg.Logs, cfg.EgressInstance)))
	public.Handle("GET /stream", HandleStream(cfg.Gateway, cfg.Streamer, cfg.Logs, cfg.EgressInstance))
	public.Handle("GET /download", HandleDownload(cfg.Gateway, cfg.Streamer, cfg.Logs, cfg.EgressInstance))
	public.Handle("GET /download-slideshow", HandleSlideshow(cfg.Gateway, cfg.Slideshow, cfg.Logs, cfg.EgressInstance))
	mux.Handle("/", CORSMiddleware(public))

	// Admin API. An empty admin token disables it entirely rather than
	// leaving the routes open.
	if cfg.AdminToken != "" {
		authed := http.NewServeMux()
		authed.Handle("GET /api/v1/system/info", HandleSystemInfo())
		if cfg.Fleet != nil {
			authed.Handle("GET /api/v1/vpn/status", HandleVPNStatus(cfg.Fleet))
			authed.Handle("POST /api/v1/vpn/{id}/actions/reconnect", HandleVPNReconnect(cfg.Fleet))
			authed.Handle("POST /api/v1/vpn/{id}/actions/rotate", HandleVPNRotate(cfg.Fleet))
		}
		if cfg.LogRepo != nil {
			authed.Handle("GET /api/v1/request-logs", HandleListRequestLogs(cfg.LogRepo))
		}
		limitedAuthed := RequestBodyLimitMiddleware(cfg.APIMaxBodyBytes, authed)
		mux.Handle("/api/", AuthMiddleware(cfg.AdminToken, limitedAuthed))
	}

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.ListenAddress, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
	}
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}
