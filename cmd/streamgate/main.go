package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/streamgate-proxy/streamgate/internal/api"
	"github.com/streamgate-proxy/streamgate/internal/cache"
	"github.com/streamgate-proxy/streamgate/internal/config"
	"github.com/streamgate-proxy/streamgate/internal/extract"
	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/geoip"
	"github.com/streamgate-proxy/streamgate/internal/netutil"
	"github.com/streamgate-proxy/streamgate/internal/proxy"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
	"github.com/streamgate-proxy/streamgate/internal/slideshow"
	"github.com/streamgate-proxy/streamgate/internal/token"
	"github.com/streamgate-proxy/streamgate/internal/vpn"
)

func main() {
	// 1. Load environment config (.env is optional).
	_ = godotenv.Load()
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	if config.IsWeakKey(cfg.EncryptionKey) {
		fmt.Fprintln(os.Stderr, "fatal: STREAMGATE_ENCRYPTION_KEY is too guessable; pick a stronger key")
		os.Exit(1)
	}

	codec, err := token.NewCodec(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	// 2. Cache substrate: Redis when configured, in-process otherwise.
	var store cache.Store
	var redisStore *cache.RedisStore
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisStore, err = cache.DialRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		store = redisStore
		log.Printf("cache: using redis at %s", cfg.RedisURL)
	} else {
		store = cache.NewMemoryStore(cfg.MemoryCacheEntries)
		log.Printf("cache: using in-process store (%d entries)", cfg.MemoryCacheEntries)
	}
	sessions := cache.NewSessionStore(store, cfg.SessionTTL)
	metadata := cache.NewMetadataStore(store, cfg.MetadataTTL)

	// 3. Extractor.
	extractor := &extract.CommandExtractor{
		Binary:     cfg.ExtractorBinary,
		Classifier: &extract.Classifier{ExtraBlockedPatterns: cfg.BlockPatterns},
	}

	// 4. GeoIP (disabled without a database path).
	geo := geoip.NewService(cfg.GeoIPDBPath)
	defer geo.Close()

	// 5. VPN fleet (optional).
	var fleet *vpn.Fleet
	var fleetStop chan struct{}
	egressInstance := cfg.VPNEgressInstance
	if cfg.VPNConfigPath != "" {
		fleetCfg, err := vpn.LoadFleetConfig(cfg.VPNConfigPath)
		if err != nil {
			log.Fatalf("vpn fleet config: %v", err)
		}
		fleet = vpn.NewFleet(fleetCfg, cfg.GluetunUsername, cfg.GluetunPassword)
		fleet.SetReconnectPolicy(cfg.VPNCooldown, cfg.VPNMaxAttempts)
		fleet.CountryFn = geo.Lookup
		if egressInstance == "" && len(fleet.Instances()) > 0 {
			egressInstance = fleet.Instances()[0]
		}
		fleetStop = make(chan struct{})
		go fleet.RunRefresher(fleetStop, cfg.VPNStatusInterval, cfg.VPNStatusInterval/2)
		log.Printf("vpn: fleet of %d instances, egress via %s", len(fleet.Instances()), egressInstance)
	}

	// 6. Request log.
	logRepo, err := requestlog.OpenRepo(filepath.Join(cfg.StateDir, "requestlog.db"))
	if err != nil {
		log.Fatalf("request log: %v", err)
	}
	defer logRepo.Close()
	logs := requestlog.NewService(requestlog.ServiceConfig{
		Repo:          logRepo,
		QueueSize:     cfg.RequestLogQueueSize,
		FlushBatch:    cfg.RequestLogQueueFlushBatchSize,
		FlushInterval: cfg.RequestLogQueueFlushInterval,
	})
	logs.Start()

	// 7. Slideshow rendering plus scratch-dir cleanup.
	downloader := netutil.NewDirectDownloader(cfg.StreamTimeout, "")
	slideshows := slideshow.NewService(downloader, slideshow.NewFFmpegRenderer(), cfg.TempDir)
	cleaner, err := slideshow.NewCleaner(cfg.TempDir, cfg.TempMaxAge, cfg.CleanupSchedule)
	if err != nil {
		log.Fatalf("cleanup schedule: %v", err)
	}
	cleaner.Start()

	// 8. Gateway.
	var onBlock func()
	if fleet != nil && egressInstance != "" {
		target := egressInstance
		onBlock = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := fleet.HandleBlock(ctx, target); err != nil {
				log.Printf("vpn: block failover on %s: %v", target, err)
			}
		}
	}
	gw := gateway.New(gateway.Config{
		Extractor:         extractor,
		Metadata:          metadata,
		Sessions:          sessions,
		Codec:             codec,
		BaseURL:           cfg.BaseURL,
		ExtractionTimeout: cfg.ExtractionTimeout,
		DownloadLinkTTL:   cfg.DownloadLinkTTL,
		SupportedDomains:  cfg.SupportedDomains,
		OnBlock:           onBlock,
	})

	// 9. HTTP server.
	streamer := proxy.NewStreamer(&http.Client{Timeout: cfg.StreamTimeout}, nil)
	srv := api.NewServer(api.ServerConfig{
		ListenAddress:   cfg.ListenAddress,
		Port:            cfg.Port,
		AdminToken:      cfg.AdminToken,
		APIMaxBodyBytes: int64(cfg.APIMaxBodyBytes),
		Gateway:         gw,
		Streamer:        streamer,
		Store:           store,
		Fleet:           fleet,
		Slideshow:       slideshows,
		Logs:            logs,
		LogRepo:         logRepo,
		EgressInstance:  egressInstance,
	})

	go func() {
		log.Printf("streamgate %s listening on %s:%d", cfg.BaseURL, cfg.ListenAddress, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// 10. Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("received signal %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	if fleetStop != nil {
		close(fleetStop)
	}
	cleaner.Stop()
	logs.Stop()
	if redisStore != nil {
		redisStore.Close()
	}
	log.Println("stopped")
}
