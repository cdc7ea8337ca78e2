package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"channel-lineup/internal/lineup"
	"channel-lineup/internal/platform/config"
	"channel-lineup/internal/platform/logger"
	"channel-lineup/internal/platform/metrics"
	"channel-lineup/internal/refresher"
	"channel-lineup/internal/scraper"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	sourceURL := config.GetEnv("SOURCE_URL", "http://tv.roarzone.info/")
	playerURL := config.GetEnv("PLAYER_URL_TEMPLATE", "http://tv.roarzone.info/player.php?stream=%s")
	dataDir := config.GetEnv("DATA_DIR", ".")
	mapFile := config.GetEnv("CHANNEL_MAP_FILE", filepath.Join(dataDir, "channel_map.json"))
	workers := config.GetEnvInt("SCRAPE_WORKERS", scraper.DefaultWorkers)
	timeout := config.GetEnvDuration("SCRAPE_TIMEOUT", 30*time.Second)
	schedule := config.GetEnv("SYNC_CRON", "0 0 * * *")
	syncOnBoot := config.GetEnvBool("SYNC_ON_BOOT", true)

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	store := lineup.NewFileStore(mapFile)
	notify := lineup.NewLogNotifier(log)
	svc := lineup.NewService(store, lineup.NotifierFunc(func(a lineup.Assignment) {
		notify.NewAssignment(a)
		met.IncNewAssignments()
	}))

	scr := scraper.New(scraper.Config{
		SourceURL:         sourceURL,
		PlayerURLTemplate: playerURL,
		Workers:           workers,
		Timeout:           timeout,
	}, log)

	ref := refresher.New(refresher.Config{
		LockPath: mapFile + ".lock",
		M3UPath:  filepath.Join(dataDir, "playlist.m3u"),
		JSONPath: filepath.Join(dataDir, "playlist.json"),
	}, scr, svc, log, met)

	h := lineup.NewHandler(ref, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler(nil).ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/playlist.m3u", h.GetPlaylistM3U)
	r.Get("/playlist.json", h.GetPlaylistJSON)
	r.Get("/lineup", h.GetLineup)
	r.Post("/refresh", h.Refresh)

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	if err := ref.Start(runCtx, schedule, syncOnBoot); err != nil {
		log.Error("start refresher", "error", err)
		os.Exit(1)
	}

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"channel_map", mapFile,
		"sync_cron", schedule,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	cancelRuns()
	ref.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
