package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mapforge.dev/internal/config"
	"mapforge.dev/internal/gen/catalog"
	"mapforge.dev/internal/gen/render"
	"mapforge.dev/internal/gen/tilesheet"
	"mapforge.dev/internal/persistence/rendercache"
	"mapforge.dev/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", "", "http listen address (overrides config)")
		configPath   = flag.String("config", "", "path to config.yaml (optional)")
		dataDir      = flag.String("data", "", "game data directory (overrides config)")
		sheetPath    = flag.String("tilesheet", "", "tile_config.json path (overrides config)")
		cachePath    = flag.String("cache", "", "render cache db path (overrides config)")
		disableCache = flag.Bool("disable_cache", false, "serve without the render cache")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var cfg config.Config
	if strings.TrimSpace(*configPath) != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
	} else {
		cfg.Defaults()
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *sheetPath != "" {
		cfg.TilesheetPath = *sheetPath
	}
	if *cachePath != "" {
		cfg.CachePath = *cachePath
	}

	cat, err := catalog.Load(cfg.DataDir)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}
	digest, files := cat.Digest()
	logger.Printf("catalog: %d files, %d terrains, %d furniture, %d maps (digest %.12s)",
		files, len(cat.Terrain), len(cat.Furniture), len(cat.OmTerrains), digest)

	var selector *tilesheet.Selector
	if cfg.TilesheetPath != "" {
		sheet, err := tilesheet.Load(cfg.TilesheetPath)
		if err != nil {
			logger.Fatalf("load tilesheet: %v", err)
		}
		selector = &tilesheet.Selector{Sheet: sheet, App: cat}
		logger.Printf("tilesheet: %s (%dx%d)", sheet.Name, sheet.TileWidth, sheet.TileHeight)
	} else {
		logger.Printf("no tilesheet configured; RENDER requests fall back to resolve-only replies")
	}

	renderer := &render.Renderer{Cat: cat, Selector: selector}

	var cache *rendercache.Cache
	if cfg.CachePath != "" && !*disableCache {
		cache, err = rendercache.Open(cfg.CachePath, digest)
		if err != nil {
			logger.Fatalf("open render cache: %v", err)
		}
		defer cache.Close()
		logger.Printf("render cache: %s", cfg.CachePath)
	}

	ctx, cancel := signalContext()
	defer cancel()

	server := ws.NewServer(renderer, cache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		resolves, hits := server.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP mapforge_resolves_total Resolve requests handled.\n")
		fmt.Fprintf(rw, "# TYPE mapforge_resolves_total counter\n")
		fmt.Fprintf(rw, "mapforge_resolves_total %d\n", resolves)

		fmt.Fprintf(rw, "# HELP mapforge_cache_hits_total Resolve requests served from the cache.\n")
		fmt.Fprintf(rw, "# TYPE mapforge_cache_hits_total counter\n")
		fmt.Fprintf(rw, "mapforge_cache_hits_total %d\n", hits)

		fmt.Fprintf(rw, "# HELP mapforge_catalog_maps Loaded overmap terrain entries.\n")
		fmt.Fprintf(rw, "# TYPE mapforge_catalog_maps gauge\n")
		fmt.Fprintf(rw, "mapforge_catalog_maps %d\n", len(cat.OmTerrains))
	})
	mux.HandleFunc("/v1/ws", server.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
