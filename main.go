package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/okayama-voice/opinion-map/internal/answers"
	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/db"
	"github.com/okayama-voice/opinion-map/internal/documents"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/mapview"
	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/okayama-voice/opinion-map/internal/middleware"
	"github.com/okayama-voice/opinion-map/internal/posts"
	"github.com/okayama-voice/opinion-map/internal/realtime"
	"github.com/okayama-voice/opinion-map/internal/regions"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")
	log := logger.Setup()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db.Connect()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Boundaries: a failed tier is logged and left empty.
	index := regions.NewIndex(regions.Municipality{Name: cfg.Municipality.Name, Prefecture: cfg.Municipality.Prefecture})
	specs, err := regions.SpecsFromConfig(cfg.Tiers)
	if err != nil {
		log.Error("invalid tier configuration", "err", err)
		os.Exit(1)
	}
	loadCtx, cancelLoad := context.WithTimeout(ctx, 2*time.Minute)
	if err := index.Load(loadCtx, specs); err != nil {
		log.Warn("some boundary tiers failed to load", "err", err)
	}
	cancelLoad()

	var resolver regions.Resolver = index
	if rc := regions.NewRedisClientFromEnv(); rc != nil {
		resolver = &regions.CachedResolver{Index: index, Client: rc, TTL: regions.CacheTTLFromEnv()}
		defer rc.Close()
	}

	svc := answers.Init(cfg.Municipality.Name)
	posts.Init(cfg, resolver, svc, answers.SetupRoutes())
	documents.Init()

	hub := realtime.NewHub()
	if err := realtime.EnsureTriggers(db.DB, db.Schema); err != nil {
		log.Warn("realtime triggers not installed", "err", err)
	} else {
		listener := &realtime.Listener{DSN: os.Getenv("DATABASE_URL"), Hub: hub}
		go listener.Run(ctx)
	}

	maps := &mapview.Handler{Config: cfg, Index: index, Resolver: resolver}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logger.AccessMiddleware(log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Mount("/posts", posts.SetupRoutes())
	r.Mount("/documents", documents.SetupRoutes())
	r.Mount("/config", maps.ConfigRoutes())
	r.Mount("/regions", maps.RegionRoutes())
	r.Mount("/realtime", realtime.SetupRoutes(&realtime.Server{Hub: hub, Origins: cfg.AllowedOrigins}))
	r.Handle("/metrics", metrics.Handler())

	srv := &http.Server{Addr: "0.0.0.0:" + port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
