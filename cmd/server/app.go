package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mantavyam/pitch-note-pilot/internal/broadcast"
	"github.com/mantavyam/pitch-note-pilot/internal/config"
	"github.com/mantavyam/pitch-note-pilot/internal/document"
	"github.com/mantavyam/pitch-note-pilot/internal/identity"
	"github.com/mantavyam/pitch-note-pilot/internal/middleware"
	"github.com/mantavyam/pitch-note-pilot/internal/seed"
	"github.com/mantavyam/pitch-note-pilot/internal/worker"
	"github.com/mantavyam/pitch-note-pilot/redis"
	"github.com/rs/zerolog"
)

type app struct {
	router  *gin.Engine
	service *document.DefaultService
	pool    *worker.WorkerPool
	detach  func()
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	store := document.NewStore(document.WithLogger(log))
	service := document.NewService(store, identity.NewUUIDGenerator(), log)

	// Snapshot events go out through the worker pool; without redis the
	// publisher does nothing.
	pool := worker.NewWorkerPool(cfg.WorkerPoolSize, log)
	client := redis.InitRedis(ctx, cfg.RedisAddress, log)
	publisher := broadcast.NewRedisPublisher(client, cfg.RedisChannel)
	detach := broadcast.New(publisher, pool, log).Attach(store)

	a := &app{
		router:  newRouter(cfg, service, log),
		service: service,
		pool:    pool,
		detach:  detach,
	}

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			a.close()
			return nil, err
		}
		docs, err := seed.Apply(ctx, service, f, log)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("apply seed %s: %w", cfg.SeedFile, err)
		}
		log.Info().Int("documents", len(docs)).Str("file", cfg.SeedFile).Msg("Seed data loaded")
	}

	return a, nil
}

func (a *app) close() {
	a.detach()
	a.pool.Shutdown()
	_ = redis.Close()
}

func newRouter(cfg config.Config, service document.Service, log zerolog.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.ErrorHandler(log))

	// cors setting
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}

	if cfg.IsProduction() {
		// Restrict origins in production
		corsConfig.AllowOrigins = []string{cfg.FrontendAddress}
	} else {
		// Allow all origins in development
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	document.NewHandler(service).RegisterRoutes(router)
	return router
}
