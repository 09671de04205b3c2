// Package server exposes the research pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/agent/core"
	"github.com/mohammad-safakhou/chronicler/internal/agent/telemetry"
	"github.com/mohammad-safakhou/chronicler/internal/report"
	"github.com/mohammad-safakhou/chronicler/internal/search"
	"github.com/mohammad-safakhou/chronicler/internal/store"
)

// Run wires all dependencies and serves the API until the listener fails.
func Run(cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		baseLogger.Printf("migrations: %v", err)
	}

	st, err := store.New(cfg.Storage.Postgres)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}

	idx, err := search.New(cfg.Storage.Index.Path)
	if err != nil {
		return err
	}

	tel := telemetry.NewTelemetry(cfg.Telemetry)
	statusSink := NewRedisSink(rdb)
	renderer := report.NewMarkdownRenderer(cfg.Report)
	sink := core.MultiSink{statusSink, core.LogSink{Logger: log.New(log.Writer(), "[STATUS] ", log.LstdFlags)}}
	orch, err := core.NewPipeline(cfg, renderer, sink, tel)
	if err != nil {
		return err
	}

	secret := []byte(cfg.Server.JWTSecret)
	auth := &AuthHandler{Store: st, Secret: secret}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	rh := &ResearchHandler{
		Store:  st,
		Status: statusSink,
		Orch:   orch,
		Index:  idx,
		Logger: log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
	}
	rh.Register(api, secret)

	sched := NewScheduler(st, rdb, rh)
	sched.Start()
	defer close(sched.Stop)

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	return e.Start(addr)
}
