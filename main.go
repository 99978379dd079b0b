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

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskflow/api"
	"taskflow/domain"
	"taskflow/events"
	"taskflow/kanban"
	"taskflow/storage"
	"taskflow/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("load .env: %v", err)
	}
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	client, err := storage.New(cfg.APIURL, cfg.APIToken)
	if err != nil {
		log.Fatalf("api client: %v", err)
	}
	var repo storage.Repository = client
	var rc *redis.Client
	var pubs events.Multi
	var dedup api.Deduper
	if cfg.Redis != nil {
		rc = redis.NewClient(cfg.Redis)
		defer rc.Close()
		repo = storage.NewCache(client, rc, cfg.CacheTTL, cfg.UserID)
		pubs = append(pubs, events.NewRedisPublisher(rc, cfg.EventsChannel))
		dedup = api.NewRedisDeduper(rc, cfg.IdempotencyTTL)
	}

	var settings api.SettingsStore
	if cfg.StorageConn != "" {
		ss, err := storage.NewSettingsStore(cfg.StorageConn, cfg.SettingsTable)
		if err != nil {
			log.Fatalf("settings storage: %v", err)
		}
		settings = ss
		if cfg.EventsQueue != "" {
			qp, err := events.NewQueuePublisher(cfg.StorageConn, cfg.EventsQueue)
			if err != nil {
				log.Fatalf("events queue: %v", err)
			}
			pubs = append(pubs, qp)
		}
	}

	opts := []store.Option{store.WithLogger(logger), store.WithTimeout(cfg.RequestTimeout)}
	if len(pubs) > 0 {
		opts = append(opts, store.WithPublisher(pubs, cfg.UserID))
	}
	st := store.New(repo, opts...)
	defer st.Close()

	auth, err := newAuth(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		st.FetchTasks(ctx, domain.DefaultSettings().Filters(1))
		st.FetchStats(ctx)
	}()
	if rc != nil {
		go events.Listen(ctx, logger, rc, cfg.EventsChannel, func(ev domain.Event) {
			logger.WithFields(log.Fields{"task_id": ev.EntityID, "type": ev.Type}).Debug("remote task change")
			st.Refresh(ctx)
		})
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(middleware.Decompress())
	e.Use(echoprometheus.NewMiddleware("taskflow"))
	api.Register(e, api.Deps{
		Dashboard: st,
		Subtasks:  repo,
		Settings:  settings,
		Mover:     kanban.NewEngine(st, logger),
		Deduper:   dedup,
		Auth:      auth,
		Logger:    logger,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

func newAuth(cfg config) (*api.Auth, error) {
	if cfg.LocalAuthKey != "" {
		return api.NewAuth(api.AuthConfig{LocalSecret: []byte(cfg.LocalAuthKey), Audience: cfg.AuthAudience}), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.AuthDomain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(api.AuthConfig{
		JWKS:        jwks,
		Audience:    cfg.AuthAudience,
		Issuer:      "https://" + cfg.AuthDomain + "/",
		KeyCacheTTL: cfg.JWKSCacheTTL,
	}), nil
}
