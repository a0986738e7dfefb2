package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"socialflow/internal/api"
	"socialflow/internal/automation"
	"socialflow/internal/config"
	"socialflow/internal/database"
	"socialflow/internal/logging"
	"socialflow/internal/messaging"
	"socialflow/internal/schedule"
	"socialflow/internal/store"
	"socialflow/internal/webhook"
	"socialflow/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	flows := store.NewFlowRepository(db)
	contacts := store.NewContactRepository(db)
	sequences := store.NewSequenceRepository(db)
	integrations := store.NewIntegrationRepository(db)
	products := store.NewProductRepository(db)
	messages := store.NewMessageRepository(db)

	hub := ws.NewHub()
	go hub.Run(ctx)

	gateway := messaging.NewClient(cfg)
	executor := automation.NewExecutor(automation.Stores{
		Contacts:     contacts,
		Sequences:    sequences,
		Integrations: integrations,
		Products:     products,
		Messages:     messages,
	}, gateway, &http.Client{Timeout: cfg.HTTPCallTimeout})
	engine := automation.NewEngine(ctx, flows, flows, executor, automation.WithObserver(hub))

	runner := schedule.NewRunner(flows, engine, cfg.ScheduleReloadInterval)
	if err := runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start schedule runner")
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+api.TenantHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	webhookHandler := webhook.NewHandler(cfg, integrations, contacts, messages, engine, hub)

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Dashboard feed
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	api.Register(r, api.Handlers{
		Flows:        api.NewFlowHandler(flows, engine),
		Contacts:     api.NewContactHandler(contacts),
		Sequences:    api.NewSequenceHandler(sequences, contacts),
		Integrations: api.NewIntegrationHandler(integrations),
		Products:     api.NewProductHandler(products),
		Dashboard:    api.NewDashboardHandler(messages, integrations, gateway),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	<-runner.Stop().Done()
	// ctx is cancelled, so pending delays abort and flows finish promptly.
	engine.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

func requestLogger() gin.HandlerFunc {
	l := logging.Component("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
