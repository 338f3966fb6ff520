package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fluxior-backend/internal/auth"
	"fluxior-backend/internal/cache"
	"fluxior-backend/internal/config"
	"fluxior-backend/internal/dashboard"
	"fluxior-backend/internal/db"
	"fluxior-backend/internal/handlers"
	"fluxior-backend/internal/leads"
	"fluxior-backend/internal/middleware"
	"fluxior-backend/internal/notifications"
	"fluxior-backend/internal/partners"
	"fluxior-backend/internal/realtime"
	"fluxior-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const leadsChannel = "fluxior:leads"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	checks := map[string]func(context.Context) error{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}

	redisClient, err := cache.NewRedisClient(cfg.RedisURL, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("redis configuration invalid", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewMemory()
	var broker realtime.Broker = realtime.NewMemoryBroker(logger)
	if redisClient != nil {
		redisCache := cache.NewRedis(redisClient, "fluxior:")
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		defer redisClient.Close()

		cacheStore = redisCache
		broker = realtime.NewRedisBroker(redisClient, leadsChannel, logger)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Info("redis disabled, using in-process cache and broker")
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// With change streams on, Mongo is the single source of events and the
	// services stop publishing their own.
	var publisher realtime.Publisher = broker
	if cfg.MongoChangeStreams {
		publisher = realtime.Discard{}
		go watchLeads(appCtx, cols, broker, logger)
	}

	var notifier leads.Notifier
	if mailer := notifications.NewResendClient(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailFromName, cfg.NotifyEmail); mailer != nil {
		notifier = mailer
		logger.Info("resend mailer enabled", slog.String("sender", cfg.EmailFrom))
	} else {
		logger.Info("resend mailer disabled")
	}

	var tokens *auth.Manager
	if cfg.JWTSecret != "" {
		tokens = auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), "fluxior-backend")
	}

	val := validation.New()

	leadService := leads.NewService(leads.NewRepository(cols.Leads), cfg.Timezone, publisher, notifier, logger)
	leadHandler := leads.NewHandler(leadService, val, logger)

	partnerService := partners.NewService(partners.NewRepository(cols.Partners), cacheStore, cfg.CacheTTL(), cfg.Timezone, logger)
	partnerHandler := partners.NewHandler(partnerService, val, logger)

	backend := dashboard.Backend{Leads: leadService, Partners: partnerService}
	dashboardHandler := dashboard.NewHandler(backend, broker, val, cfg.Timezone, cfg.FrontendOrigin, cfg.NotifyTTL(), logger)

	server := &handlers.Server{
		Cfg:    cfg,
		Users:  handlers.NewUserStore(cols.Users),
		Val:    val,
		Log:    logger,
		Tokens: tokens,
		Checks: checks,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	intakeLimiter := middleware.NewRateLimiter(cfg.RateLimitIntake, time.Duration(cfg.RateLimitWindowSec)*time.Second)
	requireSession := middleware.SessionAuth(cfg.AdminAPIKey, tokens)

	r.Get("/healthz", server.Healthz)

	r.Route("/api", func(api chi.Router) {
		// The live dashboard socket outlives any request timeout.
		api.With(requireSession).Get("/admin/dashboard/ws", dashboardHandler.Live)

		api.Group(func(rest chi.Router) {
			rest.Use(chiMiddleware.Timeout(30 * time.Second))

			rest.With(intakeLimiter.Middleware).Post("/leads/wizard", leadHandler.SubmitWizard)
			rest.With(intakeLimiter.Middleware).Post("/leads/contact", leadHandler.SubmitContact)

			rest.Route("/auth", func(authRoutes chi.Router) {
				authRoutes.With(intakeLimiter.Middleware).Post("/login", server.Login)
				authRoutes.Post("/refresh", server.Refresh)
				authRoutes.Post("/logout", server.Logout)
				authRoutes.With(requireSession).Get("/me", server.Me)
			})

			rest.Route("/admin", func(admin chi.Router) {
				admin.Use(requireSession)

				// Partners reach their leads through the dashboard only.
				admin.Group(func(house chi.Router) {
					house.Use(dashboardHandler.RequireAdmin)

					house.Post("/users", server.CreateUser)

					house.Get("/leads", leadHandler.AdminList)
					house.Post("/leads", leadHandler.AdminCreate)
					house.Get("/leads/{id}", leadHandler.AdminGetByID)
					house.Patch("/leads/{id}", leadHandler.AdminUpdate)
					house.Delete("/leads/{id}", leadHandler.AdminDelete)

					house.Get("/partners", partnerHandler.List)
					house.Post("/partners", partnerHandler.Create)
					house.Patch("/partners/{id}/rate", partnerHandler.UpdateRate)
					house.Delete("/partners/{id}", partnerHandler.Delete)
				})

				admin.Get("/dashboard", dashboardHandler.View)
				admin.Get("/dashboard/export.csv", dashboardHandler.ExportCSV)
				admin.Get("/dashboard/export.xlsx", dashboardHandler.ExportXLSX)
				admin.Get("/dashboard/revenue.png", dashboardHandler.RevenueChart)
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopApp()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}

// watchLeads keeps the change stream open, reconnecting after failures.
func watchLeads(ctx context.Context, cols *db.Collections, pub realtime.Publisher, logger *slog.Logger) {
	const retryDelay = 5 * time.Second
	for {
		logger.Info("realtime watch: started")
		err := realtime.WatchLeads(ctx, cols.Leads, pub, logger)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error("realtime watch: failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}
