package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/enrichman/httpgrace"
	"github.com/joho/godotenv"

	"github.com/bassista/tankwatch/internal/analytics"
	route "github.com/bassista/tankwatch/internal/api/route"
	appctx "github.com/bassista/tankwatch/internal/app"
	"github.com/bassista/tankwatch/internal/cache"
	"github.com/bassista/tankwatch/internal/config"
	"github.com/bassista/tankwatch/internal/kv"
	"github.com/bassista/tankwatch/internal/logger"
	"github.com/bassista/tankwatch/internal/observability"
	"github.com/bassista/tankwatch/internal/profile"
	"github.com/bassista/tankwatch/internal/scheduler"
	"github.com/bassista/tankwatch/internal/telemetry"
)

func main() {
	// Optional .env for local development; environment always wins.
	if err := godotenv.Load(); err == nil {
		logger.WithComponent("main").Debug("loaded .env file")
	}

	cfg, err := config.LoadConfig(os.Getenv("TANKWATCH_CONF_PATH"))
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Misc.LogLevel)
	if err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', using 'info': %v", cfg.Misc.LogLevel, err)
		logLevel = logrus.InfoLevel
	}
	logger.Logger.SetLevel(logLevel)
	logger.WithComponent("main").Debugf("log level set to: %s", logLevel.String())
	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)

	profiles, err := profile.NewStore(cfg.Profiles.FilePath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot load tank profiles: %v", err)
	}

	backing, err := kv.NewFileStore(cfg.Cache.DataDir)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init cache directory: %v", err)
	}

	source, err := telemetry.NewSourceFromConfig(cfg.Telemetry)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init telemetry source: %v", err)
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	params := analytics.ParamsFromConfig(cfg.Analytics)

	storeCache := cache.NewStoreCache(backing, clock, cfg.Cache.StalenessThreshold, cfg.Cache.RetentionAge, metrics)
	results := analytics.NewResultCache(clock, cfg.Analytics.ResultTTL, cfg.Analytics.ResultCapacity, cfg.Analytics.MinQuality, params)

	refresher := scheduler.NewRefresher(source, profiles, storeCache, results, params, clock, metrics, scheduler.Options{
		Poll:         cfg.Cache.PollInterval,
		FetchTimeout: cfg.Telemetry.FetchTimeout,
		WindowHours:  cfg.Telemetry.WindowHours,
		WindowDays:   cfg.Telemetry.WindowDays,
	})

	app, err := appctx.New(cfg, profiles, source, storeCache, results, refresher, metrics, clock)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer app.Shutdown()

	app.StartBackground()

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := gin.New()
	route.SetupRoutes(r, app)

	srv := createGraceHttpServer(app.BaseCtx, cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Fatal(err)
	}
}

func createGraceHttpServer(ctx context.Context, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	shutdownTimeout := serverConfig.ShutDownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(shutdownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Info("Shutting down server....")
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), "[http] ", log.LstdFlags)
			},
		),
	)
}
