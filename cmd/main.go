package main

import (
	"coinmarket/internal/configuration"
	"coinmarket/internal/database"
	"coinmarket/internal/logger"
	"coinmarket/internal/market"
	"coinmarket/internal/server"
	"coinmarket/internal/session"
	"context"
	"encoding/json"
	"github.com/go-redis/redis/v9"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := runApp(); err != nil {
		os.Exit(1)
	}
}

func runApp() (err error) {
	appContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logOutput := io.Writer(os.Stdout)
	appLogger := logger.NewLogger(logger.LevelInfo, logOutput, os.Stderr)

	defer func() {
		if r := recover(); r != nil {
			appLogger.Errorf("APPLICATION CRASHED: %+v", r)
			err = errors.Errorf("panic: %v", r)
		}
	}()

	if err = configuration.LoadDotEnv(".env"); err != nil {
		appLogger.Error("Error loading .env:", err)
		return err
	}
	configPath := os.Getenv("COINMARKET_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}
	config, err := configuration.GetConfig(configPath)
	if err != nil {
		appLogger.Errorf("Error getting configuration from %s: %v", configPath, err)
		return err
	}

	if config.LogToFile {
		logFile, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			appLogger.Error("Error opening log file:", err)
			return err
		}
		defer func() {
			if err := logFile.Close(); err != nil {
				appLogger.Error("Error closing log file:", err)
			}
		}()
		logOutput = io.MultiWriter(logOutput, logFile)
	}
	appLogger = logger.NewLogger(config.LogLevel, logOutput, os.Stderr)

	if config.LogLevel.Enables(logger.LevelDebug) {
		conf, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			appLogger.Error("Error marshalling Config to JSON:", err)
			return err
		}
		appLogger.Debugf("Config:\n%s", conf)
	}

	var store market.Store
	if config.MemoryDatabase() {
		appLogger.Info("Using in-memory database, data is lost on exit")
		store = database.NewMemory()
	} else {
		appLogger.Info("Connecting to DB at", config.DatabaseURI)
		dbConn, err := database.ConnectDB(appContext, config.DatabaseURI, config.DatabaseName)
		if err != nil {
			appLogger.Error("Error connecting to DB:", err)
			return err
		}
		defer func() {
			if err := dbConn.Disconnect(context.Background()); err != nil {
				appLogger.Error("Error disconnecting from DB:", err)
			}
		}()
		store = database.Database{
			Database:      dbConn.Database(config.DatabaseName),
			Transactions:  config.TransactionsEnabled,
			ChangeStreams: config.ChangeStreamsEnabled,
			PollInterval:  config.FeedPollInterval,
		}
	}

	var sessionStore session.Store
	if config.RedisAddress != "" {
		appLogger.Info("Connecting to Redis at", config.RedisAddress)
		rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddress, Password: config.RedisPassword})
		if err = rdb.Ping(appContext).Err(); err != nil {
			appLogger.Error("Error connecting to Redis:", err)
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				appLogger.Error("Error closing Redis client:", err)
			}
		}()
		sessionStore = session.RedisStore{Redis: rdb, Prefix: session.DefaultRedisPrefix}
	} else {
		appLogger.Info("Keeping sessions in memory")
		memStore := session.NewMemoryStore()
		go memStore.RunJanitor(appContext, time.NewTicker(time.Minute), appLogger)
		sessionStore = memStore
	}

	metrics := server.NewMetrics()
	svc := market.Service{
		Store:   store,
		Logger:  appLogger,
		Metrics: metrics,
	}

	if len(config.SeedMembers) > 0 {
		n, err := svc.SeedMembers(appContext, config.SeedMembers)
		if err != nil {
			appLogger.Error("Error seeding members:", err)
			return err
		}
		appLogger.Infof("Seeded %d of %d configured member(s)", n, len(config.SeedMembers))
	}

	loginLimiter := server.NewRateLimiter(config.LoginRateLimit, config.LoginBurst, appLogger)
	go loginLimiter.RunCleanup(appContext, time.NewTicker(5*time.Minute), 10*time.Minute)

	srv := server.Server{
		Market: svc,
		Sessions: session.Manager{
			Store:  sessionStore,
			Key:    config.AuthSecretKey,
			TTL:    config.SessionTTL,
			Logger: appLogger,
		},
		Logger:       appLogger,
		Metrics:      metrics,
		LoginLimiter: loginLimiter,
		Upgrader:     websocket.Upgrader{CheckOrigin: server.OriginChecker(config.AllowedOrigins)},
	}

	httpSrv := &http.Server{
		Handler:      srv.Router(),
		Addr:         config.ServerAddress,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		<-appContext.Done()
		appLogger.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			appLogger.Error("Error shutting down HTTP server:", err)
		}
	}()

	appLogger.Info("Serving on", httpSrv.Addr)
	if err = httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		appLogger.Error("Error serving HTTP:", err)
		return err
	}
	return nil
}
