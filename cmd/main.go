package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/legalize2/location-tracker-app/internal/adapters/http/api"
	"github.com/legalize2/location-tracker-app/internal/adapters/mqttingest"
	repository "github.com/legalize2/location-tracker-app/internal/adapters/repository"
	"github.com/legalize2/location-tracker-app/internal/adapters/ws"
	service "github.com/legalize2/location-tracker-app/internal/app"
	"github.com/legalize2/location-tracker-app/internal/config"
	"github.com/legalize2/location-tracker-app/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection; the custom registry
	// carries the service's own collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.DispatchWorkers),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithStopGap(time.Duration(cfg.StopGapMinutes) * time.Minute),
		service.WithHistoryLimit(cfg.HistoryLimit),
	}
	if cfg.DBPath != "" {
		store, err := repository.OpenSQLite(ctx, cfg.DBPath)
		if err != nil {
			os.Stderr.WriteString("failed to open database: " + err.Error() + "\n")
			return
		}
		log.Info(ctx, "using sqlite store", logger.String("path", cfg.DBPath))
		opts = append(opts, service.WithStore(store))
	} else {
		log.Info(ctx, "using in-memory store")
	}

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	if cfg.MQTTBrokerURL != "" {
		ingestor := mqttingest.New(svc, cfg.MQTTBrokerURL, cfg.MQTTTopicPrefix)
		if err := ingestor.Start(ctx); err != nil {
			os.Stderr.WriteString("failed to start mqtt ingestion: " + err.Error() + "\n")
			return
		}
		defer ingestor.Stop()
	}

	router := mux.NewRouter()
	api.NewServer(svc, svc).Register(ctx, router)
	router.Handle("/ws", ws.NewHandler(svc.Router(), ws.WithSendBuffer(cfg.SendBuffer)))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
