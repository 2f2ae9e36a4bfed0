package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ghcnd-server/internal/config"
	"ghcnd-server/internal/db"
	"ghcnd-server/internal/db/migrate"
	"ghcnd-server/internal/ghcn"
	"ghcnd-server/internal/httpapi"
	"ghcnd-server/internal/logging"
	"ghcnd-server/internal/modules/stations"
	"ghcnd-server/internal/modules/stations/catalog"
	stationsrepo "ghcnd-server/internal/modules/stations/repository"
	stationssvc "ghcnd-server/internal/modules/stations/service"
	"ghcnd-server/internal/modules/weather"
	"ghcnd-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"catalogCachePath", cfg.CatalogCachePath,
		"stationsURL", cfg.StationsURL,
		"inventoryURL", cfg.InventoryURL,
		"seriesBaseURL", cfg.SeriesBaseURL,
		"ghcnHTTPTimeout", cfg.GHCNHTTPTimeout,
		"dbDriver", cfg.Driver,
		"dbDSN", cfg.DSN,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(cfg, logging.Component(logger, "db"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn, logging.Component(logger, "migrate")); err != nil {
		return err
	}
	logger.Info("station index ready")

	archive := ghcn.NewClient(ghcn.Options{
		StationsURL:   cfg.StationsURL,
		InventoryURL:  cfg.InventoryURL,
		SeriesBaseURL: cfg.SeriesBaseURL,
		Timeout:       cfg.GHCNHTTPTimeout,
		Logger:        logging.Component(logger, "ghcn"),
	})

	publisher := mqtt.NewPublisher(cfg, logging.Component(logger, "mqtt"))
	if publisher.Enabled() {
		// Short timeout so a missing broker does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without notifications)", "error", err)
		}
	}
	defer publisher.Disconnect()

	stationsLogger := logging.Component(logger, "stations")
	builder := catalog.NewBuilder(archive, catalog.NewStore(cfg.CatalogCachePath), stationsLogger)
	stationService := stationssvc.NewService(
		builder,
		stationsrepo.NewRepository(dbConn),
		publisher,
		cfg.CatalogCachePath,
		stationsLogger,
	)

	// A failed initial load is retried by the first request that needs the catalog.
	if err := stationService.Init(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warn("initial catalog load failed", "error", err)
	}

	mux := httpapi.NewMux(dbConn, stationService)
	stations.RegisterFeature(mux, stationService)
	weather.RegisterFeature(mux, archive, logging.Component(logger, "weather"))

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
