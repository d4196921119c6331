package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/freshdesk-service/internal/activity"
	"github.com/psds-microservice/freshdesk-service/internal/config"
	"github.com/psds-microservice/freshdesk-service/internal/database"
	"github.com/psds-microservice/freshdesk-service/internal/freshdesk"
	"github.com/psds-microservice/freshdesk-service/internal/handler"
	"github.com/psds-microservice/freshdesk-service/internal/kafka"
	"github.com/psds-microservice/freshdesk-service/internal/router"
	"github.com/psds-microservice/freshdesk-service/internal/service"
)

// NewLogger: JSON-логгер в stdout с уровнем из LOG_LEVEL.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// NewTicketService собирает клиент Freshdesk и сервис поверх него.
func NewTicketService(cfg *config.Config, logger *slog.Logger) (*service.TicketService, error) {
	client, err := freshdesk.NewClient(freshdesk.Config{
		BaseURL:    cfg.Freshdesk.BaseURL,
		APIKey:     cfg.Freshdesk.APIKey,
		Timeout:    cfg.Freshdesk.Timeout,
		MaxRetries: cfg.Freshdesk.MaxRetries,
		Backoff:    cfg.Freshdesk.Backoff,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	return service.NewTicketService(client, service.Settings{
		PerPage:           cfg.PerPage,
		Route:             cfg.Routes,
		TicketsPerRequest: cfg.TicketsPerRequest,
	}, logger), nil
}

// API приложение: HTTP-сервер прокси (режим api).
type API struct {
	cfg      *config.Config
	logger   *slog.Logger
	httpSrv  *http.Server
	producer *kafka.Producer
}

// NewAPI создаёт приложение для режима api.
func NewAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ticketSvc, err := NewTicketService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("freshdesk: %w", err)
	}

	var (
		recorder activity.Recorder = activity.Nop{}
		checks   []handler.Check
	)
	if cfg.ActivityEnabled {
		if err := database.MigrateUp(ctx, cfg.DatabaseURL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		db, err := database.Open(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		store := activity.NewStore(db)
		recorder = store
		checks = append(checks, store.Ping)
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket, logger)
	ticketHandler := handler.NewTicketHandler(ticketSvc, producer, recorder, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(ticketHandler, handler.Ready(logger, checks...)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, logger: logger, httpSrv: httpSrv, producer: producer}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.logger.Info("HTTP server listening",
		"addr", a.httpSrv.Addr,
		"swagger", base+router.PathSwagger,
		"health", base+router.PathHealth,
		"api", base+router.PathAPI,
		"kafka", len(a.cfg.KafkaBrokers) > 0,
		"activity", a.cfg.ActivityEnabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.producer.Close()
		return fmt.Errorf("http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		a.logger.Warn("kafka: close producer", "error", err)
	}
	return nil
}
