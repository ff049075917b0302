package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	boardapi "github.com/kilianp07/fieldboard/api/board"
	journalapi "github.com/kilianp07/fieldboard/api/journal"
	"github.com/kilianp07/fieldboard/config"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/dispatch/logging"
	coremetrics "github.com/kilianp07/fieldboard/core/metrics"
	coremon "github.com/kilianp07/fieldboard/core/monitoring"
	coremqtt "github.com/kilianp07/fieldboard/core/mqtt"
	"github.com/kilianp07/fieldboard/infra/logger"
	"github.com/kilianp07/fieldboard/infra/metrics"
	"github.com/kilianp07/fieldboard/infra/monitoring"
	"github.com/kilianp07/fieldboard/infra/mqtt"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// Service wires the board manager to its stores, sinks and HTTP surface.
type Service struct {
	Manager *dispatch.Manager

	cfg       *config.Config
	bus       eventbus.EventBus
	store     boardstore.Store
	journal   logging.LogStore
	publisher coremqtt.Publisher
	sink      coremetrics.MetricsSink
	router    *gin.Engine
	log       logger.Logger

	done []<-chan struct{}
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	catalog, err := cfg.Fleet.Catalog()
	if err != nil {
		return nil, fmt.Errorf("fleet catalog: %w", err)
	}
	registry, err := NewRegistry(cfg.JobStore)
	if err != nil {
		return nil, fmt.Errorf("job registry: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := NewBoardStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("board store: %w", err)
	}
	svc := &Service{cfg: cfg, store: store, sink: sink, log: logg, bus: eventbus.New()}

	svc.journal, err = NewJournal(cfg.Journal)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}
	if cfg.MQTT.Broker != "" {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}
	svc.Manager, err = dispatch.NewManager(cfg.Engine, registry, catalog, store, logger.New("dispatch"), svc.bus)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	svc.router = svc.newRouter()
	logg.Infof("service ready: %d vehicles, store %s, journal %s", len(catalog), cfg.Store.Backend, cfg.Journal.Backend)
	return svc, nil
}

func (s *Service) newRouter() *gin.Engine {
	router := boardapi.NewRouter(s.Manager, boardapi.Options{
		Token:          s.cfg.API.Token,
		Heartbeat:      time.Duration(s.cfg.API.HeartbeatSeconds) * time.Second,
		RequestTimeout: time.Duration(s.cfg.API.RequestTimeoutSeconds) * time.Second,
		Logger:         logger.New("api"),
	})
	if s.journal != nil {
		router.GET("/api/journal", gin.WrapH(journalapi.NewHandler(s.journal, s.cfg.API.Token)))
	}
	return router
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler { return s.router }

// Start launches the background consumers of the event bus. They outlive
// ctx and stop in Close once the final saves were published.
func (s *Service) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	s.done = append(s.done, logging.StartRecorder(ctx, s.bus, s.journal, logger.New("journal")))
	if s.publisher != nil {
		s.done = append(s.done, mqtt.StartBoardRelay(ctx, s.bus, s.publisher, s.cfg.MQTT.TopicPrefix, logger.New("board_relay")))
	}
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Start(ctx)
	if s.cfg.Metrics.PrometheusPort != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.API.Address, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		defer coremon.Recover()
		s.log.Infof("api listening on %s", s.cfg.API.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("api server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.API.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warnf("api shutdown: %v", err)
	}
	return nil
}

// Close flushes pending saves and releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Manager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.Engine.SaveTimeoutSeconds+1)*time.Second)
		if err := s.Manager.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("manager: %w", err))
		}
		cancel()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	for _, d := range s.done {
		<-d
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("board store: %w", err))
		}
	}
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
