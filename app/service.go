// Package app assembles the dispatch service from its parts.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/urbanpulse/fleetops/api"
	"github.com/urbanpulse/fleetops/config"
	"github.com/urbanpulse/fleetops/core/broadcast"
	"github.com/urbanpulse/fleetops/core/dispatch"
	"github.com/urbanpulse/fleetops/core/fleet"
	"github.com/urbanpulse/fleetops/core/geo"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/core/sim"
	"github.com/urbanpulse/fleetops/core/store"
	"github.com/urbanpulse/fleetops/infra/geocode"
	"github.com/urbanpulse/fleetops/infra/logger"
	"github.com/urbanpulse/fleetops/infra/memstore"
	"github.com/urbanpulse/fleetops/infra/metrics"
	"github.com/urbanpulse/fleetops/infra/mqtt"
	"github.com/urbanpulse/fleetops/infra/routing"
)

// Service orchestrates the store, dispatch engine, simulation clock and the
// HTTP surface.
type Service struct {
	Engine *dispatch.Engine
	Clock  *sim.Clock
	Hub    *broadcast.Hub
	Store  store.FleetStore

	httpSrv     *http.Server
	feed        *mqtt.FleetFeed
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st := memstore.New()
	if err := seedFleet(st, cfg.Fleet); err != nil {
		return nil, fmt.Errorf("seed fleet: %w", err)
	}

	var sinks []broadcast.Sink
	var feed *mqtt.FleetFeed
	if cfg.MQTT.Enabled {
		f, err := mqtt.NewFleetFeed(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt feed: %w", err)
		}
		feed = f
		sinks = append(sinks, f)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(cfg.Metrics))
	}

	hub := broadcast.NewHub(st, logger.New("broadcast"), sinks...)
	registry := fleet.NewRegistry(st)
	engine, err := dispatch.NewEngine(st, registry, hub, logger.New("dispatch"), cfg.Sim.ArrivalThresholdDegrees)
	if err != nil {
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}
	clock := sim.NewClock(cfg.Sim, st, registry, engine, hub, logger.New("sim"))

	var geocoder api.Geocoder
	if cfg.Geocode.Enabled {
		geocoder = geocode.NewClient(cfg.Geocode)
	}
	var router api.Router
	if cfg.Routing.Enabled {
		router = routing.NewClient(cfg.Routing)
	}
	srv := api.NewServer(engine, st, hub, geocoder, router, logger.New("api"))

	return &Service{
		Engine:      engine,
		Clock:       clock,
		Hub:         hub,
		Store:       st,
		httpSrv:     &http.Server{Addr: cfg.API.Addr, Handler: srv.Handler()},
		feed:        feed,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}, nil
}

// seedFleet provisions the configured units as IDLE at their start position.
func seedFleet(st store.FleetStore, cfg config.FleetConfig) error {
	ctx := context.Background()
	for _, seed := range cfg.Units {
		err := st.SaveUnit(ctx, model.Unit{
			ID:        uuid.NewString(),
			Name:      seed.Name,
			Type:      model.UnitType(seed.Type),
			Status:    model.UnitIdle,
			Position:  geo.Point{Lat: seed.Lat, Lng: seed.Lng},
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Run starts the simulation clock and the HTTP listener, blocking until the
// context is cancelled or the listener fails.
func (s *Service) Run(ctx context.Context) error {
	go s.Clock.Run(ctx)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("http listening on %s", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.Hub.Close()
	if s.feed != nil {
		s.feed.Close()
	}
	return nil
}
