package metrics

import (
	"context"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/urbanpulse/fleetops/core/broadcast"
	"github.com/urbanpulse/fleetops/core/model"
	"github.com/urbanpulse/fleetops/infra/logger"
)

// InfluxSink records unit positions from every fleet snapshot to an
// InfluxDB instance using the official client. It implements
// broadcast.Sink, so position history accumulates tick by tick.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB
// endpoint.
func NewInfluxSink(cfg Config) *InfluxSink {
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		log:      logger.New("influx_sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg Config) broadcast.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return NopSink{}
	}
	return sink
}

// PublishSnapshot writes one position point per unit.
func (s *InfluxSink) PublishSnapshot(ctx context.Context, snap model.FleetSnapshot) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for _, u := range snap.Units {
		p := write.NewPointWithMeasurement("unit_position").
			AddTag("unit_id", u.ID).
			AddTag("unit_type", string(u.Type)).
			AddTag("status", string(u.Status)).
			AddField("lat", u.Lat).
			AddField("lng", u.Lng).
			SetTime(snap.Timestamp)
		if err := s.writeAPI.WritePoint(writeCtx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts down the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// NopSink discards snapshots. It stands in for a disabled or unreachable
// telemetry backend.
type NopSink struct{}

// PublishSnapshot implements broadcast.Sink.
func (NopSink) PublishSnapshot(context.Context, model.FleetSnapshot) error { return nil }
