package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fieldboard/core/metrics"
	"github.com/kilianp07/fieldboard/infra/logger"
)

// InfluxSink writes board events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
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
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordCommand writes one handled command.
func (s *InfluxSink) RecordCommand(ev coremetrics.CommandEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_command").
		AddTag("date", ev.Date).
		AddTag("command", ev.Command).
		AddTag("outcome", ev.Outcome).
		AddTag("reason", ev.Reason).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordLaneLoad writes one point per lane.
func (s *InfluxSink) RecordLaneLoad(loads []coremetrics.LaneLoad) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, l := range loads {
		p := write.NewPointWithMeasurement("lane_load").
			AddTag("date", l.Date).
			AddTag("vehicle_id", l.VehicleID).
			AddTag("bounded", strconv.FormatBool(l.Capacity > 0)).
			AddField("jobs", l.Jobs).
			AddField("capacity", l.Capacity).
			AddField("fill", round3(l.Fill)).
			SetTime(l.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordBalance writes fill statistics of a board.
func (s *InfluxSink) RecordBalance(ev coremetrics.BalanceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_balance").
		AddTag("date", ev.Date).
		AddField("lanes", ev.Lanes).
		AddField("mean_fill", round3(ev.MeanFill)).
		AddField("stddev_fill", round3(ev.StdDevFill)).
		AddField("assigned", ev.Assigned).
		AddField("unassigned", ev.Unassigned).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPersistence writes a persistence health change.
func (s *InfluxSink) RecordPersistence(ev coremetrics.PersistenceEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_persistence").
		AddTag("date", ev.Date).
		AddField("degraded", ev.Degraded).
		AddField("version", int64(ev.Version)).
		AddField("attempts", ev.Attempts).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBoardLoad writes a board build.
func (s *InfluxSink) RecordBoardLoad(ev coremetrics.BoardLoadEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("board_load").
		AddTag("date", ev.Date).
		AddField("jobs", ev.Jobs).
		AddField("spilled", ev.Spilled).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
