// Package export pushes simulation time series to InfluxDB.
package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/sim"
)

// Measurement is the InfluxDB measurement written for every run.
const Measurement = "stock_levels"

// Config points at an InfluxDB v2 bucket. Export is off unless Enabled.
type Config struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	URL     string `yaml:"url" split_words:"true"`
	Token   string `yaml:"token" split_words:"true"`
	Org     string `yaml:"org" split_words:"true"`
	Bucket  string `yaml:"bucket" split_words:"true"`
	// Epoch is the wall-clock date mapped to simulated day 0.
	// Empty means the time of export, truncated to the day.
	Epoch string `yaml:"epoch" split_words:"true"`
}

// Validate checks that an enabled exporter has somewhere to write.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.URL == "" {
		return errors.New("influx.url is required when influx export is enabled")
	}
	if c.Org == "" || c.Bucket == "" {
		return errors.New("influx.org and influx.bucket are required when influx export is enabled")
	}
	if c.Epoch != "" {
		if _, err := time.Parse(time.DateOnly, c.Epoch); err != nil {
			return fmt.Errorf("influx.epoch: %w", err)
		}
	}
	return nil
}

// PointWriter is the subset of api.WriteAPIBlocking the exporter needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Exporter writes run series through a PointWriter.
type Exporter struct {
	client influxdb2.Client // nil when built with NewWithWriter
	writer PointWriter
	epoch  time.Time
}

// New connects to the configured InfluxDB.
func New(cfg Config) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, errors.New("influx export is disabled")
	}
	epoch := time.Now().UTC().Truncate(24 * time.Hour)
	if cfg.Epoch != "" {
		epoch, _ = time.Parse(time.DateOnly, cfg.Epoch)
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	logrus.Infof("export: writing %s to %s (org=%s bucket=%s)", Measurement, cfg.URL, cfg.Org, cfg.Bucket)
	return &Exporter{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		epoch:  epoch,
	}, nil
}

// NewWithWriter builds an exporter on an existing writer.
func NewWithWriter(w PointWriter, epoch time.Time) *Exporter {
	return &Exporter{writer: w, epoch: epoch}
}

// Points converts a run into one point per simulated day that has a stock
// level. Each point carries the stock level and the profit settled that day.
func (e *Exporter) Points(runID string, m *sim.Metrics) []*write.Point {
	profit := make(map[int64]float64)
	settled := make(map[int64]int)
	for _, r := range m.Records {
		p, _ := r.Profit.Float64()
		profit[r.SimTime] += p
		settled[r.SimTime]++
	}
	series := m.StockSeries()
	sort.Slice(series, func(i, j int) bool { return series[i].Day < series[j].Day })

	points := make([]*write.Point, 0, len(series))
	for _, sp := range series {
		p := influxdb2.NewPointWithMeasurement(Measurement).
			AddTag("run_id", runID).
			AddField("stock", sp.Stock).
			AddField("profit", profit[sp.Day]).
			AddField("orders_settled", settled[sp.Day]).
			AddField("day", sp.Day).
			SetTime(e.epoch.Add(time.Duration(sp.Day) * 24 * time.Hour))
		points = append(points, p)
	}
	return points
}

// ExportRun writes the run and returns how many points were sent.
func (e *Exporter) ExportRun(ctx context.Context, runID string, m *sim.Metrics) (int, error) {
	points := e.Points(runID, m)
	if len(points) == 0 {
		return 0, nil
	}
	if err := e.writer.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("export: writing run %s: %w", runID, err)
	}
	logrus.Debugf("export: wrote %d points for run %s", len(points), runID)
	return len(points), nil
}

// Close releases the underlying client.
func (e *Exporter) Close() {
	if e.client != nil {
		e.client.Close()
	}
}
