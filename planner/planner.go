// Package planner is the application service behind the CLI, the dashboard
// and the copilot. It owns uploaded datasets and simulation runs.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/sim"
	"github.com/supplychain-copilot/copilot/sim/dataset"
	"github.com/supplychain-copilot/copilot/sim/forecast"
	"github.com/supplychain-copilot/copilot/sim/inventory"
	"github.com/supplychain-copilot/copilot/sim/route"
	"github.com/supplychain-copilot/copilot/store"
)

const (
	DefaultSampleSize      = 1000
	MaxSampleSize          = 100000
	DefaultForecastPeriods = 30
	MaxForecastPeriods     = 365
	previewRows            = 10
)

var (
	ErrNotFound       = errors.New("not found")
	// ErrInvalidRequest wraps every error caused by caller input.
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoOrderDates   = fmt.Errorf("%w: dataset has no Order Date column to forecast from", ErrInvalidRequest)
)

// RunExporter ships finished runs to a time-series backend.
type RunExporter interface {
	ExportRun(ctx context.Context, runID string, m *sim.Metrics) (int, error)
}

// Options wire optional collaborators. The zero value keeps everything in
// memory and uses the default simulation and forecast settings.
type Options struct {
	Store    *store.Store
	Exporter RunExporter
	Defaults *sim.Config
	Forecast *forecast.Options
	Policy   inventory.PolicyOptions
}

// DatasetInfo is the persisted metadata of an upload.
type DatasetInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Rows       int       `json:"rows"`
	Dropped    int       `json:"dropped"`
	HasDate    bool      `json:"has_date"`
	UploadedAt time.Time `json:"uploaded_at"`
	// Loaded is false for datasets known only from the store, e.g. after a
	// restart; their rows must be uploaded again before use.
	Loaded bool `json:"loaded"`
}

// Summary is the dataset overview panel.
type Summary struct {
	Dataset DatasetInfo             `json:"dataset"`
	Columns []dataset.ColumnSummary `json:"columns"`
	Preview []dataset.Row           `json:"preview"`
}

// SimulationRequest selects a dataset and overrides simulation controls.
// Nil fields keep the planner defaults.
type SimulationRequest struct {
	DatasetID     string                   `json:"dataset_id"`
	Orders        int                      `json:"orders"`
	ReturnRatePct *float64                 `json:"return_rate_pct,omitempty"`
	DelayMinDays  *int64                   `json:"delay_min_days,omitempty"`
	DelayMaxDays  *int64                   `json:"delay_max_days,omitempty"`
	InitialStock  *int64                   `json:"initial_stock,omitempty"`
	Horizon       *int64                   `json:"horizon,omitempty"`
	Seed          *int64                   `json:"seed,omitempty"`
	Replenishment *sim.ReplenishmentConfig `json:"replenishment,omitempty"`
}

// Run is one finished simulation.
type Run struct {
	ID        string             `json:"id"`
	DatasetID string             `json:"dataset_id"`
	CreatedAt time.Time          `json:"created_at"`
	Config    sim.Config         `json:"config"`
	KPIs      sim.KPIs           `json:"kpis"`
	Inventory inventory.Analysis `json:"inventory"`
	Metrics   *sim.Metrics       `json:"metrics"`
}

// RunSummary is a run without its records.
type RunSummary struct {
	ID        string    `json:"id"`
	DatasetID string    `json:"dataset_id"`
	CreatedAt time.Time `json:"created_at"`
	KPIs      sim.KPIs  `json:"kpis"`
}

func (r *Run) Summary() RunSummary {
	return RunSummary{ID: r.ID, DatasetID: r.DatasetID, CreatedAt: r.CreatedAt, KPIs: r.KPIs}
}

type loadedDataset struct {
	info DatasetInfo
	data *dataset.Dataset
}

// Planner is safe for concurrent use.
type Planner struct {
	opts     Options
	defaults sim.Config
	fcOpts   forecast.Options
	now      func() time.Time

	mu       sync.RWMutex
	datasets map[string]*loadedDataset
	runs     map[string]*Run
}

// New builds a planner.
func New(opts Options) (*Planner, error) {
	defaults := sim.DefaultConfig()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("planner defaults: %w", err)
	}
	fc := forecast.DefaultOptions()
	if opts.Forecast != nil {
		fc = *opts.Forecast
	}
	if opts.Policy == (inventory.PolicyOptions{}) {
		opts.Policy = inventory.PolicyOptions{ServiceLevel: 0.95, OrderCost: 50, HoldingCostRate: defaults.HoldingCostRate}
	}
	return &Planner{
		opts:     opts,
		defaults: defaults,
		fcOpts:   fc,
		now:      time.Now,
		datasets: make(map[string]*loadedDataset),
		runs:     make(map[string]*Run),
	}, nil
}

// Defaults returns the simulation settings applied to requests.
func (p *Planner) Defaults() sim.Config {
	return p.defaults
}

// AddDataset parses an uploaded CSV and keeps it under a new id.
func (p *Planner) AddDataset(name string, r io.Reader) (*DatasetInfo, error) {
	d, err := dataset.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	info := DatasetInfo{
		ID:         uuid.NewString(),
		Name:       name,
		Rows:       d.Len(),
		Dropped:    d.Dropped,
		HasDate:    d.HasDate,
		UploadedAt: p.now().UTC(),
	}
	if p.opts.Store != nil {
		if err := p.opts.Store.Put(store.DatasetKey(info.ID), info, 0); err != nil {
			return nil, fmt.Errorf("persisting dataset: %w", err)
		}
	}
	info.Loaded = true
	p.mu.Lock()
	p.datasets[info.ID] = &loadedDataset{info: info, data: d}
	p.mu.Unlock()
	logrus.Infof("planner: dataset %s (%s) loaded with %d rows, %d dropped", info.ID, name, info.Rows, info.Dropped)
	return &info, nil
}

func (p *Planner) lookupDataset(id string) (*loadedDataset, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if id == "" {
		var latest *loadedDataset
		for _, d := range p.datasets {
			if latest == nil || d.info.UploadedAt.After(latest.info.UploadedAt) {
				latest = d
			}
		}
		if latest == nil {
			return nil, fmt.Errorf("no dataset uploaded: %w", ErrNotFound)
		}
		return latest, nil
	}
	d, ok := p.datasets[id]
	if !ok {
		if p.opts.Store != nil && p.opts.Store.Get(store.DatasetKey(id), &DatasetInfo{}) == nil {
			return nil, fmt.Errorf("dataset %s is not loaded, upload it again: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return d, nil
}

// Datasets lists the datasets held in memory plus those only recorded in
// the store, newest first.
func (p *Planner) Datasets() []DatasetInfo {
	seen := make(map[string]bool)
	p.mu.RLock()
	out := make([]DatasetInfo, 0, len(p.datasets))
	for _, d := range p.datasets {
		out = append(out, d.info)
		seen[d.info.ID] = true
	}
	p.mu.RUnlock()
	if p.opts.Store != nil {
		err := p.opts.Store.Each(store.PrefixDataset, func(id string, val []byte) error {
			if seen[id] {
				return nil
			}
			var info DatasetInfo
			if err := json.Unmarshal(val, &info); err != nil {
				return fmt.Errorf("dataset %s: %w", id, err)
			}
			info.Loaded = false
			out = append(out, info)
			return nil
		})
		if err != nil {
			logrus.Warnf("planner: listing stored datasets: %v", err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

// Summary describes a dataset. An empty id selects the latest upload.
func (p *Planner) Summary(id string) (*Summary, error) {
	d, err := p.lookupDataset(id)
	if err != nil {
		return nil, err
	}
	n := min(previewRows, d.data.Len())
	return &Summary{
		Dataset: d.info,
		Columns: d.data.Describe(),
		Preview: append([]dataset.Row(nil), d.data.Rows[:n]...),
	}, nil
}

// Config resolves req against the planner defaults.
func (p *Planner) Config(req SimulationRequest) (sim.Config, error) {
	cfg := p.defaults
	cfg.DeliveryMix = append([]sim.DeliveryOption(nil), p.defaults.DeliveryMix...)
	if req.ReturnRatePct != nil {
		cfg.ReturnRatePct = *req.ReturnRatePct
	}
	if req.DelayMinDays != nil {
		cfg.DelayMinDays = *req.DelayMinDays
	}
	if req.DelayMaxDays != nil {
		cfg.DelayMaxDays = *req.DelayMaxDays
	}
	if req.InitialStock != nil {
		cfg.InitialStock = *req.InitialStock
	}
	if req.Horizon != nil {
		cfg.Horizon = *req.Horizon
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Replenishment != nil {
		cfg.Replenishment = *req.Replenishment
	}
	if req.Orders < 0 || req.Orders > MaxSampleSize {
		return cfg, fmt.Errorf("orders must be in [0, %d], got %d", MaxSampleSize, req.Orders)
	}
	return cfg, cfg.Validate()
}

// Simulate samples orders from a dataset, runs the simulation, analyses
// inventory and records the run. Persistence or export failures after the
// run has completed are logged, not returned.
func (p *Planner) Simulate(ctx context.Context, req SimulationRequest) (*Run, error) {
	cfg, err := p.Config(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	d, err := p.lookupDataset(req.DatasetID)
	if err != nil {
		return nil, err
	}
	n := req.Orders
	if n == 0 {
		n = DefaultSampleSize
	}
	rows := d.data.Sample(n, sim.NewPartitionedRNG(cfg.Seed).ForSubsystem(sim.SubsystemSample))

	m, err := sim.Simulate(cfg, dataset.Orders(rows))
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:        uuid.NewString(),
		DatasetID: d.info.ID,
		CreatedAt: p.now().UTC(),
		Config:    cfg,
		KPIs:      m.KPIs(),
		Inventory: inventory.Analyze(m, cfg.LeadTimeDays()),
		Metrics:   m,
	}
	p.mu.Lock()
	p.runs[run.ID] = run
	p.mu.Unlock()
	logrus.Infof("planner: run %s finished: %d orders, profit %s, %d stockouts",
		run.ID, m.Orders, run.KPIs.TotalProfit.StringFixed(2), run.KPIs.Stockouts)

	if p.opts.Store != nil {
		if err := p.opts.Store.Put(store.RunKey(run.ID), run, 0); err != nil {
			logrus.Warnf("planner: persisting run %s: %v", run.ID, err)
		}
	}
	if p.opts.Exporter != nil {
		if _, err := p.opts.Exporter.ExportRun(ctx, run.ID, m); err != nil {
			logrus.Warnf("planner: exporting run %s: %v", run.ID, err)
		}
	}
	return run, nil
}

// Run fetches a run from memory or the store. An empty id selects the
// latest run.
func (p *Planner) Run(id string) (*Run, error) {
	if id == "" {
		runs, err := p.ListRuns()
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, fmt.Errorf("no simulation has been run: %w", ErrNotFound)
		}
		id = runs[0].ID
	}
	p.mu.RLock()
	r, ok := p.runs[id]
	p.mu.RUnlock()
	if ok {
		return r, nil
	}
	if p.opts.Store != nil {
		var stored Run
		err := p.opts.Store.Get(store.RunKey(id), &stored)
		if err == nil {
			return &stored, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
}

// ListRuns returns every known run, newest first.
func (p *Planner) ListRuns() ([]RunSummary, error) {
	seen := make(map[string]bool)
	var out []RunSummary
	p.mu.RLock()
	for _, r := range p.runs {
		out = append(out, r.Summary())
		seen[r.ID] = true
	}
	p.mu.RUnlock()
	if p.opts.Store != nil {
		err := p.opts.Store.Each(store.PrefixRun, func(id string, val []byte) error {
			if seen[id] {
				return nil
			}
			var s RunSummary
			if err := json.Unmarshal(val, &s); err != nil {
				return fmt.Errorf("run %s: %w", id, err)
			}
			out = append(out, s)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Inventory recommends a replenishment policy from a run's usage.
func (p *Planner) Inventory(runID string) (*inventory.Policy, error) {
	r, err := p.Run(runID)
	if err != nil {
		return nil, err
	}
	policy, err := inventory.Recommend(r.Metrics, r.Config.LeadTimeDays(), p.opts.Policy)
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// Forecast projects a dataset's daily demand. periods 0 means the default.
func (p *Planner) Forecast(datasetID string, periods int) ([]forecast.Point, error) {
	if periods == 0 {
		periods = DefaultForecastPeriods
	}
	if periods < 0 || periods > MaxForecastPeriods {
		return nil, fmt.Errorf("%w: periods must be in [1, %d], got %d", ErrInvalidRequest, MaxForecastPeriods, periods)
	}
	d, err := p.lookupDataset(datasetID)
	if err != nil {
		return nil, err
	}
	if !d.data.HasDate {
		return nil, ErrNoOrderDates
	}
	daily := d.data.DailyDemand()
	obs := make([]forecast.Observation, len(daily))
	for i, t := range daily {
		obs[i] = forecast.Observation{DS: t.Date, Y: t.Quantity}
	}
	points, err := forecast.Forecast(obs, periods, p.fcOpts)
	if errors.Is(err, forecast.ErrTooFewObservations) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return points, err
}

// OptimizeRoute plans delivery routes.
func (p *Planner) OptimizeRoute(problem route.Problem) (*route.Plan, error) {
	if err := problem.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return route.Solve(problem)
}
