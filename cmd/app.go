package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/supplychain-copilot/copilot/copilot"
	"github.com/supplychain-copilot/copilot/export"
	"github.com/supplychain-copilot/copilot/planner"
	"github.com/supplychain-copilot/copilot/store"
)

// app holds the services shared by the subcommands.
type app struct {
	cfg      Config
	store    *store.Store     // nil without store.path or store.in_memory
	exporter *export.Exporter // nil unless influx.enabled
	planner  *planner.Planner
}

func newApp(cfg Config) (*app, error) {
	a := &app{cfg: cfg}
	popts := planner.Options{Defaults: &cfg.Simulation, Policy: cfg.PolicyOptions()}

	fopts, err := cfg.ForecastOptions()
	if err != nil {
		return nil, err
	}
	popts.Forecast = &fopts

	if cfg.Store.Path != "" || cfg.Store.InMemory {
		s, err := store.Open(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		a.store = s
		popts.Store = s
	}
	if cfg.Influx.Enabled {
		e, err := export.New(cfg.Influx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("influx exporter: %w", err)
		}
		a.exporter = e
		popts.Exporter = e
	}

	p, err := planner.New(popts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.planner = p
	return a, nil
}

// mustApp builds the app from the loaded config or exits.
func mustApp() *app {
	a, err := newApp(appConfig)
	if err != nil {
		logrus.Fatalf("Failed to initialise: %v", err)
	}
	return a
}

func (a *app) close() {
	if a.exporter != nil {
		a.exporter.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logrus.Warnf("closing store: %v", err)
		}
	}
}

// loadDataset reads an order CSV from disk into the planner.
func (a *app) loadDataset(path string) (*planner.DatasetInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := a.planner.AddDataset(filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	logrus.Infof("Loaded %s: %d rows (%d dropped)", path, info.Rows, info.Dropped)
	return info, nil
}

// copilot builds the question answerer: the chat model when an API key is
// configured, keyword matching otherwise or as its fallback.
func (a *app) copilot() *copilot.Copilot {
	var opts []copilot.Option
	if a.cfg.Fleet != nil {
		opts = append(opts, copilot.WithFleet(a.cfg.Fleet))
	}
	if a.cfg.OpenAI.APIKey == "" {
		return copilot.New(a.planner, nil, opts...)
	}
	client := copilot.NewOpenAIClient(a.cfg.OpenAI.APIKey, a.cfg.OpenAI.BaseURL)
	interp := copilot.NewOpenAIInterpreter(client, a.cfg.OpenAI.Model)
	logrus.Infof("copilot: using chat model %s with keyword fallback", interp.Model())
	opts = append(opts, copilot.WithFallback(copilot.KeywordInterpreter{}))
	return copilot.New(a.planner, interp, opts...)
}
