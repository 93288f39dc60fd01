package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/supplychain-copilot/copilot/dashboard"
	"github.com/supplychain-copilot/copilot/export"
	"github.com/supplychain-copilot/copilot/sim"
	"github.com/supplychain-copilot/copilot/sim/forecast"
	"github.com/supplychain-copilot/copilot/sim/inventory"
	"github.com/supplychain-copilot/copilot/sim/route"
	"github.com/supplychain-copilot/copilot/store"
)

// EnvPrefix prefixes every environment override, e.g. COPILOT_SERVER_ADDR.
const EnvPrefix = "COPILOT"

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Simulation sim.Config       `yaml:"simulation"`
	Forecast   ForecastConfig   `yaml:"forecast" split_words:"true"`
	Inventory  InventoryConfig  `yaml:"inventory" split_words:"true"`
	Fleet      *route.Problem   `yaml:"fleet,omitempty" ignored:"true"` // depot and stops for route questions
	Server     dashboard.Config `yaml:"server"`
	Store      store.Config     `yaml:"store"`
	Influx     export.Config    `yaml:"influx"`
	OpenAI     OpenAIConfig     `yaml:"openai" envconfig:"OPENAI"`
	Log        LogConfig        `yaml:"log"`
}

// ForecastConfig tunes the demand model.
type ForecastConfig struct {
	Periods       int      `yaml:"periods" split_words:"true"`
	WeeklyOrder   int      `yaml:"weekly_order" split_words:"true"`
	YearlyOrder   int      `yaml:"yearly_order" split_words:"true"`
	IntervalWidth float64  `yaml:"interval_width" split_words:"true"`
	Holidays      []string `yaml:"holidays" split_words:"true"` // YYYY-MM-DD, added to the national calendar
}

// InventoryConfig sets the reorder policy inputs.
type InventoryConfig struct {
	ServiceLevel    float64 `yaml:"service_level" split_words:"true"`
	OrderCost       float64 `yaml:"order_cost" split_words:"true"`
	HoldingCostRate float64 `yaml:"holding_cost_rate" split_words:"true"`
}

// OpenAIConfig enables the chat-model interpreter when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" split_words:"true"`
	Model   string `yaml:"model" split_words:"true"`
	BaseURL string `yaml:"base_url" split_words:"true"`
}

type LogConfig struct {
	Level string `yaml:"level" split_words:"true"`
	JSON  bool   `yaml:"json" split_words:"true"`
}

// DefaultAppConfig mirrors defaults.yaml.
func DefaultAppConfig() Config {
	sc := sim.DefaultConfig()
	fc := forecast.DefaultOptions()
	return Config{
		Simulation: sc,
		Forecast: ForecastConfig{
			Periods:       30,
			WeeklyOrder:   fc.WeeklyOrder,
			YearlyOrder:   fc.YearlyOrder,
			IntervalWidth: fc.IntervalWidth,
		},
		Inventory: InventoryConfig{
			ServiceLevel:    0.95,
			OrderCost:       50,
			HoldingCostRate: sc.HoldingCostRate,
		},
		Server: dashboard.DefaultConfig(),
		Store:  store.Config{},
		OpenAI: OpenAIConfig{},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig layers defaults, the YAML file at path (optional) and COPILOT_*
// environment variables, then validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultAppConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		// Parse YAML with strict field checking: typos must cause errors
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("parsing config YAML %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if c.Forecast.Periods < 1 {
		return fmt.Errorf("forecast.periods must be >= 1, got %d", c.Forecast.Periods)
	}
	if c.Forecast.WeeklyOrder < 0 || c.Forecast.YearlyOrder < 0 {
		return fmt.Errorf("forecast fourier orders must be non-negative, got weekly=%d yearly=%d",
			c.Forecast.WeeklyOrder, c.Forecast.YearlyOrder)
	}
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast.interval_width must be in (0, 1), got %f", c.Forecast.IntervalWidth)
	}
	if _, err := c.ForecastOptions(); err != nil {
		return err
	}
	if c.Inventory.ServiceLevel <= 0 || c.Inventory.ServiceLevel >= 1 {
		return fmt.Errorf("inventory.service_level must be in (0, 1), got %f", c.Inventory.ServiceLevel)
	}
	if c.Inventory.OrderCost < 0 || c.Inventory.HoldingCostRate <= 0 {
		return fmt.Errorf("inventory costs must be order_cost >= 0 and holding_cost_rate > 0, got %f and %f",
			c.Inventory.OrderCost, c.Inventory.HoldingCostRate)
	}
	if c.Fleet != nil {
		if err := c.Fleet.Validate(); err != nil {
			return fmt.Errorf("fleet: %w", err)
		}
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Influx.Validate(); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// ForecastOptions builds the model options, adding configured holidays to
// the national calendar.
func (c *Config) ForecastOptions() (forecast.Options, error) {
	opts := forecast.DefaultOptions()
	opts.WeeklyOrder = c.Forecast.WeeklyOrder
	opts.YearlyOrder = c.Forecast.YearlyOrder
	opts.IntervalWidth = c.Forecast.IntervalWidth
	if len(c.Forecast.Holidays) > 0 {
		if err := opts.Holidays.AddDates(c.Forecast.Holidays, "custom"); err != nil {
			return opts, fmt.Errorf("forecast.holidays: %w", err)
		}
	}
	return opts, nil
}

// PolicyOptions returns the inventory policy inputs.
func (c *Config) PolicyOptions() inventory.PolicyOptions {
	return inventory.PolicyOptions{
		ServiceLevel:    c.Inventory.ServiceLevel,
		OrderCost:       c.Inventory.OrderCost,
		HoldingCostRate: c.Inventory.HoldingCostRate,
	}
}

// String renders the effective config with secrets masked.
func (c Config) String() string {
	if c.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = "****"
	}
	if c.Influx.Token != "" {
		c.Influx.Token = "****"
	}
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	_ = enc.Close()
	return b.String()
}
