package sim

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := DefaultConfig().LeadTimeDays(); got != 6 {
		t.Errorf("LeadTimeDays() = %v, want 6", got)
	}
}

func TestConfig_Validate_RejectsBadFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative stock", func(c *Config) { c.InitialStock = -1 }, "initial_stock"},
		{"return rate above 100", func(c *Config) { c.ReturnRatePct = 101 }, "return_rate_pct"},
		{"return rate NaN", func(c *Config) { c.ReturnRatePct = math.NaN() }, "return_rate_pct"},
		{"inverted delays", func(c *Config) { c.DelayMinDays, c.DelayMaxDays = 5, 4 }, "delay_max_days"},
		{"empty mix", func(c *Config) { c.DeliveryMix = nil }, "delivery_mix"},
		{"zero weights", func(c *Config) {
			c.DeliveryMix = []DeliveryOption{{Type: DeliveryStandard, Weight: 0, Multiplier: 1}}
		}, "sum to a positive"},
		{"negative multiplier", func(c *Config) { c.DeliveryMix[0].Multiplier = -1 }, "delivery_mix[0]"},
		{"negative horizon", func(c *Config) { c.Horizon = -1 }, "horizon"},
		{"replenishment without quantity", func(c *Config) {
			c.Replenishment = ReplenishmentConfig{Enabled: true}
		}, "order_quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
