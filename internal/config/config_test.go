package config

import (
	"strings"
	"testing"
)

func validPool() PoolConfig {
	return PoolConfig{
		ID:          "eth-usdc-30",
		Address:     "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640",
		Windows:     []string{"24h", "7d", "30d"},
		Weights:     []uint64{5000, 3000, 2000},
		LowTrigger:  50_000,
		HighTrigger: 150_000,
		LowFee:      500,
		RegularFee:  3_000,
		HighFee:     10_000,
	}
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "unknown log_level", "redis: addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidatePools(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PoolConfig)
		want   string
	}{
		{"weights under base", func(p *PoolConfig) { p.Weights = []uint64{5000, 3000, 1000} }, "weights sum"},
		{"window count mismatch", func(p *PoolConfig) { p.Windows = []string{"24h"} }, "equal length"},
		{"too many windows", func(p *PoolConfig) {
			p.Windows = []string{"a", "b", "c", "d"}
			p.Weights = []uint64{2500, 2500, 2500, 2500}
		}, "1-3 window weights"},
		{"inverted triggers", func(p *PoolConfig) { p.LowTrigger, p.HighTrigger = p.HighTrigger, p.LowTrigger }, "low trigger"},
		{"non-monotone fees", func(p *PoolConfig) { p.RegularFee = p.HighFee + 1 }, "monotone"},
		{"empty id", func(p *PoolConfig) { p.ID = "" }, "id must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			p := validPool()
			tt.mutate(&p)
			cfg.Engine.Pools = []PoolConfig{p}
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidateChainRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Chain.Enabled = true
	cfg.Chain.RPCURL = "https://rpc.example.org"
	cfg.Chain.PoolManager = "0x000000000000000000000000000000000000dead"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "private_key or encrypted_key_path") {
		t.Fatalf("err=%v want key requirement", err)
	}
}

func TestValidateWsSourceRequiresURL(t *testing.T) {
	cfg := Defaults()
	cfg.Oracle.Source = "ws"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ws_url") {
		t.Fatalf("err=%v want ws_url requirement", err)
	}
}
