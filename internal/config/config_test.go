package config

import (
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
}

func TestValidate_WeightSum(t *testing.T) {
	cfg := Default()
	cfg.Weights.Text = 0.50 // sum now 1.15

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected error for weight sum != 1")
	}
	if !strings.Contains(err.Error(), "sum to 1.0") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidate_WeightSumTolerance(t *testing.T) {
	cfg := Default()
	cfg.Weights.Text = 0.3505
	cfg.Weights.Entity = 0.2500 // sum = 1.0005, inside tolerance

	if err := cfg.Validate(); err != nil {
		t.Errorf("Sum within 1e-3 tolerance should validate: %v", err)
	}
}

func TestValidate_NegativeWeight(t *testing.T) {
	cfg := Default()
	cfg.Weights.Resolution = -0.05
	cfg.Weights.Text = 0.45 // keep sum at 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for negative weight")
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	cfg := Default()
	cfg.Tier1PMatch = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for threshold outside [0,1]")
	}
}

func TestValidate_BatchSizeCap(t *testing.T) {
	cfg := Default()
	cfg.PriceBatchSize = 250

	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected error for batch size over 100")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("MB_CANDIDATE_LIMIT", "25")
	t.Setenv("MB_FEE_RATE_KALSHI", "0.01")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.CandidateLimit != 25 {
		t.Errorf("CandidateLimit = %d, want 25", cfg.CandidateLimit)
	}
	if cfg.FeeRateKalshi != 0.01 {
		t.Errorf("FeeRateKalshi = %f, want 0.01", cfg.FeeRateKalshi)
	}
}

func TestFromEnv_Malformed(t *testing.T) {
	t.Setenv("MB_CANDIDATE_LIMIT", "lots")

	if _, err := FromEnv(); err == nil {
		t.Fatal("Expected parse error for malformed env value")
	}
}
