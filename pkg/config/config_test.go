package config

import (
	"testing"
	"time"
)

const sampleProfile = `
policy:
  price_cancellation: true
  price_cancellation_amplitude: "0.002"
  time_cancellation: true
  time_cancellation_seconds: 10
  automatic_cancellation: false
  reissue_order: "0.005"
  max_attempts: 8
  deadline_seconds: 120
venues:
  - name: okex-btc-quarter
    type: okex
    instrument_id: BTC-USD-200626
    api_key_encrypted: deadbeef
    api_secret_encrypted: cafebabe
    passphrase: hunter2
  - name: paper-main
    type: paper
    symbol: BTCUSDT
    start_price: "100"
`

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(sampleProfile))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}

	amp, err := p.Policy.Amplitude()
	if err != nil {
		t.Fatalf("Amplitude: %v", err)
	}
	if amp.String() != "0.002" {
		t.Errorf("amplitude = %s, want 0.002", amp)
	}
	off, err := p.Policy.Offset()
	if err != nil {
		t.Fatalf("Offset: %v", err)
	}
	if off.String() != "0.005" {
		t.Errorf("offset = %s, want 0.005", off)
	}
	if p.Policy.Wait() != 10*time.Second {
		t.Errorf("wait = %v, want 10s", p.Policy.Wait())
	}
	if p.Policy.Deadline() != 2*time.Minute {
		t.Errorf("deadline = %v, want 2m", p.Policy.Deadline())
	}
	if len(p.Venues) != 2 {
		t.Fatalf("venues = %d, want 2", len(p.Venues))
	}
	if p.Venues[0].Type != "okex" || p.Venues[1].Type != "paper" {
		t.Errorf("venue types = %s/%s", p.Venues[0].Type, p.Venues[1].Type)
	}
}

func TestParseProfileRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "venues:\n  - type: okex\n"},
		{"missing type", "venues:\n  - name: a\n"},
		{"duplicate name", "venues:\n  - name: a\n    type: okex\n  - name: a\n    type: paper\n"},
		{"bad amplitude", "policy:\n  price_cancellation_amplitude: \"abc\"\n"},
		{"bad offset", "policy:\n  reissue_order: \"x.y\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEmptyFractionsDefaultToZero(t *testing.T) {
	p, err := ParseProfile([]byte("policy: {}\n"))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	amp, _ := p.Policy.Amplitude()
	if !amp.IsZero() {
		t.Errorf("amplitude = %s, want 0", amp)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LANGUAGE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Language != "en" {
		t.Errorf("Language = %s, want en", cfg.Language)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
}
