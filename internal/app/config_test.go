package app

import "testing"

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(true, true, "/tmp/custom")

	if !cfg.Debug {
		t.Error("expected Debug to be true")
	}
	if !cfg.Yolo {
		t.Error("expected Yolo to be true")
	}
	if cfg.ConfigPath != "/tmp/custom" {
		t.Errorf("expected ConfigPath /tmp/custom, got %s", cfg.ConfigPath)
	}
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig(false, false, "")

	if cfg.Debug || cfg.Yolo {
		t.Error("expected Debug and Yolo to default false")
	}
	if cfg.ConfigPath != "" {
		t.Error("expected empty ConfigPath to trigger layered loading")
	}
}
