package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SSHAddr() != "[::]:2222" {
		t.Errorf("SSHAddr = %q", cfg.SSHAddr())
	}
	if cfg.WebAddr() != "0.0.0.0:8080" {
		t.Errorf("WebAddr = %q", cfg.WebAddr())
	}
	if cfg.SSHHostKey != "/app/keys/host_key" || cfg.SSHDisplayHost != "your-server.com" {
		t.Errorf("ssh defaults = %q %q", cfg.SSHHostKey, cfg.SSHDisplayHost)
	}
	if cfg.LogLevel != "info" || cfg.LogFile != "" {
		t.Errorf("log defaults = %q %q", cfg.LogLevel, cfg.LogFile)
	}
	if cfg.EyeTrackerURL != "" || cfg.DBPath != "" || cfg.Seed != 0 {
		t.Errorf("optional fields set: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SSH_HOST":        "127.0.0.1",
		"SSH_PORT":        "23234",
		"WEB_PORT":        "9000",
		"EYE_TRACKER_URL": "ws://localhost:8080/ws/gaze/abc",
		"DB_PATH":         "/tmp/dontblink.db",
		"LOG_LEVEL":       "debug",
		"SEED":            "42",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SSHAddr() != "127.0.0.1:23234" {
		t.Errorf("SSHAddr = %q", cfg.SSHAddr())
	}
	if cfg.WebAddr() != "0.0.0.0:9000" {
		t.Errorf("WebAddr = %q", cfg.WebAddr())
	}
	if cfg.EyeTrackerURL != "ws://localhost:8080/ws/gaze/abc" || cfg.DBPath != "/tmp/dontblink.db" {
		t.Errorf("paths = %q %q", cfg.EyeTrackerURL, cfg.DBPath)
	}
	if cfg.LogLevel != "debug" || cfg.Seed != 42 {
		t.Errorf("LogLevel=%q Seed=%d", cfg.LogLevel, cfg.Seed)
	}
}

func TestLoadInvalidSeed(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"SEED": "many"}); err == nil {
		t.Error("expected error for non-numeric SEED")
	}
}
