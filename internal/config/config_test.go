package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/nexuserp.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.SyncIntervalSeconds != 30 || cfg.SyncMaxAttempts != 3 || cfg.SyncBackoffMS != 250 || cfg.SyncDeadLetterAfter != 5 {
		t.Errorf("sync defaults = %+v", cfg)
	}
	if !cfg.StartOnline {
		t.Error("StartOnline should default to true")
	}
	if cfg.RemoteBaseURL != "" || cfg.RemoteDatabaseURL != "" || cfg.RemoteRedisAddr != "" {
		t.Errorf("remote backends should default empty: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("REMOTE_BASE_URL", "https://sync.example.com")
	t.Setenv("REMOTE_AUTH_SECRET", "  hush  ")
	t.Setenv("SYNC_INTERVAL_SECONDS", "5")
	t.Setenv("START_ONLINE", "false")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RemoteBaseURL != "https://sync.example.com" {
		t.Errorf("RemoteBaseURL = %q", cfg.RemoteBaseURL)
	}
	if cfg.RemoteAuthSecret != "hush" {
		t.Errorf("RemoteAuthSecret = %q, want trimmed", cfg.RemoteAuthSecret)
	}
	if cfg.SyncIntervalSeconds != 5 {
		t.Errorf("SyncIntervalSeconds = %d", cfg.SyncIntervalSeconds)
	}
	if cfg.StartOnline {
		t.Error("StartOnline should be false")
	}
	if cfg.Address() != ":9999" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func TestLoadIgnoresGarbageNumbers(t *testing.T) {
	t.Setenv("SYNC_MAX_ATTEMPTS", "zero")
	t.Setenv("SYNC_BACKOFF_MS", "-10")

	cfg := Load()
	if cfg.SyncMaxAttempts != 3 {
		t.Errorf("SyncMaxAttempts = %d, want fallback 3", cfg.SyncMaxAttempts)
	}
	if cfg.SyncBackoffMS != 250 {
		t.Errorf("SyncBackoffMS = %d, want fallback 250", cfg.SyncBackoffMS)
	}
}
