package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
instance_id: "test_entry"
api:
  address: "127.0.0.1"
  port: 8080
database:
  path: "/tmp/glowbridge-test.db"
  data_retention_days: 30
glow:
  username: "user@example.com"
  password: "secret"
  update_interval_minutes: 10
mqtt:
  enabled: true
  host: "localhost"
  port: 1883
purifier:
  enabled: true
logging:
  console_level: "DEBUG"
`

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	t.Run("Instance", func(t *testing.T) {
		if c.GetInstanceId() != "test_entry" {
			t.Errorf("expected instance id test_entry, got %q", c.GetInstanceId())
		}
	})

	t.Run("Glow", func(t *testing.T) {
		if c.Glow.Username != "user@example.com" {
			t.Errorf("expected username user@example.com, got %q", c.Glow.Username)
		}
		if c.Glow.GetUpdateInterval() != 10*time.Minute {
			t.Errorf("expected 10m update interval, got %v", c.Glow.GetUpdateInterval())
		}
		if c.Glow.GetApiUrl() != "https://api.glowmarkt.com/api/v0-1" {
			t.Errorf("unexpected default api url: %q", c.Glow.GetApiUrl())
		}
		if c.Glow.GetTokenLifetime() != 168*time.Hour {
			t.Errorf("expected default token lifetime 168h, got %v", c.Glow.GetTokenLifetime())
		}
	})

	t.Run("Database", func(t *testing.T) {
		if c.Database.GetDataRetentionDays() != 30 {
			t.Errorf("expected data retention 30, got %d", c.Database.GetDataRetentionDays())
		}
		if c.Database.GetBackupRetentionDays() != 90 {
			t.Errorf("expected default backup retention 90, got %d", c.Database.GetBackupRetentionDays())
		}
	})

	t.Run("Mqtt", func(t *testing.T) {
		if !c.Mqtt.Enabled {
			t.Error("expected mqtt enabled")
		}
		if c.Mqtt.GetDiscoveryPrefix() != "homeassistant" {
			t.Errorf("unexpected discovery prefix: %q", c.Mqtt.GetDiscoveryPrefix())
		}
		if c.Mqtt.GetBaseTopic() != "glowbridge" {
			t.Errorf("unexpected base topic: %q", c.Mqtt.GetBaseTopic())
		}
	})

	t.Run("Purifier", func(t *testing.T) {
		if !c.Purifier.Enabled {
			t.Error("expected purifier enabled")
		}
		if c.Purifier.GetUpdateInterval() != 30*time.Second {
			t.Errorf("expected default 30s interval, got %v", c.Purifier.GetUpdateInterval())
		}
		if c.Purifier.GetName() != "Smart Air Purifier" {
			t.Errorf("unexpected default name: %q", c.Purifier.GetName())
		}
	})
}
