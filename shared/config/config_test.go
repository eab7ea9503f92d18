package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "EMAIL_USERNAME", "EMAIL_PASSWORD", "GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET", "STORAGE_DSN", "NATS_URL", "SQS_QUEUE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.yaml", `
location:
  name: Home
  latitude: 48.8566
  longitude: 2.3522
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Alerts.Cooldown())
	assert.Equal(t, 24, cfg.Alerts.SampleCapacity)
	assert.Equal(t, 10, cfg.Alerts.DispatchCapacity)
	assert.Equal(t, 5*time.Second, cfg.Alerts.EnrichmentTimeout())
	assert.Equal(t, "gemini-2.5-flash", cfg.AI.Model)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, []string{ChannelLog}, cfg.Notify.Channels)
	assert.Equal(t, "0 */30 * * * *", cfg.Schedule)
	assert.Equal(t, 8080, cfg.Monitoring.HealthPort)
	assert.True(t, cfg.Logging.Console.Enabled)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.Weather.URL)
}

func TestLoadFileTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "config.toml", `
schedule = "0 0 * * * *"

[location]
name = "Cabin"
latitude = 46.5
longitude = 7.9
timezone = "Europe/Zurich"

[alerts]
cooldown_minutes = 30

[storage]
backend = "memory"
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Cabin", cfg.Location.Name)
	assert.Equal(t, "Europe/Zurich", cfg.Location.Timezone)
	assert.Equal(t, 30*time.Minute, cfg.Alerts.Cooldown())
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, "0 0 * * * *", cfg.Schedule)
}

func TestLoadFileEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("STORAGE_DSN", "file:alerts.db")

	path := writeConfig(t, "config.yaml", `
location:
  latitude: 40.0
  longitude: -74.0
ai:
  enabled: true
storage:
  backend: sqlite
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AI.GeminiAPIKey)
	assert.Equal(t, "file:alerts.db", cfg.Storage.DSN)
}

func TestLoadFileValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "Missing coordinates",
			body: "location:\n  name: Nowhere\n",
		},
		{
			name: "Latitude out of range",
			body: "location:\n  latitude: 123\n  longitude: 2\n",
		},
		{
			name: "Unknown storage backend",
			body: "location:\n  latitude: 1\n  longitude: 2\nstorage:\n  backend: redis\n",
		},
		{
			name: "Unknown channel",
			body: "location:\n  latitude: 1\n  longitude: 2\nnotify:\n  channels: [pager]\n",
		},
		{
			name: "AI enabled without key",
			body: "location:\n  latitude: 1\n  longitude: 2\nai:\n  enabled: true\n",
		},
		{
			name: "Email channel without SMTP",
			body: "location:\n  latitude: 1\n  longitude: 2\nnotify:\n  channels: [email]\n",
		},
		{
			name: "SQS channel without queue",
			body: "location:\n  latitude: 1\n  longitude: 2\nnotify:\n  channels: [sqs]\n",
		},
		{
			name: "Postgres without DSN",
			body: "location:\n  latitude: 1\n  longitude: 2\nstorage:\n  backend: postgres\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := writeConfig(t, "config.yaml", tt.body)
			_, err := LoadFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// Environment overrides are read only through envOverrides
func TestConfigHasNoStrayEnvTags(t *testing.T) {
	var walk func(t *testing.T, typ reflect.Type)
	walk = func(t *testing.T, typ reflect.Type) {
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)
			if _, ok := field.Tag.Lookup("env"); ok {
				t.Errorf("%s.%s has an env tag that nothing reads", typ.Name(), field.Name)
			}
			if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() == typ.PkgPath() {
				walk(t, field.Type)
			}
		}
	}
	walk(t, reflect.TypeOf(Config{}))
}
