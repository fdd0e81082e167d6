package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store:            StoreMemory,
		TimerQueue:       QueueMemory,
		DispatchInterval: 30 * time.Second,
		DispatchBatch:    100,
		EscalationRetry:  15 * time.Minute,
		Locale:           "en",
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "staffing_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidate_MinimalConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig()))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "postgres without url",
			mutate:  func(cfg *Config) { cfg.Store = StorePostgres },
			wantErr: "DatabaseURL",
		},
		{
			name:    "redis without url",
			mutate:  func(cfg *Config) { cfg.TimerQueue = QueueRedis },
			wantErr: "RedisURL",
		},
		{
			name:    "unknown store",
			mutate:  func(cfg *Config) { cfg.Store = "sheets" },
			wantErr: "Store",
		},
		{
			name: "duplicate reminder label",
			mutate: func(cfg *Config) {
				cfg.Reminders = []ReminderOffset{
					{Label: "1h_before", Before: time.Hour, CheckDelay: 20 * time.Minute},
					{Label: "1h_before", Before: 2 * time.Hour, CheckDelay: 20 * time.Minute},
				}
			},
			wantErr: "Reminders",
		},
		{
			name: "reminder without check delay",
			mutate: func(cfg *Config) {
				cfg.Reminders = []ReminderOffset{{Label: "1h_before", Before: time.Hour}}
			},
			wantErr: "CheckDelay",
		},
		{
			name:    "kafka brokers without topic",
			mutate:  func(cfg *Config) { cfg.Kafka.Brokers = []string{"localhost:9092"} },
			wantErr: "Topic",
		},
		{
			name:    "mail enabled without user",
			mutate:  func(cfg *Config) { cfg.Mail.Enabled = true },
			wantErr: "GmailUserID",
		},
		{
			name:    "bad series rrule",
			mutate:  func(cfg *Config) { cfg.SeriesRRule = "FREQ=SOMETIMES" },
			wantErr: "invalid seriesRRule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromPath_FullConfig(t *testing.T) {
	path := writeConfig(t, `
store: postgres
databaseURL: "postgres://staffing@localhost:5432/staffing"
timerQueue: redis
redisURL: "redis://localhost:6379/0"
redisKeyPrefix: "prod"
dispatchInterval: 10s
dispatchBatch: 50
escalationRetry: 5m
reminders:
  - label: 27h_before
    before: 27h
    checkDelay: 3h
  - label: 1h_before
    before: 1h
    checkDelay: 20m
seriesRRule: "FREQ=WEEKLY;BYDAY=SA"
locale: fr
metricsAddr: "localhost:9090"
kafka:
  brokers: ["localhost:9092"]
  topic: staffing-events
mail:
  enabled: true
  gmailUserID: me
  sender: "staffing@example.com"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, QueueRedis, cfg.TimerQueue)
	assert.Equal(t, "prod", cfg.RedisKeyPrefix)
	assert.Equal(t, 10*time.Second, cfg.DispatchInterval)
	assert.Equal(t, 50, cfg.DispatchBatch)
	assert.Equal(t, 5*time.Minute, cfg.EscalationRetry)
	require.Len(t, cfg.Reminders, 2)
	assert.Equal(t, ReminderOffset{Label: "27h_before", Before: 27 * time.Hour, CheckDelay: 3 * time.Hour}, cfg.Reminders[0])
	assert.Equal(t, "fr", cfg.Locale)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Mail.Enabled)
}

func TestLoadFromPath_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(writeConfig(t, "locale: en\n"))
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, QueueMemory, cfg.TimerQueue)
	assert.Equal(t, "staffing", cfg.RedisKeyPrefix)
	assert.Equal(t, 30*time.Second, cfg.DispatchInterval)
	assert.Equal(t, 100, cfg.DispatchBatch)
	assert.Equal(t, 15*time.Minute, cfg.EscalationRetry)
	assert.Empty(t, cfg.Reminders)
}

func TestLoadFromPath_EnvOverridesURLs(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://override@db:5432/staffing")
	t.Setenv(EnvRedisURL, "redis://cache:6379/1")

	cfg, err := LoadFromPath(writeConfig(t, `
store: postgres
databaseURL: "postgres://file@localhost:5432/staffing"
timerQueue: redis
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://override@db:5432/staffing", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	_, err := LoadFromPath(writeConfig(t, "store: [memory\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromPath_FileNotFound(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadWithEnv_FindsEnvFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staffing_config.test.yaml"), []byte("dispatchBatch: 7\n"), 0644))

	cfg, err := LoadWithEnv("test")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.DispatchBatch)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
