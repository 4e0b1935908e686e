package clocksync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
devices:
  - name: Main Gate
    address: /srv/iclock/main/*.json
  - name: Office
    address: /srv/iclock/office/*.json
port: 4371
timeout: 10s
cache_path: /var/lib/iclock/cache.json
ledger:
  db: /var/lib/iclock/ledger.db
safety_ceiling: 0
base_interval: 30
syslog_addr: 127.0.0.1:1514
debug: true
`), 0o644))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []Device{{Name: "Main Gate", Address: "/srv/iclock/main/*.json"}, {Name: "Office", Address: "/srv/iclock/office/*.json"}}, cfg.Devices)
	assert.Equal(t, 4371, cfg.Port)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Timeout))
	assert.Equal(t, "/var/lib/iclock/cache.json", cfg.CachePath)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "/var/lib/iclock/ledger.db", cfg.Ledger.DB)
	assert.Equal(t, DefaultAttendanceCollection, cfg.Ledger.Collection)
	require.NotNil(t, cfg.SafetyCeiling)
	assert.Equal(t, 0, *cfg.SafetyCeiling, "explicit zero disables the valve")
	assert.Equal(t, 30, cfg.BaseInterval)
	assert.True(t, cfg.Debug)
}

func TestFileConfig_Defaults(t *testing.T) {
	var cfg FileConfig
	cfg.ApplyDefaults()
	assert.Equal(t, DefaultDevicePort, cfg.Port)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Timeout))
	assert.Equal(t, DefaultCachePath, cfg.CachePath)
	assert.Equal(t, DefaultSafetyCeiling, *cfg.SafetyCeiling)
	assert.Equal(t, DefaultBaseInterval, cfg.BaseInterval)
	assert.Error(t, cfg.Validate(), "no devices")
}

func TestFileConfig_TimeoutAcceptsBareSeconds(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("timeout: 7\n"), 0o644))
	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, time.Duration(cfg.Timeout))
}

func TestFileConfig_ApplyEnv(t *testing.T) {
	cfg := FileConfig{Devices: []Device{{Name: "from-file", Address: "x"}}}
	err := cfg.ApplyEnv(envMap(map[string]string{
		"DEVICE_IPS":     "192.168.1.201, 192.168.1.202",
		"DEVICE_NAMES":   "Gate ,Office",
		"DEVICE_PORT":    "4370",
		"DEVICE_TIMEOUT": "9",
	}))
	require.NoError(t, err)
	assert.Equal(t, []Device{{Name: "Gate", Address: "192.168.1.201"}, {Name: "Office", Address: "192.168.1.202"}}, cfg.Devices)
	assert.Equal(t, 4370, cfg.Port)
	assert.Equal(t, 9*time.Second, time.Duration(cfg.Timeout))
}

func TestFileConfig_ApplyEnvErrors(t *testing.T) {
	cfg := FileConfig{}
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"DEVICE_IPS": "a,b", "DEVICE_NAMES": "one"})))
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"DEVICE_PORT": "http"})))
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"DEVICE_TIMEOUT": "5s"})))

	untouched := FileConfig{Devices: []Device{{Name: "a", Address: "b"}}}
	require.NoError(t, untouched.ApplyEnv(envMap(nil)))
	assert.Len(t, untouched.Devices, 1)
}

func TestFileConfig_ValidateDevices(t *testing.T) {
	cfg := FileConfig{Devices: []Device{{Name: "gate"}}}
	assert.Error(t, cfg.Validate())
}
