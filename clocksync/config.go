package clocksync

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDevicePort = 4370
	DefaultCachePath  = "cache/uploaded_ids_cache.json"
	DefaultOutputDir  = "output"
	DefaultLedgerDB   = "ledger.db"
)

type LedgerFileConfig struct {
	DB              string `yaml:"db"`
	Collection      string `yaml:"collection"`
	StaffCollection string `yaml:"staff_collection"`
}

// Seconds decodes either a bare number of seconds or a Go duration string.
type Seconds time.Duration

func (s *Seconds) UnmarshalYAML(value *yaml.Node) error {
	v := strings.TrimSpace(value.Value)
	if v == "" {
		*s = 0
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("timeout %q: %w", v, err)
	}
	*s = Seconds(d)
	return nil
}

type FileConfig struct {
	Devices []Device `yaml:"devices"`
	Port    int      `yaml:"port"`
	Timeout Seconds  `yaml:"timeout"`

	CachePath string           `yaml:"cache_path"`
	OutputDir string           `yaml:"output_dir"`
	Ledger    LedgerFileConfig `yaml:"ledger"`

	// SafetyCeiling nil means the default; 0 disables the valve.
	SafetyCeiling *int `yaml:"safety_ceiling"`
	BaseInterval  int  `yaml:"base_interval"`

	SyslogAddr string `yaml:"syslog_addr"`
	Job        string `yaml:"job"`
	Service    string `yaml:"service"`

	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overlays DEVICE_IPS/DEVICE_NAMES, DEVICE_PORT and DEVICE_TIMEOUT.
// lookup is os.LookupEnv outside tests.
func (c *FileConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	ips, hasIPs := lookup("DEVICE_IPS")
	names, hasNames := lookup("DEVICE_NAMES")
	if hasIPs || hasNames {
		ipList := splitCSV(ips)
		nameList := splitCSV(names)
		if len(ipList) != len(nameList) {
			return fmt.Errorf("DEVICE_IPS and DEVICE_NAMES must have the same number of entries (%d vs %d)", len(ipList), len(nameList))
		}
		devices := make([]Device, 0, len(ipList))
		for i := range ipList {
			devices = append(devices, Device{Name: nameList[i], Address: ipList[i]})
		}
		c.Devices = devices
	}
	if v, ok := lookup("DEVICE_PORT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DEVICE_PORT: %w", err)
		}
		c.Port = n
	}
	if v, ok := lookup("DEVICE_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("DEVICE_TIMEOUT: %w", err)
		}
		c.Timeout = Seconds(time.Duration(n) * time.Second)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *FileConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultDevicePort
	}
	if c.Timeout == 0 {
		c.Timeout = Seconds(5 * time.Second)
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Ledger.DB == "" {
		c.Ledger.DB = DefaultLedgerDB
	}
	if c.Ledger.Collection == "" {
		c.Ledger.Collection = DefaultAttendanceCollection
	}
	if c.Ledger.StaffCollection == "" {
		c.Ledger.StaffCollection = DefaultStaffCollection
	}
	if c.SafetyCeiling == nil {
		n := DefaultSafetyCeiling
		c.SafetyCeiling = &n
	}
	if c.BaseInterval <= 0 {
		c.BaseInterval = DefaultBaseInterval
	}
	if c.Job == "" {
		c.Job = heartbeatAppName
	}
	if c.Service == "" {
		c.Service = "attendance"
	}
}

func (c *FileConfig) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("no devices configured (use devices[] in config or DEVICE_IPS/DEVICE_NAMES)")
	}
	for i, d := range c.Devices {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Address) == "" {
			return fmt.Errorf("device %d: name and address are required", i)
		}
	}
	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
