package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"

	"github.com/jguan/llmfit/pkg/unit"
)

const bytesPerGiB = 1 << 30

type Config struct {
	General  GeneralConfig  `toml:"general"`
	Hardware HardwareConfig `toml:"hardware"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Fit      FitConfig      `toml:"fit"`
	Logging  LoggingConfig  `toml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
}

// HardwareConfig controls probing. The *D and *GB fields are derived in
// postProcess from their string forms.
type HardwareConfig struct {
	NvidiaSMIPath    string `toml:"nvidia_smi_path"`
	RocmSMIPath      string `toml:"rocm_smi_path"`
	ProbeTimeout     string `toml:"probe_timeout"`
	CacheTTL         string `toml:"cache_ttl"`
	DisableGPU       bool   `toml:"disable_gpu"`
	VRAMOverride     string `toml:"vram_override"`
	RAMOverride      string `toml:"ram_override"`
	CPUCoresOverride int    `toml:"cpu_cores_override"`

	ProbeTimeoutD  time.Duration `toml:"-"`
	CacheTTLD      time.Duration `toml:"-"`
	VRAMOverrideGB *float64      `toml:"-"`
	RAMOverrideGB  *float64      `toml:"-"`
}

type CatalogConfig struct {
	// Store is "sqlite", "file" or "memory".
	Store    string `toml:"store"`
	ExtraDir string `toml:"extra_dir"`
}

type FitConfig struct {
	Limit       int  `toml:"limit"`
	PerfectOnly bool `toml:"perfect_only"`
	Parallel    bool `toml:"parallel"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type MetricsConfig struct {
	// Textfile is the node_exporter textfile-collector output; empty disables it.
	Textfile string `toml:"textfile"`
}

// DataDir is ~/.llmfit, or .llmfit in the working directory when there is
// no home directory.
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".llmfit"
	}
	return filepath.Join(homeDir, ".llmfit")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

func Default() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir: DataDir(),
		},
		Hardware: HardwareConfig{
			NvidiaSMIPath: "nvidia-smi",
			RocmSMIPath:   "rocm-smi",
			ProbeTimeout:  "10s",
			CacheTTL:      "30s",
			ProbeTimeoutD: 10 * time.Second,
			CacheTTLD:     30 * time.Second,
		},
		Catalog: CatalogConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func LoadFromFile(path string) (*Config, error) {
	expandedPath, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}

	data, err := os.ReadFile(expandedPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("decode TOML: %w", err)
	}

	if err := cfg.postProcess(); err != nil {
		return nil, fmt.Errorf("post process config: %w", err)
	}

	return cfg, nil
}

func (c *Config) postProcess() error {
	var err error

	if c.Hardware.ProbeTimeoutD, err = time.ParseDuration(c.Hardware.ProbeTimeout); err != nil {
		return fmt.Errorf("parse hardware.probe_timeout: %w", err)
	}

	if c.Hardware.CacheTTLD, err = time.ParseDuration(c.Hardware.CacheTTL); err != nil {
		return fmt.Errorf("parse hardware.cache_ttl: %w", err)
	}

	if c.Hardware.VRAMOverrideGB, err = ParseSizeGB(c.Hardware.VRAMOverride); err != nil {
		return fmt.Errorf("parse hardware.vram_override: %w", err)
	}

	if c.Hardware.RAMOverrideGB, err = ParseSizeGB(c.Hardware.RAMOverride); err != nil {
		return fmt.Errorf("parse hardware.ram_override: %w", err)
	}

	c.General.DataDir, err = expandPath(c.General.DataDir)
	if err != nil {
		return fmt.Errorf("expand general.data_dir: %w", err)
	}

	c.Catalog.ExtraDir, err = expandPath(c.Catalog.ExtraDir)
	if err != nil {
		return fmt.Errorf("expand catalog.extra_dir: %w", err)
	}

	c.Logging.File, err = expandPath(c.Logging.File)
	if err != nil {
		return fmt.Errorf("expand logging.file: %w", err)
	}

	c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile)
	if err != nil {
		return fmt.Errorf("expand metrics.textfile: %w", err)
	}

	return nil
}

// ParseSizeGB parses a human memory size such as "24GB" or "512MiB" in
// binary multiples and returns it in GiB. A bare number is read as GiB.
// Empty input returns nil.
func ParseSizeGB(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < 0 {
			return nil, fmt.Errorf("size %q is negative", s)
		}
		return &v, nil
	}

	b, err := units.RAMInBytes(s)
	if err != nil {
		return nil, err
	}
	if b < 0 {
		return nil, fmt.Errorf("size %q is negative", s)
	}
	gb := float64(b) / bytesPerGiB
	return &gb, nil
}

func (c *Config) Validate() error {
	if c.Hardware.ProbeTimeoutD <= 0 {
		return fmt.Errorf("probe_timeout must be positive, got %s", c.Hardware.ProbeTimeout)
	}

	if c.Hardware.CacheTTLD < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %s", c.Hardware.CacheTTL)
	}

	if c.Hardware.CPUCoresOverride < 0 {
		return fmt.Errorf("cpu_cores_override cannot be negative, got %d", c.Hardware.CPUCoresOverride)
	}

	validStores := map[string]bool{"sqlite": true, "file": true, "memory": true}
	if !validStores[strings.ToLower(c.Catalog.Store)] {
		return fmt.Errorf("invalid catalog store: %s (valid: sqlite, file, memory)", c.Catalog.Store)
	}

	if c.Fit.Limit < 0 {
		return fmt.Errorf("fit.limit cannot be negative, got %d", c.Fit.Limit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid logging format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLMFIT_DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}
	if v := os.Getenv("LLMFIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LLMFIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LLMFIT_NVIDIA_SMI"); v != "" {
		cfg.Hardware.NvidiaSMIPath = v
	}
	if v := os.Getenv("LLMFIT_DISABLE_GPU"); v != "" {
		cfg.Hardware.DisableGPU = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("LLMFIT_VRAM"); v != "" {
		cfg.Hardware.VRAMOverride = v
	}
	if v := os.Getenv("LLMFIT_RAM"); v != "" {
		cfg.Hardware.RAMOverride = v
	}
	if v := os.Getenv("LLMFIT_CATALOG_STORE"); v != "" {
		cfg.Catalog.Store = v
	}
	if v := os.Getenv("LLMFIT_CATALOG_DIR"); v != "" {
		cfg.Catalog.ExtraDir = v
	}
	if v := os.Getenv("LLMFIT_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get user home directory: %w", err)
		}
		return filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/")), nil
	}

	return path, nil
}

// Load reads configPath, or DefaultPath when configPath is empty and that
// file exists, then applies env overrides and validates. Every failure is
// an ErrCodeInvalidConfig UnitError.
func Load(configPath string) (*Config, error) {
	var cfg *Config
	var err error

	if configPath == "" {
		if _, statErr := os.Stat(DefaultPath()); statErr == nil {
			configPath = DefaultPath()
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, unit.WrapError(statErr, unit.ErrCodeInvalidConfig, "stat default config")
		}
	}

	if configPath != "" {
		cfg, err = LoadFromFile(configPath)
		if err != nil {
			return nil, unit.WrapError(err, unit.ErrCodeInvalidConfig, "load config from "+configPath)
		}
	} else {
		cfg = Default()
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.postProcess(); err != nil {
		return nil, unit.WrapError(err, unit.ErrCodeInvalidConfig, "post process config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, unit.WrapError(err, unit.ErrCodeInvalidConfig, "validate config")
	}

	return cfg, nil
}
