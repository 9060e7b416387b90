package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/speaker-diarization/internal/logging"
)

// Default model identifiers, tried in order.
const (
	ModelPrimary  = "pyannote/speaker-diarization-3.1"
	ModelFallback = "pyannote/speaker-diarization@2.1"
)

// Backend names
const (
	BackendSidecar = "sidecar"
	BackendExec    = "exec"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		Host           string   `yaml:"host"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		BodyLimitMB    int      `yaml:"body_limit_mb"`
		ExposeErrors   bool     `yaml:"expose_errors"`
	} `yaml:"server"`

	Pipeline struct {
		Backend   string   `yaml:"backend"`
		Models    []string `yaml:"models"`
		Device    string   `yaml:"device"`
		TokenEnv  string   `yaml:"token_env"`
		Workers   int      `yaml:"workers"`
		QueueSize int      `yaml:"queue_size"`
		Normalize bool     `yaml:"normalize"`
		FFmpeg    string   `yaml:"ffmpeg"`

		Sidecar struct {
			BaseURL string        `yaml:"base_url"`
			Timeout time.Duration `yaml:"timeout"`
		} `yaml:"sidecar"`

		Exec struct {
			Python string `yaml:"python"`
			Script string `yaml:"script"`
		} `yaml:"exec"`
	} `yaml:"pipeline"`

	Roles struct {
		Doctor         string `yaml:"doctor"`
		Patient        string `yaml:"patient"`
		FallbackFormat string `yaml:"fallback_format"`
	} `yaml:"roles"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Log logging.Config `yaml:"log"`

	// Token is the model hub credential, read from the environment only.
	Token string `yaml:"-"`
}

// Load reads the YAML file at path (if it exists), loads envFile into the
// process environment (if it exists), then applies environment overrides
// and defaults.
func Load(path, envFile string) (*Config, error) {
	var cfg Config

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8001
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = 200
	}

	if c.Pipeline.Backend == "" {
		c.Pipeline.Backend = BackendSidecar
	}
	if len(c.Pipeline.Models) == 0 {
		c.Pipeline.Models = []string{ModelPrimary, ModelFallback}
	}
	if c.Pipeline.Device == "" {
		c.Pipeline.Device = "auto"
	}
	if c.Pipeline.TokenEnv == "" {
		c.Pipeline.TokenEnv = "HF_TOKEN"
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 16
	}
	if c.Pipeline.FFmpeg == "" {
		c.Pipeline.FFmpeg = "ffmpeg"
	}
	if c.Pipeline.Sidecar.BaseURL == "" {
		c.Pipeline.Sidecar.BaseURL = "http://localhost:8388"
	}
	if c.Pipeline.Sidecar.Timeout == 0 {
		c.Pipeline.Sidecar.Timeout = 300 * time.Second
	}
	if c.Pipeline.Exec.Python == "" {
		c.Pipeline.Exec.Python = "python"
	}
	if c.Pipeline.Exec.Script == "" {
		c.Pipeline.Exec.Script = "scripts/pyannote_runner.py"
	}

	if c.Roles.Doctor == "" {
		c.Roles.Doctor = "Bác sĩ"
	}
	if c.Roles.Patient == "" {
		c.Roles.Patient = "Bệnh nhân"
	}
	if c.Roles.FallbackFormat == "" {
		c.Roles.FallbackFormat = "Người %d"
	}

	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "temp"
	}

	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 6
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SIDECAR_URL"); v != "" {
		c.Pipeline.Sidecar.BaseURL = v
	}
	c.Token = strings.TrimSpace(os.Getenv(c.Pipeline.TokenEnv))
	return nil
}

// Validate rejects configurations the service cannot start with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got: %d)", c.Server.Port)
	}
	for _, o := range c.Server.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return errors.New("server.allowed_origins must list explicit origins when credentials are allowed")
		}
	}
	switch c.Pipeline.Backend {
	case BackendSidecar, BackendExec:
	default:
		return fmt.Errorf("pipeline.backend must be one of [%s, %s] (got: %s)", BackendSidecar, BackendExec, c.Pipeline.Backend)
	}
	switch c.Pipeline.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("pipeline.device must be one of [auto, cuda, cpu] (got: %s)", c.Pipeline.Device)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1 (got: %d)", c.Pipeline.Workers)
	}
	if c.Pipeline.QueueSize < 0 {
		return fmt.Errorf("pipeline.queue_size must not be negative (got: %d)", c.Pipeline.QueueSize)
	}
	for _, m := range c.Pipeline.Models {
		if strings.TrimSpace(m) == "" {
			return errors.New("pipeline.models must not contain empty entries")
		}
	}
	if !strings.Contains(c.Roles.FallbackFormat, "%d") {
		return fmt.Errorf("roles.fallback_format must contain %%d (got: %s)", c.Roles.FallbackFormat)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
