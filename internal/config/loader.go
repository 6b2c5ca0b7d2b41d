package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inpaintd/internal/plugins"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr" env:"ADDR"`
	Model     string `json:"model" yaml:"model" toml:"model" env:"MODEL"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir" env:"MODELS_DIR"`
	RunnerURL string `json:"runner_url" yaml:"runner_url" toml:"runner_url" env:"RUNNER_URL"`

	// Input is an image file or a directory of images served to the UI.
	Input     string `json:"input" yaml:"input" toml:"input" env:"INPUT"`
	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir" env:"OUTPUT_DIR"`
	Quality   int    `json:"quality" yaml:"quality" toml:"quality" env:"QUALITY"`

	DisableModelSwitch bool   `json:"disable_model_switch" yaml:"disable_model_switch" toml:"disable_model_switch" env:"DISABLE_MODEL_SWITCH"`
	Desktop            bool   `json:"desktop" yaml:"desktop" toml:"desktop" env:"DESKTOP"`
	EnableControlnet   bool   `json:"enable_controlnet" yaml:"enable_controlnet" toml:"enable_controlnet" env:"ENABLE_CONTROLNET"`
	ControlnetMethod   string `json:"controlnet_method" yaml:"controlnet_method" toml:"controlnet_method" env:"CONTROLNET_METHOD"`

	MaxPixels  int  `json:"max_pixels" yaml:"max_pixels" toml:"max_pixels" env:"MAX_PIXELS"`
	StrictForm bool `json:"strict_form" yaml:"strict_form" toml:"strict_form" env:"STRICT_FORM"`
	MaxBodyMB  int  `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb" env:"MAX_BODY_MB"`

	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	LogFile     string   `json:"log_file" yaml:"log_file" toml:"log_file" env:"LOG_FILE"`

	Plugins plugins.Settings `json:"plugins" yaml:"plugins" toml:"plugins" envPrefix:"PLUGIN_"`
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "INPAINTD_"

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays INPAINTD_* variables onto cfg. Unset variables leave the
// current value alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env config: %w", err)
	}
	return nil
}

// Defaults fills unspecified fields.
func Defaults(cfg *Config) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Model == "" {
		cfg.Model = "cv2"
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 95
	}
	if cfg.MaxBodyMB <= 0 {
		cfg.MaxBodyMB = 64
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ControlnetMethod == "" {
		cfg.ControlnetMethod = "control_v11p_sd15_canny"
	}
}
