package main

import (
	"strings"

	"github.com/spf13/cobra"

	"inpaintd/internal/config"
)

// rootOptions holds the parsed flag values.
type rootOptions struct {
	cfgPath     string
	corsOrigins string
	flags       config.Config
}

func newRootCmd() *cobra.Command { return buildRootCmdWith(&rootOptions{}) }

// buildRootCmdWith binds flags to o. Precedence is flags, then INPAINTD_*
// environment, then the config file, then defaults.
func buildRootCmdWith(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "inpaintd",
		Short:         "Image inpainting server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	fl := &o.flags
	f := root.Flags()
	f.StringVar(&o.cfgPath, "config", "", "Config file (.yaml, .json or .toml)")
	f.StringVar(&fl.Addr, "addr", "", "HTTP listen address (default :8080)")
	f.StringVar(&fl.Model, "model", "", "Backend activated at startup (default cv2)")
	f.StringVar(&fl.ModelsDir, "models-dir", "", "Directory scanned for runner model weights")
	f.StringVar(&fl.RunnerURL, "runner-url", "", "Base URL of an external inference runner")
	f.StringVar(&fl.Input, "input", "", "Image file or directory served to the UI")
	f.StringVar(&fl.OutputDir, "output-dir", "", "Directory /save_image writes to")
	f.IntVar(&fl.Quality, "quality", 0, "JPEG output quality (default 95)")
	f.BoolVar(&fl.DisableModelSwitch, "disable-model-switch", false, "Reject POST /model")
	f.BoolVar(&fl.Desktop, "desktop", false, "Report running inside a desktop shell")
	f.BoolVar(&fl.EnableControlnet, "enable-controlnet", false, "Enable controlnet conditioning")
	f.StringVar(&fl.ControlnetMethod, "controlnet-method", "", "Controlnet method when enabled")
	f.IntVar(&fl.MaxPixels, "max-pixels", 0, "Largest input the builtin cv2 backend accepts (0=unlimited)")
	f.BoolVar(&fl.StrictForm, "strict-form", false, "Require every inpaint form field")
	f.IntVar(&fl.MaxBodyMB, "max-body-mb", 0, "Upload size limit in MiB (default 64)")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated CORS origins; empty disables CORS")
	f.StringVar(&fl.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&fl.LogFile, "log-file", "", "Also write logs to this file, rotated")
	f.BoolVar(&fl.Plugins.InteractiveSeg, "enable-interactive-seg", false, "Enable the InteractiveSeg plugin")
	f.BoolVar(&fl.Plugins.RemoveBG, "enable-remove-bg", false, "Enable the RemoveBG plugin")
	f.BoolVar(&fl.Plugins.Upscale, "enable-upscale", false, "Enable the Upscale plugin")
	f.BoolVar(&fl.Plugins.Sharpen, "enable-sharpen", false, "Enable the Sharpen plugin")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := o.resolve(cmd)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}
	return root
}

func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if o.cfgPath != "" {
		loaded, err := config.Load(o.cfgPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	// Origins from the file or env may carry spaces or empty entries.
	cfg.CORSOrigins = splitCSV(strings.Join(cfg.CORSOrigins, ","))
	o.flags.CORSOrigins = splitCSV(o.corsOrigins)
	overlayFlags(cmd, &cfg, &o.flags)
	config.Defaults(&cfg)
	return cfg, nil
}

// overlayFlags copies every flag the user set onto cfg.
func overlayFlags(cmd *cobra.Command, cfg, fl *config.Config) {
	changed := cmd.Flags().Changed
	set := map[string]func(){
		"addr":                   func() { cfg.Addr = fl.Addr },
		"model":                  func() { cfg.Model = fl.Model },
		"models-dir":             func() { cfg.ModelsDir = fl.ModelsDir },
		"runner-url":             func() { cfg.RunnerURL = fl.RunnerURL },
		"input":                  func() { cfg.Input = fl.Input },
		"output-dir":             func() { cfg.OutputDir = fl.OutputDir },
		"quality":                func() { cfg.Quality = fl.Quality },
		"disable-model-switch":   func() { cfg.DisableModelSwitch = fl.DisableModelSwitch },
		"desktop":                func() { cfg.Desktop = fl.Desktop },
		"enable-controlnet":      func() { cfg.EnableControlnet = fl.EnableControlnet },
		"controlnet-method":      func() { cfg.ControlnetMethod = fl.ControlnetMethod },
		"max-pixels":             func() { cfg.MaxPixels = fl.MaxPixels },
		"strict-form":            func() { cfg.StrictForm = fl.StrictForm },
		"max-body-mb":            func() { cfg.MaxBodyMB = fl.MaxBodyMB },
		"cors-origins":           func() { cfg.CORSOrigins = fl.CORSOrigins },
		"log-level":              func() { cfg.LogLevel = fl.LogLevel },
		"log-file":               func() { cfg.LogFile = fl.LogFile },
		"enable-interactive-seg": func() { cfg.Plugins.InteractiveSeg = fl.Plugins.InteractiveSeg },
		"enable-remove-bg":       func() { cfg.Plugins.RemoveBG = fl.Plugins.RemoveBG },
		"enable-upscale":         func() { cfg.Plugins.Upscale = fl.Plugins.Upscale },
		"enable-sharpen":         func() { cfg.Plugins.Sharpen = fl.Plugins.Sharpen },
	}
	for name, apply := range set {
		if changed(name) {
			apply()
		}
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
