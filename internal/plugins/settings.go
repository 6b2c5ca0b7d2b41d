package plugins

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inpaintd/internal/imgproc"
	"inpaintd/internal/runner"
)

// RemoteSettings declares one plugin proxied to an external runner.
type RemoteSettings struct {
	Name           string `yaml:"name" json:"name" toml:"name"`
	URL            string `yaml:"url" json:"url" toml:"url"`
	FixedFormat    string `yaml:"fixed_format" json:"fixed_format" toml:"fixed_format"`
	ProducesAlpha  bool   `yaml:"produces_alpha" json:"produces_alpha" toml:"produces_alpha"`
	NeedsImageHash bool   `yaml:"needs_image_hash" json:"needs_image_hash" toml:"needs_image_hash"`
	// ChannelOrder is "rgb" (default) or "bgr".
	ChannelOrder string        `yaml:"channel_order" json:"channel_order" toml:"channel_order"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
}

// Settings selects the plugins enabled at startup.
type Settings struct {
	InteractiveSeg bool             `yaml:"interactive_seg" json:"interactive_seg" toml:"interactive_seg" env:"INTERACTIVE_SEG"`
	RemoveBG       bool             `yaml:"remove_bg" json:"remove_bg" toml:"remove_bg" env:"REMOVE_BG"`
	Upscale        bool             `yaml:"upscale" json:"upscale" toml:"upscale" env:"UPSCALE"`
	Sharpen        bool             `yaml:"sharpen" json:"sharpen" toml:"sharpen" env:"SHARPEN"`
	Remote         []RemoteSettings `yaml:"remote" json:"remote" toml:"remote"`
}

const defaultRemoteTimeout = 5 * time.Minute

// FromSettings builds the registry described by s.
func FromSettings(s Settings, log zerolog.Logger) (*Registry, error) {
	var ps []Plugin
	if s.InteractiveSeg {
		ps = append(ps, NewInteractiveSeg())
	}
	if s.RemoveBG {
		ps = append(ps, NewRemoveBG())
	}
	if s.Upscale {
		ps = append(ps, NewUpscale())
	}
	if s.Sharpen {
		ps = append(ps, NewSharpen())
	}
	for _, rs := range s.Remote {
		info, err := remoteInfo(rs)
		if err != nil {
			return nil, err
		}
		timeout := rs.Timeout
		if timeout <= 0 {
			timeout = defaultRemoteTimeout
		}
		client := runner.New(rs.URL, timeout, 5*time.Second, log.With().Str("plugin", rs.Name).Logger())
		ps = append(ps, NewRemote(info, client))
	}
	return NewRegistry(ps...)
}

func remoteInfo(rs RemoteSettings) (Info, error) {
	if rs.Name == "" || rs.URL == "" {
		return Info{}, fmt.Errorf("remote plugin needs name and url")
	}
	info := Info{
		Name:           rs.Name,
		FixedFormat:    imgproc.Format(strings.ToLower(rs.FixedFormat)),
		ProducesAlpha:  rs.ProducesAlpha,
		NeedsImageHash: rs.NeedsImageHash,
	}
	switch strings.ToLower(rs.ChannelOrder) {
	case "", "rgb":
	case "bgr":
		info.Order = imgproc.BGR
	default:
		return Info{}, fmt.Errorf("remote plugin %s: unknown channel order %q", rs.Name, rs.ChannelOrder)
	}
	return info, nil
}
