package manager

import (
	"time"

	"github.com/rs/zerolog"

	"inpaintd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultRunnerRequestTimeout = 10 * time.Minute
	defaultRunnerConnectTimeout = 5 * time.Second
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Builtins are always available; nil means DefaultBuiltins().
	Builtins []types.ModelDescriptor
	// ModelsDir is scanned for runner models when RunnerURL is set.
	ModelsDir string
	// RunnerURL enables backends served by an external runner.
	RunnerURL            string
	RunnerRequestTimeout time.Duration
	RunnerConnectTimeout time.Duration
	// MaxPixels bounds the builtin cv2 backend; larger inputs are reported as
	// resource exhaustion. Zero disables the bound.
	MaxPixels int

	DisableSwitch    bool
	EnableControlnet bool
	ControlnetMethod string

	// Factories overrides the factory used per descriptor Kind.
	Factories map[string]Factory
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig. No backend is active
// until Activate succeeds.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		state:            StateLoading,
		builtins:         cfg.Builtins,
		modelsDir:        cfg.ModelsDir,
		disableSwitch:    cfg.DisableSwitch,
		enableControlnet: cfg.EnableControlnet,
		controlnetMethod: cfg.ControlnetMethod,
		factories:        make(map[string]Factory),
		publisher:        cfg.Publisher,
		log:              zerolog.Nop(),
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "manager").Logger()
	}
	if m.builtins == nil {
		m.builtins = DefaultBuiltins()
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.factories[KindBuiltin] = builtinFactory(cfg.MaxPixels)
	if cfg.RunnerURL != "" {
		reqTimeout := cfg.RunnerRequestTimeout
		if reqTimeout <= 0 {
			reqTimeout = defaultRunnerRequestTimeout
		}
		connTimeout := cfg.RunnerConnectTimeout
		if connTimeout <= 0 {
			connTimeout = defaultRunnerConnectTimeout
		}
		m.factories[KindRunner] = NewRunnerFactory(cfg.RunnerURL, reqTimeout, connTimeout, m.log)
	}
	for kind, f := range cfg.Factories {
		m.factories[kind] = f
	}
	return m
}
