package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: switch model is disabled
	Error string `json:"error" example:"switch model is disabled"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ServerConfig is returned by GET /server_config.
type ServerConfig struct {
	// Names of the plugins that can be passed to /run_plugin.
	// example: ["RemoveBG","Upscale"]
	Plugins []string `json:"plugins" example:"RemoveBG,Upscale"`
	// Whether the media browser is available (input is a directory).
	EnableFileManager bool `json:"enableFileManager"`
	// Whether results are saved to an output directory.
	EnableAutoSaving bool `json:"enableAutoSaving"`
	// Whether controlnet conditioning is enabled on the active backend.
	EnableControlnet bool `json:"enableControlnet"`
	// Active controlnet method when enabled.
	// example: control_v11p_sd15_canny
	ControlnetMethod string `json:"controlnetMethod" example:"control_v11p_sd15_canny"`
	// Whether POST /model is rejected.
	DisableModelSwitch bool `json:"disableModelSwitch"`
	// Whether the server runs inside a desktop shell.
	IsDesktop bool `json:"isDesktop"`
}

// ProgressMessage is the JSON frame written to /events subscribers.
type ProgressMessage struct {
	// Event name: diffusion_progress or diffusion_finish.
	// example: diffusion_progress
	Event string `json:"event" example:"diffusion_progress"`
	// Step index for diffusion_progress events.
	// example: 3
	Step *int `json:"step,omitempty" example:"3"`
	// Request id that produced the event, when known.
	RequestID string `json:"request_id,omitempty"`
}
