package types

// ModelDescriptor describes a primary backend that can be made active.
type ModelDescriptor struct {
	// Name used to select the backend.
	// example: cv2
	Name string `json:"name" example:"cv2"`
	// Absolute path to the weights file when the model was discovered on disk.
	// example: /home/user/models/lama.pt
	Path string `json:"path,omitempty" example:"/home/user/models/lama.pt"`
	// Where the backend runs: "builtin" (in-process) or "runner" (external HTTP runner).
	// example: builtin
	Kind string `json:"kind" example:"builtin"`
	// Broad model family.
	// example: inpaint
	ModelType string `json:"model_type" example:"inpaint"`
	// Whether the backend reads the prompt fields.
	NeedPrompt bool `json:"need_prompt"`
	// Whether the backend honors sdStrength.
	SupportStrength bool `json:"support_strength"`
	// Whether the backend accepts controlnet conditioning.
	SupportControlnet bool `json:"support_controlnet"`
	// Controlnet methods the backend can apply.
	Controlnets []string `json:"controlnets,omitempty"`
}

// PluginDescriptor describes a registered plugin and its declared output behaviour.
type PluginDescriptor struct {
	// example: RemoveBG
	Name string `json:"name" example:"RemoveBG"`
	// Fixed output format; empty means the upload's format is reused.
	// example: png
	FixedFormat string `json:"fixed_format,omitempty" example:"png"`
	// The plugin output carries its own alpha channel.
	ProducesAlpha bool `json:"produces_alpha"`
}
