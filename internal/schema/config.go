// Package schema turns the flat form fields of an inpaint request into a
// validated, typed Config. It knows nothing about HTTP: callers hand it a
// field map and the uploaded side files.
package schema

import "image"

// HDStrategy selects how large images are fed to a backend.
type HDStrategy string

const (
	HDStrategyOriginal HDStrategy = "Original"
	HDStrategyResize   HDStrategy = "Resize"
	HDStrategyCrop     HDStrategy = "Crop"
)

type LDMSampler string

const (
	LDMSamplerDDIM LDMSampler = "ddim"
	LDMSamplerPLMS LDMSampler = "plms"
)

type SDSampler string

const (
	SDSamplerDDIM    SDSampler = "ddim"
	SDSamplerPNDM    SDSampler = "pndm"
	SDSamplerKLMS    SDSampler = "k_lms"
	SDSamplerKEuler  SDSampler = "k_euler"
	SDSamplerKEulerA SDSampler = "k_euler_a"
	SDSamplerDPMPlus SDSampler = "dpm++"
	SDSamplerUniPC   SDSampler = "uni_pc"
	SDSamplerLCM     SDSampler = "lcm"
)

// CV2Flag picks the classical inpainting variant.
type CV2Flag string

const (
	CV2FlagNS    CV2Flag = "INPAINT_NS"
	CV2FlagTelea CV2Flag = "INPAINT_TELEA"
)

type PowerPaintTask string

const (
	PowerPaintTextGuided   PowerPaintTask = "text-guided"
	PowerPaintShapeGuided  PowerPaintTask = "shape-guided"
	PowerPaintObjectRemove PowerPaintTask = "object-remove"
	PowerPaintOutpainting  PowerPaintTask = "outpainting"
)

// FreeUConfig holds the FreeU scaling factors, sent as a JSON object.
type FreeUConfig struct {
	S1 float64 `json:"s1" validate:"gte=0"`
	S2 float64 `json:"s2" validate:"gte=0"`
	B1 float64 `json:"b1" validate:"gte=0"`
	B2 float64 `json:"b2" validate:"gte=0"`
}

// Config is the per-request algorithm configuration. The form tag names the
// request field each value is parsed from; the json tag is the name used when
// the config is forwarded to an external runner.
type Config struct {
	LDMSteps      int        `form:"ldmSteps" json:"ldm_steps" validate:"gte=1,lte=1000"`
	LDMSampler    LDMSampler `form:"ldmSampler" json:"ldm_sampler" validate:"oneof=ddim plms"`
	ZitsWireframe bool       `form:"zitsWireframe" json:"zits_wireframe"`

	HDStrategy                HDStrategy `form:"hdStrategy" json:"hd_strategy" validate:"oneof=Original Resize Crop"`
	HDStrategyCropMargin      int        `form:"hdStrategyCropMargin" json:"hd_strategy_crop_margin" validate:"gte=0"`
	HDStrategyCropTriggerSize int        `form:"hdStrategyCropTrigerSize" json:"hd_strategy_crop_trigger_size" validate:"gte=1"`
	HDStrategyResizeLimit     int        `form:"hdStrategyResizeLimit" json:"hd_strategy_resize_limit" validate:"gte=1"`

	Prompt         string `form:"prompt" json:"prompt"`
	NegativePrompt string `form:"negativePrompt" json:"negative_prompt"`

	UseCroper    bool `form:"useCroper" json:"use_croper"`
	CroperX      int  `form:"croperX" json:"croper_x"`
	CroperY      int  `form:"croperY" json:"croper_y"`
	CroperHeight int  `form:"croperHeight" json:"croper_height" validate:"gte=0"`
	CroperWidth  int  `form:"croperWidth" json:"croper_width" validate:"gte=0"`

	UseExtender    bool `form:"useExtender" json:"use_extender"`
	ExtenderX      int  `form:"extenderX" json:"extender_x"`
	ExtenderY      int  `form:"extenderY" json:"extender_y"`
	ExtenderHeight int  `form:"extenderHeight" json:"extender_height" validate:"gte=0"`
	ExtenderWidth  int  `form:"extenderWidth" json:"extender_width" validate:"gte=0"`

	SDScale           float64     `form:"sdScale" json:"sd_scale" validate:"gt=0,lte=1"`
	SDMaskBlur        int         `form:"sdMaskBlur" json:"sd_mask_blur" validate:"gte=0"`
	SDStrength        float64     `form:"sdStrength" json:"sd_strength" validate:"gte=0,lte=1"`
	SDSteps           int         `form:"sdSteps" json:"sd_steps" validate:"gte=1,lte=1000"`
	SDGuidanceScale   float64     `form:"sdGuidanceScale" json:"sd_guidance_scale" validate:"gte=0"`
	SDSampler         SDSampler   `form:"sdSampler" json:"sd_sampler" validate:"oneof=ddim pndm k_lms k_euler k_euler_a dpm++ uni_pc lcm"`
	SDSeed            int         `form:"sdSeed" json:"sd_seed" validate:"gte=-1"`
	SDFreeU           bool        `form:"enableFreeu" json:"sd_freeu"`
	SDFreeUConfig     FreeUConfig `form:"freeuConfig" json:"sd_freeu_config"`
	SDLCMLora         bool        `form:"enableLCMLora" json:"sd_lcm_lora"`
	SDMatchHistograms bool        `form:"sdMatchHistograms" json:"sd_match_histograms"`

	CV2Flag   CV2Flag `form:"cv2Flag" json:"cv2_flag" validate:"oneof=INPAINT_NS INPAINT_TELEA"`
	CV2Radius int     `form:"cv2Radius" json:"cv2_radius" validate:"gte=1,lte=100"`

	// PaintByExampleImage is decoded from the optional paintByExampleImage upload.
	PaintByExampleImage   *image.NRGBA `form:"-" json:"-"`
	P2PImageGuidanceScale float64      `form:"p2pImageGuidanceScale" json:"p2p_image_guidance_scale" validate:"gte=0"`

	EnableControlnet            bool    `form:"enable_controlnet" json:"enable_controlnet"`
	ControlnetConditioningScale float64 `form:"controlnet_conditioning_scale" json:"controlnet_conditioning_scale" validate:"gte=0"`
	ControlnetMethod            string  `form:"controlnet_method" json:"controlnet_method"`

	PowerPaintTask PowerPaintTask `form:"powerpaintTask" json:"powerpaint_task" validate:"oneof=text-guided shape-guided object-remove outpainting"`
}

// DefaultConfig returns the values used for fields a lenient request omits.
func DefaultConfig() Config {
	return Config{
		LDMSteps:                    20,
		LDMSampler:                  LDMSamplerPLMS,
		ZitsWireframe:               true,
		HDStrategy:                  HDStrategyCrop,
		HDStrategyCropMargin:        128,
		HDStrategyCropTriggerSize:   800,
		HDStrategyResizeLimit:       1280,
		SDScale:                     1.0,
		SDMaskBlur:                  5,
		SDStrength:                  0.75,
		SDSteps:                     50,
		SDGuidanceScale:             7.5,
		SDSampler:                   SDSamplerUniPC,
		SDSeed:                      42,
		SDFreeUConfig:               FreeUConfig{S1: 0.9, S2: 0.2, B1: 1.2, B2: 1.4},
		CV2Flag:                     CV2FlagNS,
		CV2Radius:                   4,
		P2PImageGuidanceScale:       1.5,
		ControlnetConditioningScale: 0.4,
		ControlnetMethod:            "control_v11p_sd15_canny",
		PowerPaintTask:              PowerPaintTextGuided,
	}
}
