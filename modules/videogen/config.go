package videogen

import (
	"log"
	"time"

	appconfig "motionframe-server/modules/common/config"
)

// ModelVariant captures everything that differs between the supported Veo
// models: the request parameters each one requires and the request-body
// key its poll endpoint expects. Adding a model means adding an entry to
// the registry, nothing else.
type ModelVariant struct {
	ModelID string

	// PollRequestKey - fetchPredictOperation body key for the operation
	// name. veo-3.0 expects "name", veo-2.0 expects "operationName".
	PollRequestKey string

	// BuildParameters - generation parameters for predictLongRunning.
	// aspectLabel is "16:9" or "9:16" (only veo-2.0 uses it).
	BuildParameters func(storageURI, aspectLabel string) map[string]interface{}
}

// Veo3Fast - default model: fixed 720p output, no audio track
var Veo3Fast = ModelVariant{
	ModelID:        "veo-3.0-fast-generate-001",
	PollRequestKey: "name",
	BuildParameters: func(storageURI, aspectLabel string) map[string]interface{} {
		return map[string]interface{}{
			"resolution":    "720p",
			"generateAudio": false,
			"storageUri":    storageURI,
			"sampleCount":   1,
		}
	},
}

// Veo2 - legacy model: explicit duration and aspect-ratio string
var Veo2 = ModelVariant{
	ModelID:        "veo-2.0-generate-001",
	PollRequestKey: "operationName",
	BuildParameters: func(storageURI, aspectLabel string) map[string]interface{} {
		return map[string]interface{}{
			"durationSeconds": 8,
			"aspectRatio":     aspectLabel,
			"sampleCount":     1,
			"storageUri":      storageURI,
		}
	},
}

var variants = map[string]ModelVariant{
	Veo3Fast.ModelID: Veo3Fast,
	Veo2.ModelID:     Veo2,
}

// VariantFor - registry lookup by model ID
func VariantFor(modelID string) (ModelVariant, bool) {
	v, ok := variants[modelID]
	return v, ok
}

// Config - videogen module settings derived from the app config
type Config struct {
	ProjectID         string
	Region            string
	StoragePrefix     string
	Variant           ModelVariant
	PollInterval      time.Duration
	MaxPollIterations int
}

var videogenConfig *Config

// LoadConfig - 환경설정에서 videogen 설정 구성
func LoadConfig() *Config {
	if videogenConfig != nil {
		return videogenConfig
	}

	cfg := appconfig.GetConfig()

	variant, ok := VariantFor(cfg.VeoModel)
	if !ok {
		log.Printf("❌ [VideoGen] Unknown VEO_MODEL: %s", cfg.VeoModel)
		return nil
	}

	videogenConfig = &Config{
		ProjectID:         cfg.GCPProjectID,
		Region:            cfg.GCPRegion,
		StoragePrefix:     cfg.GetOutputStoragePrefix(),
		Variant:           variant,
		PollInterval:      time.Duration(cfg.PollSeconds) * time.Second,
		MaxPollIterations: cfg.MaxPollIterations,
	}

	log.Printf("✅ [VideoGen] Config loaded - model: %s, poll interval: %s",
		variant.ModelID, videogenConfig.PollInterval)
	return videogenConfig
}

// GetConfig - 설정 반환
func GetConfig() *Config {
	if videogenConfig == nil {
		return LoadConfig()
	}
	return videogenConfig
}
