package replicate

import "github.com/dmitrymomot/gengate/pkg/provider"

const (
	ModelFluxDev      = "black-forest-labs/flux-dev"
	ModelFluxSchnell  = "black-forest-labs/flux-schnell"
	ModelFluxPro      = "black-forest-labs/flux-pro"
	ModelSDXL         = "stability-ai/sdxl"
	ModelMinimaxVideo = "minimax/video-01"
	ModelRunwayGen2   = "runway/gen-2"
	ModelStableVideo  = "stability-ai/stable-video-diffusion"
	ModelBark         = "suno-ai/bark"
	ModelRiffusion    = "riffusion/riffusion"
	ModelMusicGen     = "meta/musicgen"
)

// Default rates for models missing from the tables.
const (
	DefaultImagePrice       = 0.01
	DefaultVideoPrice       = 0.1
	DefaultMusicSecondPrice = 0.01
)

var imagePrice = map[string]float64{
	ModelFluxDev:     0.025,
	ModelFluxSchnell: 0.003,
	ModelFluxPro:     0.05,
	ModelSDXL:        0.0025,
}

var videoPrice = map[string]float64{
	ModelMinimaxVideo: 0.5,
	ModelStableVideo:  0.1,
}

var videoSecondPrice = map[string]float64{
	ModelRunwayGen2: 0.05,
}

var musicSecondPrice = map[string]float64{
	ModelBark:      0.02,
	ModelRiffusion: 0.01,
	ModelMusicGen:  0.015,
}

// ImageCost is a flat price per image.
func ImageCost(model string) float64 {
	return provider.ClampCost(provider.Rate(imagePrice, model, DefaultImagePrice))
}

// VideoCost bills per second for duration-priced models and per video otherwise.
func VideoCost(model string, seconds int) float64 {
	if rate, ok := videoSecondPrice[model]; ok {
		return provider.ClampCost(rate * float64(max(seconds, 0)))
	}
	return provider.ClampCost(provider.Rate(videoPrice, model, DefaultVideoPrice))
}

// MusicCost bills per generated second.
func MusicCost(model string, seconds int) float64 {
	return provider.ClampCost(provider.Rate(musicSecondPrice, model, DefaultMusicSecondPrice) * float64(max(seconds, 0)))
}

func models(b provider.Backend) []provider.Model {
	switch b {
	case provider.BackendReplicateMusic:
		return []provider.Model{
			{ID: ModelBark, Name: "Bark", Backend: b, Unit: "second", Price: musicSecondPrice[ModelBark]},
			{ID: ModelRiffusion, Name: "Riffusion", Backend: b, Unit: "second", Price: musicSecondPrice[ModelRiffusion]},
			{ID: ModelMusicGen, Name: "MusicGen", Backend: b, Unit: "second", Price: musicSecondPrice[ModelMusicGen]},
		}
	case provider.BackendReplicateVideo:
		return []provider.Model{
			{ID: ModelMinimaxVideo, Name: "Minimax Video-01", Backend: b, Unit: "video", Price: videoPrice[ModelMinimaxVideo]},
			{ID: ModelRunwayGen2, Name: "Runway Gen-2", Backend: b, Unit: "second", Price: videoSecondPrice[ModelRunwayGen2]},
			{ID: ModelStableVideo, Name: "Stable Video Diffusion", Backend: b, Unit: "video", Price: videoPrice[ModelStableVideo]},
		}
	default:
		return []provider.Model{
			{ID: ModelFluxDev, Name: "FLUX Dev", Backend: b, Unit: "image", Price: imagePrice[ModelFluxDev]},
			{ID: ModelFluxSchnell, Name: "FLUX Schnell", Backend: b, Unit: "image", Price: imagePrice[ModelFluxSchnell]},
			{ID: ModelFluxPro, Name: "FLUX Pro", Backend: b, Unit: "image", Price: imagePrice[ModelFluxPro]},
			{ID: ModelSDXL, Name: "SDXL", Backend: b, Unit: "image", Price: imagePrice[ModelSDXL]},
		}
	}
}
