package fal

import "github.com/dmitrymomot/gengate/pkg/provider"

const (
	ModelFluxSchnell  = "fal-ai/flux/schnell"
	ModelFluxDev      = "fal-ai/flux/dev"
	ModelFluxPro      = "fal-ai/flux-pro"
	ModelFluxProV11   = "fal-ai/flux-pro/v1.1"
	ModelLumaDream    = "fal-ai/luma-dream-machine"
	ModelHunyuanVideo = "fal-ai/hunyuan-video"
	ModelKlingVideo   = "fal-ai/kling-video"
)

// Default rates for models missing from the tables.
const (
	DefaultMegapixels       = 1.0
	DefaultPricePerMP       = 0.025
	DefaultPricePerVideo    = 0.5
	DefaultVideoSecondPrice = 0.095
)

var megapixels = map[string]float64{
	"square_hd":      1.0,
	"square":         0.25,
	"portrait_4_3":   0.75,
	"portrait_16_9":  0.5,
	"landscape_4_3":  0.75,
	"landscape_16_9": 0.5,
}

var pricePerMP = map[string]float64{
	ModelFluxSchnell: 0.003,
	ModelFluxDev:     0.025,
	ModelFluxPro:     0.05,
	ModelFluxProV11:  0.055,
}

var pricePerVideo = map[string]float64{
	ModelLumaDream:    0.5,
	ModelHunyuanVideo: 0.4,
}

var pricePerSecond = map[string]float64{
	ModelKlingVideo: DefaultVideoSecondPrice,
}

// ImageCost prices an image as megapixels(size) x price per megapixel.
func ImageCost(model, size string) float64 {
	mp := provider.Rate(megapixels, size, DefaultMegapixels)
	return provider.ClampCost(mp * provider.Rate(pricePerMP, model, DefaultPricePerMP))
}

// VideoCost prices per second for duration-billed models and per video otherwise.
func VideoCost(model string, seconds int) float64 {
	if rate, ok := pricePerSecond[model]; ok {
		return provider.ClampCost(rate * float64(max(seconds, 0)))
	}
	return provider.ClampCost(provider.Rate(pricePerVideo, model, DefaultPricePerVideo))
}

func imageModels() []provider.Model {
	return []provider.Model{
		{ID: ModelFluxSchnell, Name: "FLUX Schnell", Backend: provider.BackendFalImage, Unit: "megapixel", Price: pricePerMP[ModelFluxSchnell]},
		{ID: ModelFluxDev, Name: "FLUX Dev", Backend: provider.BackendFalImage, Unit: "megapixel", Price: pricePerMP[ModelFluxDev]},
		{ID: ModelFluxPro, Name: "FLUX Pro", Backend: provider.BackendFalImage, Unit: "megapixel", Price: pricePerMP[ModelFluxPro]},
		{ID: ModelFluxProV11, Name: "FLUX Pro 1.1", Backend: provider.BackendFalImage, Unit: "megapixel", Price: pricePerMP[ModelFluxProV11]},
	}
}

func videoModels() []provider.Model {
	return []provider.Model{
		{ID: ModelLumaDream, Name: "Luma Dream Machine", Backend: provider.BackendFalVideo, Unit: "video", Price: pricePerVideo[ModelLumaDream]},
		{ID: ModelHunyuanVideo, Name: "Hunyuan Video", Backend: provider.BackendFalVideo, Unit: "video", Price: pricePerVideo[ModelHunyuanVideo]},
		{ID: ModelKlingVideo, Name: "Kling Video", Backend: provider.BackendFalVideo, Unit: "second", Price: pricePerSecond[ModelKlingVideo]},
	}
}
