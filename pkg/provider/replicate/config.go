package replicate

import "time"

type Config struct {
	APIToken       string        `env:"REPLICATE_API_TOKEN"`
	BaseURL        string        `env:"REPLICATE_BASE_URL" envDefault:"https://api.replicate.com/v1"`
	RequestTimeout time.Duration `env:"REPLICATE_REQUEST_TIMEOUT" envDefault:"30s"`
	PollInterval   time.Duration `env:"REPLICATE_POLL_INTERVAL" envDefault:"2s"`
	AspectRatio    string        `env:"REPLICATE_ASPECT_RATIO" envDefault:"1:1"`
	MusicDuration  int           `env:"REPLICATE_MUSIC_DURATION" envDefault:"30"` // seconds
	VideoDuration  int           `env:"REPLICATE_VIDEO_DURATION" envDefault:"6"`  // seconds
}
