package fal

import "time"

type Config struct {
	APIKey         string        `env:"FAL_KEY"`
	QueueURL       string        `env:"FAL_QUEUE_URL" envDefault:"https://queue.fal.run"`
	RequestTimeout time.Duration `env:"FAL_REQUEST_TIMEOUT" envDefault:"30s"` // per HTTP call, not per job
	PollInterval   time.Duration `env:"FAL_POLL_INTERVAL" envDefault:"2s"`
	ImageSize      string        `env:"FAL_IMAGE_SIZE" envDefault:"square_hd"`
	VideoDuration  int           `env:"FAL_VIDEO_DURATION" envDefault:"5"` // seconds
}
