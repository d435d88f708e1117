package assets

import "time"

// Config configures the S3 mirror. Mirroring is off when Bucket is empty.
type Config struct {
	Bucket          string        `env:"S3_BUCKET"`
	Region          string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	SecretKey       string        `env:"S3_SECRET_KEY"`
	Endpoint        string        `env:"S3_ENDPOINT"`   // S3-compatible services
	PublicURL       string        `env:"S3_PUBLIC_URL"` // base for returned URLs
	ForcePathStyle  bool          `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`
	KeyPrefix       string        `env:"S3_KEY_PREFIX" envDefault:"assets"`
	MaxBytes        int64         `env:"S3_MAX_BYTES" envDefault:"268435456"`
	DownloadTimeout time.Duration `env:"S3_DOWNLOAD_TIMEOUT" envDefault:"2m"`
}

func (c Config) Enabled() bool { return c.Bucket != "" }
