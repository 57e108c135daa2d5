package config

// DefaultPromptTemplate is the photography-style prompt used for dish image
// generation when no override is configured. {name} and {description} are
// substituted per dish.
const DefaultPromptTemplate = `Professional food photography of "{name}". {description}. Appetizing presentation on a clean plate, soft natural lighting, shallow depth of field, high-end restaurant style. Photorealistic, no text or labels.`

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Gemini   GeminiConfig   `mapstructure:"gemini" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// GeminiConfig contains settings for the Gemini-backed providers.
type GeminiConfig struct {
	APIKey      string `mapstructure:"api_key" validate:"required"`
	VisionModel string `mapstructure:"vision_model" validate:"required"`
	ImageModel  string `mapstructure:"image_model" validate:"required"`
	ImagenModel string `mapstructure:"imagen_model" validate:"required"`

	// TimeoutSeconds bounds every provider call; a timeout is treated as a
	// generation failure by the worker.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"required,gt=0"`

	// MaxRetries and RetryDelaySeconds control backoff on transient
	// provider errors for image jobs.
	MaxRetries        int `mapstructure:"max_retries" validate:"gte=0"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}

// PipelineConfig contains the quota, cost, and worker settings of the
// asynchronous image pipeline.
type PipelineConfig struct {
	// AutoImageLimit is how many dishes auto-queue for image generation
	// immediately after extraction, by display order.
	AutoImageLimit int `mapstructure:"auto_image_limit" validate:"gte=0"`

	// MaxImagesPerScan is the hard quota ceiling on images requested per
	// scan across automatic and manual queuing.
	MaxImagesPerScan int `mapstructure:"max_images_per_scan" validate:"required,gt=0"`

	// DefaultImageProvider selects the image generation variant when a
	// request does not name one.
	DefaultImageProvider string `mapstructure:"default_image_provider" validate:"required,oneof=gemini imagen"`

	// Per-operation cost constants in USD.
	VisionCostUSD      float64 `mapstructure:"vision_cost_usd" validate:"gte=0"`
	GeminiImageCostUSD float64 `mapstructure:"gemini_image_cost_usd" validate:"gte=0"`
	ImagenImageCostUSD float64 `mapstructure:"imagen_image_cost_usd" validate:"gte=0"`

	// PromptTemplate renders the per-dish image prompt; {name} and
	// {description} are substituted.
	PromptTemplate string `mapstructure:"prompt_template" validate:"required"`

	// WorkerCount and QueueSize shape the image generation worker pool.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// StorageConfig contains the S3 blob storage settings for menu photos and
// generated dish images.
type StorageConfig struct {
	Bucket string `mapstructure:"bucket" validate:"required"`
	Region string `mapstructure:"region" validate:"required"`

	// Endpoint overrides the S3 endpoint for S3-compatible backends;
	// empty means AWS.
	Endpoint string `mapstructure:"endpoint"`

	// Static credentials for S3-compatible backends. Empty means the
	// default AWS credential chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}
