// Load envs from .env
// Load YAML config
// Validate config
// Provide default values

package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	//Database
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`

	//CV loading: local, url or gcs
	CVLoaderType string `yaml:"cv_loader_type"`
	CVBasePath   string `yaml:"cv_base_path"`
	GCSBucket    string `yaml:"gcs_bucket" env:"GCS_BUCKET"`

	//Browser
	Headless   bool    `yaml:"headless"`
	SlowMo     float64 `yaml:"slow_mo"`     //ms between actions (anti-detection)
	NavTimeout float64 `yaml:"nav_timeout"` //ms

	//Dry run: fill everything but never click submit
	DryRun bool `yaml:"dry_run"`

	//Rate limiting
	DelayBetweenApplications float64 `yaml:"delay_between_applications"` //seconds
	MaxApplicationsPerRun    int     `yaml:"max_applications_per_run"`

	//Screenshots
	SaveScreenshots   bool   `yaml:"save_screenshots"`
	ScreenshotsPath   string `yaml:"screenshots_path"`
	ScreenshotMode    string `yaml:"screenshot_mode"` //all, minimal, errors
	MirrorScreenshots bool   `yaml:"mirror_screenshots"`

	//Queue worker
	AMQPURL   string `yaml:"amqp_url" env:"AMQP_URL"`
	AMQPQueue string `yaml:"amqp_queue"`

	//Telegram reporting (optional)
	TelegramToken  string `yaml:"telegram_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `yaml:"telegram_chat_id" env:"TELEGRAM_CHAT_ID"`
}

func Load() *Config {
	_ = godotenv.Load()

	//Load yaml config
	cfg := &Config{}

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Printf("Warning: Could not read config.yaml: %v", err)
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Fatalf("Error parsing config.yaml: %v", err)
		}
	}

	ApplyEnv(cfg)
	ApplyDefaults(cfg)

	//Validate required fields
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if cfg.CVLoaderType == "gcs" && cfg.GCSBucket == "" {
		log.Fatal("GCS_BUCKET is required when cv_loader_type is gcs")
	}

	return cfg
}

// ApplyEnv overrides YAML values with environment variables.
func ApplyEnv(cfg *Config) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
	}

	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		cfg.GCSBucket = bucket
	}

	if url := os.Getenv("AMQP_URL"); url != "" {
		cfg.AMQPURL = url
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			log.Fatalf("Invalid TELEGRAM_CHAT_ID: %v", err)
		}
		cfg.TelegramChatID = id
	}

	if dry := os.Getenv("DRY_RUN"); dry != "" {
		cfg.DryRun = dry == "1" || dry == "true"
	}
}

// ApplyDefaults fills unset values.
func ApplyDefaults(cfg *Config) {
	if cfg.CVLoaderType == "" {
		cfg.CVLoaderType = "local"
	}

	if cfg.CVBasePath == "" {
		cfg.CVBasePath = "./cvs"
	}

	if cfg.SlowMo == 0 {
		cfg.SlowMo = 100
	}

	if cfg.NavTimeout == 0 {
		cfg.NavTimeout = 30000
	}

	if cfg.DelayBetweenApplications == 0 {
		cfg.DelayBetweenApplications = 5
	}

	if cfg.MaxApplicationsPerRun == 0 {
		cfg.MaxApplicationsPerRun = 50
	}

	if cfg.ScreenshotsPath == "" {
		cfg.ScreenshotsPath = "./data/screenshots"
	}

	if cfg.ScreenshotMode == "" {
		cfg.ScreenshotMode = "all"
	}

	if cfg.AMQPQueue == "" {
		cfg.AMQPQueue = "applications"
	}
}
