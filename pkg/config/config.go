package config

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
		WorkerID  string `env:"WORKER_ID" env-default:"main"`
	}
	Mongo struct {
		URI      string `env:"MONGO_URI"`
		Database string `env:"MONGO_DATABASE" env-default:"clipfarm"`
	}
	Postgres struct {
		Port    int    `env:"POSTGRES_PORT"`
		Host    string `env:"POSTGRES_HOST"`
		User    string `env:"POSTGRES_USER"`
		Pass    string `env:"POSTGRES_PASS"`
		Name    string `env:"POSTGRES_NAME"`
		SslMode string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	}
	Sqlite struct {
		Path string `env:"SQLITE_PATH" env-default:"./data/clipfarm.db"`
	}
	Storage struct {
		Bucket    string `env:"STORAGE_BUCKET"`
		Region    string `env:"STORAGE_REGION" env-default:"us-east-1"`
		Endpoint  string `env:"STORAGE_ENDPOINT"`
		AccessKey string `env:"STORAGE_ACCESS_KEY"`
		SecretKey string `env:"STORAGE_SECRET_KEY"`
		// Signed GET URLs expire after this long. The dashboard re-requests
		// fresh ones on expiry, the worker never renews them.
		URLExpiry time.Duration `env:"STORAGE_URL_EXPIRY" env-default:"168h"`
	}
	Telegram struct {
		User  int64  `env:"TELEGRAM_USER"`
		Token string `env:"TELEGRAM_TOKEN"`
	}
	Pipeline struct {
		Channels        string        `env:"PIPELINE_CHANNELS"`
		MaxPerChannel   int           `env:"PIPELINE_MAX_PER_CHANNEL" env-default:"3"`
		MaxClipsPerVid  int           `env:"PIPELINE_MAX_CLIPS_PER_VIDEO" env-default:"3"`
		ClipMinSeconds  int           `env:"PIPELINE_CLIP_MIN_SECONDS" env-default:"30"`
		ClipMaxSeconds  int           `env:"PIPELINE_CLIP_MAX_SECONDS" env-default:"60"`
		MaxRetries      int           `env:"PIPELINE_MAX_RETRIES" env-default:"3"`
		BatchSize       int           `env:"PIPELINE_BATCH_SIZE" env-default:"10"`
		Workers         int           `env:"PIPELINE_WORKERS" env-default:"3"`
		StepTimeout     time.Duration `env:"PIPELINE_STEP_TIMEOUT" env-default:"20m"`
		DailyRunHour    int           `env:"PIPELINE_DAILY_RUN_HOUR" env-default:"2"`
		DownloadsDir    string        `env:"PIPELINE_DOWNLOADS_DIR" env-default:"./data/downloads"`
		ClipsDir        string        `env:"PIPELINE_CLIPS_DIR" env-default:"./data/clips"`
		TranscriptsDir  string        `env:"PIPELINE_TRANSCRIPTS_DIR" env-default:"./data/transcripts"`
		TargetPlatforms string        `env:"PIPELINE_TARGET_PLATFORMS" env-default:"tiktok"`
	}
	Scheduler struct {
		IntervalMin  time.Duration `env:"SCHEDULER_INTERVAL_MIN" env-default:"2h"`
		IntervalMax  time.Duration `env:"SCHEDULER_INTERVAL_MAX" env-default:"4h"`
		BatchSize    int           `env:"SCHEDULER_BATCH_SIZE" env-default:"3"`
		DelayMin     time.Duration `env:"SCHEDULER_DELAY_MIN" env-default:"1m"`
		DelayMax     time.Duration `env:"SCHEDULER_DELAY_MAX" env-default:"10m"`
		PostTimeout  time.Duration `env:"SCHEDULER_POST_TIMEOUT" env-default:"10m"`
		CredExpiry   time.Duration `env:"SCHEDULER_CRED_EXPIRY" env-default:"720h"`
		CredWarn     time.Duration `env:"SCHEDULER_CRED_WARN" env-default:"168h"`
		SidecarURL   string        `env:"SCHEDULER_SIDECAR_URL" env-default:"http://127.0.0.1:8931"`
		SidecarToken string        `env:"SCHEDULER_SIDECAR_TOKEN"`
	}
	Liveness struct {
		Interval  time.Duration `env:"LIVENESS_INTERVAL" env-default:"30s"`
		Threshold time.Duration `env:"LIVENESS_THRESHOLD" env-default:"2m"`
	}
	Links struct {
		File          string        `env:"LINKS_FILE" env-default:"./affiliate_links.json"`
		RecencyWindow int           `env:"LINKS_RECENCY_WINDOW" env-default:"5"`
		FallbackText  string        `env:"LINKS_FALLBACK_TEXT" env-default:"Link in bio"`
		Retention     time.Duration `env:"LINKS_USAGE_RETENTION" env-default:"720h"`
	}
	Ollama struct {
		URL   string `env:"OLLAMA_URL" env-default:"http://127.0.0.1:11434"`
		Model string `env:"OLLAMA_MODEL" env-default:"llama3.1"`
	}
	Tools struct {
		YtDlp   string `env:"TOOL_YTDLP" env-default:"yt-dlp"`
		Whisper string `env:"TOOL_WHISPER" env-default:"whisper"`
		Ffmpeg  string `env:"TOOL_FFMPEG" env-default:"ffmpeg"`
	}
}

// ChannelIDs returns the monitored channel ids from the comma separated
// PIPELINE_CHANNELS value.
func (c *Config) ChannelIDs() []string {
	return splitList(c.Pipeline.Channels)
}

// Platforms returns the platforms new clips are targeted at.
func (c *Config) Platforms() []string {
	return splitList(c.Pipeline.TargetPlatforms)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}
