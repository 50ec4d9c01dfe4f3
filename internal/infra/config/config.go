package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string   `envconfig:"APP_ENV" default:"dev"`
	TZ          string   `envconfig:"TZ" default:"UTC"`
	Port        int      `envconfig:"PORT" default:"3001"`
	MetricsAddr string   `envconfig:"METRICS_ADDR" default:":9090"`
	AppURL      string   `envconfig:"APP_URL" default:"https://decompress.app"`
	CORSOrigins []string `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Supabase struct {
		URL     string `envconfig:"SUPABASE_URL"`
		AnonKey string `envconfig:"SUPABASE_ANON_KEY"`
	} `envconfig:""`

	Resend struct {
		APIKey    string `envconfig:"RESEND_API_KEY"`
		FromEmail string `envconfig:"RESEND_FROM_EMAIL" default:"digest@decompress.app"`
		FromName  string `envconfig:"RESEND_FROM_NAME" default:"Decompress"`
	} `envconfig:""`

	Digest struct {
		APIKey         string        `envconfig:"DIGEST_API_KEY"`
		CronSecret     string        `envconfig:"CRON_SECRET"`
		BatchSize      int           `envconfig:"DIGEST_BATCH_SIZE" default:"10"`
		Concurrency    int           `envconfig:"DIGEST_CONCURRENCY" default:"10"`
		BatchDelay     time.Duration `envconfig:"DIGEST_BATCH_DELAY" default:"1s"`
		LockTTL        time.Duration `envconfig:"DIGEST_LOCK_TTL" default:"30m"`
		DailySchedule  string        `envconfig:"DIGEST_DAILY_SCHEDULE" default:"0 0 8 * * *"`
		WeeklySchedule string        `envconfig:"DIGEST_WEEKLY_SCHEDULE" default:"0 0 8 * * 1"`
	} `envconfig:""`

	AI struct {
		Provider        string        `envconfig:"AI_PROVIDER" default:"anthropic"`
		Model           string        `envconfig:"AI_MODEL"`
		AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
		OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
		OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"`
		GoogleAPIKey    string        `envconfig:"GOOGLE_GENERATIVE_AI_API_KEY"`
		Timeout         time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	} `envconfig:""`

	Limits struct {
		MonthlyQueries int `envconfig:"MONTHLY_QUERY_LIMIT" default:"200"`
		MaxOutput      int `envconfig:"CHAT_MAX_OUTPUT_TOKENS" default:"1024"`
	} `envconfig:""`

	Channels struct {
		AdminEmail string `envconfig:"ADMIN_EMAIL"`
		RoutingKey string `envconfig:"CHANNEL_REQUEST_ROUTING_KEY" default:"channel.requested"`
	} `envconfig:""`
}

// Location возвращает часовой пояс для месячных границ.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load загружает конфиг из .env (если есть) и окружения.
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
