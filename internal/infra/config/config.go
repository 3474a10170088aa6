package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	TZ          string `envconfig:"TZ" default:"Europe/Paris"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	API struct {
		Token string `envconfig:"API_TOKEN"`
	} `envconfig:""`

	Limits struct {
		OrderFetch      int `envconfig:"ORDER_FETCH_LIMIT" default:"50"`
		Recommendations int `envconfig:"RECOMMENDATIONS_LIMIT" default:"5"`
		JobAttempts     int `envconfig:"JOB_ATTEMPTS_MAX" default:"3"`
	} `envconfig:""`

	Queues struct {
		Profiles string `envconfig:"PROFILE_QUEUE_KEY" default:"profile_jobs"`
	} `envconfig:""`

	Refresh struct {
		Hour int `envconfig:"REFRESH_HOUR" default:"3"`
	} `envconfig:""`

	Cache struct {
		ProfileTTL time.Duration `envconfig:"PROFILE_CACHE_TTL" default:"5m"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
