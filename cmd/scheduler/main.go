package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"order-insights/internal/adapters/repo"
	"order-insights/internal/domain"
	"order-insights/internal/infra/cache"
	"order-insights/internal/infra/config"
	"order-insights/internal/infra/db"
	applog "order-insights/internal/infra/log"
	"order-insights/internal/infra/metrics"
	"order-insights/internal/infra/queue"
)

const tickInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := applog.NewLogger("scheduler", cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	dedupe := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)

	jobQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к очереди")
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	logger.Info().Int("refresh_hour", cfg.Refresh.Hour).Msg("scheduler: запущен")
	enqueueDue(ctx, logger, repoAdapter, dedupe, jobQueue, cfg.Refresh.Hour)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			enqueueDue(ctx, logger, repoAdapter, dedupe, jobQueue, cfg.Refresh.Hour)
		}
	}
}

// enqueueDue ставит пакетный пересчёт для заведений, у которых по местному
// времени наступил час обновления. Повторная постановка за день гасится
// через Redis.
func enqueueDue(ctx context.Context, logger zerolog.Logger, stores domain.StoreRepo, dedupe domain.Cache, jobQueue domain.ProfileQueue, refreshHour int) {
	list, err := stores.ListStores()
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: чтение заведений не удалось")
		return
	}

	for _, store := range list {
		loc, err := time.LoadLocation(store.Timezone)
		if err != nil {
			logger.Warn().Err(err).Int64("store_id", store.ID).Str("tz", store.Timezone).Msg("scheduler: неизвестная таймзона, пропуск")
			continue
		}
		now := time.Now().In(loc)
		if now.Hour() != refreshHour {
			continue
		}

		storeID := store.ID
		key := fmt.Sprintf("batch:%d:%s", storeID, now.Format("2006-01-02"))
		err = dedupe.Once(key, 24*time.Hour, func() error {
			job := domain.ProfileJob{ID: uuid.NewString(), StoreID: storeID, EnqueuedAt: time.Now().UTC()}
			if err := jobQueue.Enqueue(ctx, job); err != nil {
				return err
			}
			logger.Info().Str("job_id", job.ID).Int64("store_id", storeID).Msg("scheduler: пакетный пересчёт поставлен")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Int64("store_id", storeID).Msg("scheduler: постановка пересчёта не удалась")
		}
	}
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.ProfileQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewRabbitProfileQueue(cfg.AMQPURL, cfg.Queues.Profiles)
	}
	return queue.NewRedisProfileQueue(redisClient, cfg.Queues.Profiles), nil
}
