package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"order-insights/internal/adapters/repo"
	"order-insights/internal/adapters/scorer"
	"order-insights/internal/domain"
	"order-insights/internal/infra/config"
	"order-insights/internal/infra/db"
	applog "order-insights/internal/infra/log"
	"order-insights/internal/infra/metrics"
	"order-insights/internal/infra/queue"
	"order-insights/internal/usecase/profiling"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger("profiler", cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("profiler: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	repoAdapter := repo.NewPostgres(pool)
	profiler := profiling.NewService(
		repoAdapter, repoAdapter, repoAdapter, repoAdapter,
		scorer.New(domain.SegmentationRules()),
		logger.With().Str("component", "profiling").Logger(),
		cfg.Limits.OrderFetch, cfg.Limits.Recommendations,
	)

	jobQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("profiler: нет подключения к очереди")
	}

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	logger.Info().Str("queue", cfg.Queues.Profiles).Msg("profiler: ожидание задач")
	for {
		job, err := jobQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("profiler: остановка")
				return
			}
			logger.Error().Err(err).Msg("profiler: чтение очереди не удалось")
			continue
		}
		processJob(ctx, logger, repoAdapter, repoAdapter, profiler, job, cfg.Limits.JobAttempts)
	}
}

func processJob(ctx context.Context, logger zerolog.Logger, jobs domain.ProfileJobRepo, events domain.AnalysisEventRepo, profiler domain.Profiler, job domain.ProfileJob, maxAttempts int) {
	log := logger.With().Str("job_id", job.ID).Int64("store_id", job.StoreID).Logger()

	done, attempts, err := jobs.EnsureProfileJob(job.ID)
	if err != nil {
		log.Error().Err(err).Msg("profiler: регистрация задачи не удалась")
		metrics.IncBatchJob("error")
		return
	}
	if done {
		log.Info().Msg("profiler: задача уже выполнена, пропуск")
		metrics.IncBatchJob("duplicate")
		return
	}
	if attempts > maxAttempts {
		log.Warn().Int("attempts", attempts).Msg("profiler: превышен лимит попыток, задача отброшена")
		metrics.IncBatchJob("dropped")
		return
	}

	if job.CustomerID != nil {
		if _, err := profiler.AnalyzeCustomer(ctx, job.StoreID, *job.CustomerID); err != nil {
			log.Error().Err(err).Int64("customer_id", *job.CustomerID).Msg("profiler: анализ клиента не удался")
			metrics.IncBatchJob("error")
			return
		}
	} else {
		profiles, err := profiler.AnalyzeAllCustomers(ctx, job.StoreID)
		if err != nil {
			log.Error().Err(err).Msg("profiler: пакетный анализ не удался")
			metrics.IncBatchJob("error")
			return
		}
		log.Info().Int("profiles", len(profiles)).Msg("profiler: пакетный анализ завершён")
		storeID := job.StoreID
		if err := events.RecordAnalysisEvent(ctx, domain.AnalysisEvent{
			Event:    domain.AnalysisEventBatchFinished,
			StoreID:  &storeID,
			Metadata: map[string]any{"profiles": len(profiles), "job_id": job.ID},
		}); err != nil {
			log.Warn().Err(err).Msg("profiler: событие о пакете не записано")
		}
	}

	if err := jobs.MarkProfileJobDone(job.ID); err != nil {
		log.Error().Err(err).Msg("profiler: отметка задачи не удалась")
		metrics.IncBatchJob("error")
		return
	}
	metrics.IncBatchJob("ok")
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.ProfileQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewRabbitProfileQueue(cfg.AMQPURL, cfg.Queues.Profiles)
	}
	return queue.NewRedisProfileQueue(redisClient, cfg.Queues.Profiles), nil
}
