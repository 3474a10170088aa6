package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"order-insights/internal/adapters/repo"
	"order-insights/internal/adapters/scorer"
	"order-insights/internal/domain"
	"order-insights/internal/infra/cache"
	"order-insights/internal/infra/config"
	"order-insights/internal/infra/db"
	httpinfra "order-insights/internal/infra/http"
	applog "order-insights/internal/infra/log"
	"order-insights/internal/infra/metrics"
	"order-insights/internal/infra/queue"
	"order-insights/internal/usecase/profiling"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger("api", cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	profileCache := cache.NewRedis(redisClient)

	repoAdapter := repo.NewPostgres(pool)
	profiler := profiling.NewService(
		repoAdapter, repoAdapter, repoAdapter, repoAdapter,
		scorer.New(domain.SegmentationRules()),
		logger.With().Str("component", "profiling").Logger(),
		cfg.Limits.OrderFetch, cfg.Limits.Recommendations,
	)

	jobQueue, err := buildQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к очереди")
	}

	server := httpinfra.NewServer(logger)
	server.Router.Group(func(protected chi.Router) {
		protected.Use(httpinfra.APIKeyMiddleware(cfg.API.Token))

		protected.Post("/api/v1/stores/{storeID}/customers/{customerID}/profile", func(w http.ResponseWriter, r *http.Request) {
			storeID, customerID, ok := pathIDs(w, r)
			if !ok {
				return
			}
			profile, err := profiler.AnalyzeCustomer(r.Context(), storeID, customerID)
			if err != nil {
				logger.Error().Err(err).Int64("store_id", storeID).Int64("customer_id", customerID).Msg("api: анализ клиента не удался")
				httpinfra.WriteError(w, http.StatusInternalServerError, "analysis failed")
				return
			}
			if profile == nil {
				httpinfra.WriteError(w, http.StatusNotFound, "no orders for customer")
				return
			}
			if data, err := json.Marshal(profile); err == nil {
				_ = profileCache.Set(cache.ProfileKey(storeID, customerID), data, cfg.Cache.ProfileTTL)
			}
			httpinfra.WriteJSON(w, http.StatusOK, profile)
		})

		protected.Get("/api/v1/stores/{storeID}/customers/{customerID}/profile", func(w http.ResponseWriter, r *http.Request) {
			storeID, customerID, ok := pathIDs(w, r)
			if !ok {
				return
			}
			key := cache.ProfileKey(storeID, customerID)
			if data, err := profileCache.Get(key); err == nil && len(data) > 0 {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write(data)
				return
			}
			profile, err := repoAdapter.GetProfile(storeID, customerID)
			if errors.Is(err, domain.ErrProfileNotFound) {
				httpinfra.WriteError(w, http.StatusNotFound, "profile not found")
				return
			}
			if err != nil {
				logger.Error().Err(err).Int64("store_id", storeID).Int64("customer_id", customerID).Msg("api: чтение профиля не удалось")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to load profile")
				return
			}
			if data, err := json.Marshal(profile); err == nil {
				_ = profileCache.Set(key, data, cfg.Cache.ProfileTTL)
			}
			httpinfra.WriteJSON(w, http.StatusOK, profile)
		})

		protected.Post("/api/v1/stores/{storeID}/profiles/refresh", func(w http.ResponseWriter, r *http.Request) {
			storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
			if err != nil {
				httpinfra.WriteError(w, http.StatusBadRequest, "invalid store id")
				return
			}
			job := domain.ProfileJob{ID: uuid.NewString(), StoreID: storeID, EnqueuedAt: time.Now().UTC()}
			if err := jobQueue.Enqueue(r.Context(), job); err != nil {
				logger.Error().Err(err).Int64("store_id", storeID).Msg("api: постановка задачи не удалась")
				httpinfra.WriteError(w, http.StatusInternalServerError, "failed to enqueue job")
				return
			}
			httpinfra.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
		})

		protected.Get("/api/v1/segments", func(w http.ResponseWriter, r *http.Request) {
			httpinfra.WriteJSON(w, http.StatusOK, domain.SegmentationRules())
		})
	})

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	go func() {
		if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func pathIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	storeID, err := strconv.ParseInt(chi.URLParam(r, "storeID"), 10, 64)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid store id")
		return 0, 0, false
	}
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpinfra.WriteError(w, http.StatusBadRequest, "invalid customer id")
		return 0, 0, false
	}
	return storeID, customerID, true
}

func buildQueue(cfg config.AppConfig, redisClient *redis.Client) (domain.ProfileQueue, error) {
	if cfg.AMQPURL != "" {
		return queue.NewRabbitProfileQueue(cfg.AMQPURL, cfg.Queues.Profiles)
	}
	return queue.NewRedisProfileQueue(redisClient, cfg.Queues.Profiles), nil
}
