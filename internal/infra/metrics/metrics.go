package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ProfileBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "profile_build_seconds",
		Help:    "Время построения профиля клиента",
		Buckets: prometheus.DefBuckets,
	})
	ProfileRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profile_requests_total",
		Help: "Общее количество запросов на анализ клиента",
	})
	ProfilesByStore = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profiles_by_store_total",
		Help: "Количество построенных профилей по заведениям",
	}, []string{"store_id"})
	RecommendationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recommendation_errors_total",
		Help: "Ошибки подбора рекомендаций",
	})
	ProfileUpsertErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "profile_upsert_errors_total",
		Help: "Ошибки сохранения профилей",
	})
	BatchJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_jobs_total",
		Help: "Обработанные задачи пересчёта по результату",
	}, []string{"result"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ProfileBuildSeconds,
		ProfileRequestsTotal,
		ProfilesByStore,
		RecommendationErrors,
		ProfileUpsertErrors,
		BatchJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveProfileBuild записывает длительность построения профиля.
func ObserveProfileBuild(duration time.Duration) {
	ProfileBuildSeconds.Observe(duration.Seconds())
}

// IncProfileRequest увеличивает общий счётчик запросов на анализ.
func IncProfileRequest() {
	ProfileRequestsTotal.Inc()
}

// IncProfileForStore увеличивает счётчик профилей заведения.
func IncProfileForStore(storeID int64) {
	ProfilesByStore.WithLabelValues(strconv.FormatInt(storeID, 10)).Inc()
}

// IncBatchJob увеличивает счётчик задач пересчёта с указанным результатом.
func IncBatchJob(result string) {
	BatchJobsTotal.WithLabelValues(result).Inc()
}
