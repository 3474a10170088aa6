package profiling

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"order-insights/internal/adapters/scorer"
	"order-insights/internal/domain"
	"order-insights/internal/infra/metrics"
)

// Service реализует анализ и сегментацию клиентов заведения.
type Service struct {
	customers      domain.CustomerRepo
	orders         domain.OrderRepo
	products       domain.ProductRepo
	profiles       domain.ProfileRepo
	scorer         *scorer.Scorer
	log            zerolog.Logger
	fetchLimit     int
	recommendLimit int
}

var _ domain.Profiler = (*Service)(nil)

// NewService создаёт сервис анализа.
func NewService(customers domain.CustomerRepo, orders domain.OrderRepo, products domain.ProductRepo, profiles domain.ProfileRepo, sc *scorer.Scorer, logger zerolog.Logger, fetchLimit, recommendLimit int) *Service {
	return &Service{
		customers:      customers,
		orders:         orders,
		products:       products,
		profiles:       profiles,
		scorer:         sc,
		log:            logger,
		fetchLimit:     fetchLimit,
		recommendLimit: recommendLimit,
	}
}

// AnalyzeCustomer строит профиль клиента по последним заказам.
// Возвращает (nil, nil), если у клиента нет заказов в заведении: это
// легитимный результат "нет данных", а не ошибка. Ошибка чтения заказов
// или клиента возвращается как ошибка и с отсутствием данных не смешивается.
func (s *Service) AnalyzeCustomer(ctx context.Context, storeID, customerID int64) (*domain.CustomerProfile, error) {
	metrics.IncProfileRequest()
	start := time.Now()

	orders, err := s.orders.ListRecentOrders(storeID, customerID, s.fetchLimit)
	if err != nil {
		return nil, fmt.Errorf("получение заказов: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	customer, err := s.customers.GetCustomer(storeID, customerID)
	if err != nil {
		return nil, fmt.Errorf("получение клиента: %w", err)
	}

	now := time.Now().UTC()
	stats := scorer.BuildStats(orders, customer.OrderCount, now)
	rule, score := s.scorer.Score(stats, customer)
	prefs := scorer.BuildPreferences(orders, stats)

	profile := &domain.CustomerProfile{
		CustomerID: customerID,
		StoreID:    storeID,
		SegmentID:  rule.ID,
		Segment:    rule.Name,
		Score:      score,
		Preferences: prefs,
		Behavior: domain.Behavior{
			AvgOrderValue: customer.AvgBasket,
			TotalOrders:   customer.OrderCount,
			LastOrderDate: orders[0].CreatedAt,
			ChurnRisk:     scorer.ChurnRisk(orders[0].CreatedAt, now),
			LifetimeValue: customer.TotalSpent,
		},
		Recommendations:     []int64{},
		PersonalizedMessage: domain.GreetingFor(rule.Name, customer.FirstName),
		AnalyzedAt:          now,
	}

	profile.Recommendations = s.recommend(storeID, customerID, prefs.FavoriteCategories)

	if err := s.profiles.UpsertProfile(*profile); err != nil {
		metrics.ProfileUpsertErrors.Inc()
		s.log.Error().Err(err).Int64("store_id", storeID).Int64("customer_id", customerID).Msg("profiling: не удалось сохранить профиль")
	}

	metrics.ObserveProfileBuild(time.Since(start))
	metrics.IncProfileForStore(storeID)
	return profile, nil
}

// recommend подбирает товары по любимым категориям. Любая ошибка каталога
// деградирует до пустого списка.
func (s *Service) recommend(storeID, customerID int64, categories []string) []int64 {
	if len(categories) == 0 {
		return []int64{}
	}
	products, err := s.products.ListPopularByCategories(storeID, categories, s.recommendLimit)
	if err != nil {
		metrics.RecommendationErrors.Inc()
		s.log.Error().Err(err).Int64("store_id", storeID).Int64("customer_id", customerID).Msg("profiling: подбор рекомендаций не удался")
		return []int64{}
	}
	ids := make([]int64, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
	}
	return ids
}

// AnalyzeAllCustomers последовательно анализирует всех клиентов заведения,
// у которых есть хотя бы один заказ. Клиенты без данных пропускаются,
// ошибка анализа одного клиента не прерывает остальных.
func (s *Service) AnalyzeAllCustomers(ctx context.Context, storeID int64) ([]domain.CustomerProfile, error) {
	customers, err := s.customers.ListCustomersWithOrders(storeID)
	if err != nil {
		return nil, fmt.Errorf("список клиентов: %w", err)
	}

	profiles := make([]domain.CustomerProfile, 0, len(customers))
	for _, customer := range customers {
		if err := ctx.Err(); err != nil {
			return profiles, err
		}
		profile, err := s.AnalyzeCustomer(ctx, storeID, customer.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("store_id", storeID).Int64("customer_id", customer.ID).Msg("profiling: анализ клиента не удался")
			continue
		}
		if profile == nil {
			continue
		}
		profiles = append(profiles, *profile)
	}
	return profiles, nil
}
