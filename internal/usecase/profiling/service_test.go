package profiling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"order-insights/internal/adapters/scorer"
	"order-insights/internal/domain"
)

type stubCustomers struct {
	customer domain.Customer
	err      error
	list     []domain.Customer
	listErr  error
}

func (s *stubCustomers) GetCustomer(storeID, customerID int64) (domain.Customer, error) {
	return s.customer, s.err
}

func (s *stubCustomers) ListCustomersWithOrders(storeID int64) ([]domain.Customer, error) {
	return s.list, s.listErr
}

type stubOrders struct {
	byCustomer map[int64][]domain.Order
	errFor     map[int64]error
}

func (s *stubOrders) ListRecentOrders(storeID, customerID int64, limit int) ([]domain.Order, error) {
	if err, ok := s.errFor[customerID]; ok {
		return nil, err
	}
	return s.byCustomer[customerID], nil
}

type stubProducts struct {
	products []domain.Product
	err      error
	calls    int
}

func (s *stubProducts) ListPopularByCategories(storeID int64, categories []string, limit int) ([]domain.Product, error) {
	s.calls++
	return s.products, s.err
}

type stubProfiles struct {
	saved []domain.CustomerProfile
	err   error
}

func (s *stubProfiles) UpsertProfile(profile domain.CustomerProfile) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, profile)
	return nil
}

func (s *stubProfiles) GetProfile(storeID, customerID int64) (domain.CustomerProfile, error) {
	return domain.CustomerProfile{}, domain.ErrProfileNotFound
}

func newTestService(customers *stubCustomers, orders *stubOrders, products *stubProducts, profiles *stubProfiles) *Service {
	return NewService(customers, orders, products, profiles,
		scorer.New(domain.SegmentationRules()), zerolog.Nop(), 50, 5)
}

func recentOrders(n int) []domain.Order {
	now := time.Now().UTC()
	orders := make([]domain.Order, 0, n)
	for i := 0; i < n; i++ {
		orders = append(orders, domain.Order{
			Total:     20 + float64(i),
			CreatedAt: now.AddDate(0, 0, -i),
			Items:     []domain.OrderItem{{Name: "Pizza margherita", Category: "pizzas", Quantity: 1, Price: 20}},
		})
	}
	return orders
}

func TestAnalyzeCustomerNoOrders(t *testing.T) {
	profiles := &stubProfiles{}
	svc := newTestService(
		&stubCustomers{customer: domain.Customer{ID: 7}},
		&stubOrders{},
		&stubProducts{},
		profiles,
	)

	profile, err := svc.AnalyzeCustomer(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("отсутствие заказов не должно быть ошибкой: %v", err)
	}
	if profile != nil {
		t.Fatalf("ожидался nil профиль, получен %+v", profile)
	}
	if len(profiles.saved) != 0 {
		t.Fatalf("профиль не должен сохраняться без заказов")
	}
}

func TestAnalyzeCustomerOrdersError(t *testing.T) {
	svc := newTestService(
		&stubCustomers{},
		&stubOrders{errFor: map[int64]error{7: errors.New("БД недоступна")}},
		&stubProducts{},
		&stubProfiles{},
	)

	profile, err := svc.AnalyzeCustomer(context.Background(), 1, 7)
	if err == nil {
		t.Fatal("ошибка чтения заказов должна возвращаться")
	}
	if profile != nil {
		t.Fatalf("при ошибке профиль должен быть nil, получен %+v", profile)
	}
}

func TestAnalyzeCustomerBuildsProfile(t *testing.T) {
	products := &stubProducts{products: []domain.Product{{ID: 101}, {ID: 102}}}
	profiles := &stubProfiles{}
	svc := newTestService(
		&stubCustomers{customer: domain.Customer{ID: 7, FirstName: "Marie", AvgBasket: 21, OrderCount: 4, TotalSpent: 84}},
		&stubOrders{byCustomer: map[int64][]domain.Order{7: recentOrders(4)}},
		products,
		profiles,
	)

	profile, err := svc.AnalyzeCustomer(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("анализ не удался: %v", err)
	}
	if profile == nil {
		t.Fatal("ожидался профиль")
	}
	if profile.SegmentID == "" || profile.Segment == "" {
		t.Fatalf("сегмент не назначен: %+v", profile)
	}
	if profile.Preferences.Frequency != domain.FrequencyOccasional {
		t.Fatalf("частота %q, ожидалась occasional", profile.Preferences.Frequency)
	}
	if len(profile.Recommendations) != 2 || profile.Recommendations[0] != 101 {
		t.Fatalf("рекомендации %v, ожидались [101 102]", profile.Recommendations)
	}
	if profile.PersonalizedMessage == "" {
		t.Fatal("персональное сообщение пустое")
	}
	if profile.Behavior.LifetimeValue != 84 {
		t.Fatalf("LTV %v, ожидалось 84", profile.Behavior.LifetimeValue)
	}
	if len(profiles.saved) != 1 {
		t.Fatalf("сохранено %d профилей, ожидался 1", len(profiles.saved))
	}
}

func TestAnalyzeCustomerRecommendationFailureDegrades(t *testing.T) {
	svc := newTestService(
		&stubCustomers{customer: domain.Customer{ID: 7, FirstName: "Paul", AvgBasket: 21, OrderCount: 4}},
		&stubOrders{byCustomer: map[int64][]domain.Order{7: recentOrders(4)}},
		&stubProducts{err: errors.New("каталог недоступен")},
		&stubProfiles{},
	)

	profile, err := svc.AnalyzeCustomer(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("ошибка каталога не должна ронять анализ: %v", err)
	}
	if profile.Recommendations == nil || len(profile.Recommendations) != 0 {
		t.Fatalf("рекомендации должны деградировать до пустого списка, получено %v", profile.Recommendations)
	}
	if profile.SegmentID == "" {
		t.Fatal("сегмент должен быть назначен несмотря на ошибку каталога")
	}
}

func TestAnalyzeCustomerUpsertFailureSwallowed(t *testing.T) {
	svc := newTestService(
		&stubCustomers{customer: domain.Customer{ID: 7, OrderCount: 4, AvgBasket: 21}},
		&stubOrders{byCustomer: map[int64][]domain.Order{7: recentOrders(4)}},
		&stubProducts{},
		&stubProfiles{err: errors.New("запись не удалась")},
	)

	profile, err := svc.AnalyzeCustomer(context.Background(), 1, 7)
	if err != nil {
		t.Fatalf("ошибка сохранения не должна возвращаться: %v", err)
	}
	if profile == nil {
		t.Fatal("профиль должен возвращаться даже при ошибке сохранения")
	}
}

func TestAnalyzeAllCustomersSkipsEmptyAndFailed(t *testing.T) {
	customers := &stubCustomers{
		customer: domain.Customer{OrderCount: 4, AvgBasket: 21},
		list: []domain.Customer{
			{ID: 1},
			{ID: 2}, // без заказов
			{ID: 3}, // ошибка чтения заказов
		},
	}
	orders := &stubOrders{
		byCustomer: map[int64][]domain.Order{1: recentOrders(4)},
		errFor:     map[int64]error{3: errors.New("БД недоступна")},
	}
	svc := newTestService(customers, orders, &stubProducts{}, &stubProfiles{})

	profiles, err := svc.AnalyzeAllCustomers(context.Background(), 1)
	if err != nil {
		t.Fatalf("пакетный анализ не удался: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("профилей %d, ожидался 1", len(profiles))
	}
	if profiles[0].CustomerID != 1 {
		t.Fatalf("профиль клиента %d, ожидался 1", profiles[0].CustomerID)
	}
}

func TestAnalyzeAllCustomersContextCancelled(t *testing.T) {
	customers := &stubCustomers{list: []domain.Customer{{ID: 1}}}
	svc := newTestService(customers, &stubOrders{}, &stubProducts{}, &stubProfiles{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.AnalyzeAllCustomers(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась отмена контекста, получено %v", err)
	}
}
