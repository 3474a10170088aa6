package scorer

import (
	"math"
	"testing"
	"time"

	"order-insights/internal/domain"
)

func order(t *testing.T, value string, total float64, items ...domain.OrderItem) domain.Order {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatalf("некорректное время заказа %q: %v", value, err)
	}
	return domain.Order{Total: total, Items: items, CreatedAt: ts}
}

// Выборка обеденного завсегдатая: часы 12,12,13 и вечера выходных,
// средний чек 31 при 12 заказах за всё время.
func lunchRegularOrders(t *testing.T) []domain.Order {
	t.Helper()
	return []domain.Order{
		order(t, "2026-08-22 19:00", 45), // суббота
		order(t, "2026-08-18 13:00", 18, domain.OrderItem{Name: "Salade niçoise", Category: "salades", Quantity: 1, Price: 18}),
		order(t, "2026-08-17 12:00", 20, domain.OrderItem{Name: "Pizza margherita", Category: "pizzas", Quantity: 1, Price: 20}),
		order(t, "2026-08-15 20:00", 50, domain.OrderItem{Name: "Pizza quattro", Category: "pizzas", Quantity: 2, Price: 25}),
		order(t, "2026-08-10 12:00", 22, domain.OrderItem{Name: "Tiramisu", Category: "desserts", Quantity: 1, Price: 6}),
	}
}

func TestScoreLunchRegular(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	orders := lunchRegularOrders(t)
	customer := domain.Customer{AvgBasket: 31, OrderCount: 12}

	stats := BuildStats(orders, customer.OrderCount, now)
	if stats.Frequency != domain.FrequencyRegular {
		t.Fatalf("частота %q, ожидалась %q", stats.Frequency, domain.FrequencyRegular)
	}
	if stats.Last30Days != 5 {
		t.Fatalf("Last30Days = %d, ожидалось 5", stats.Last30Days)
	}
	if len(stats.TopHours) == 0 || stats.TopHours[0] != 12 {
		t.Fatalf("самый частый час %v, ожидался 12", stats.TopHours)
	}

	rule, score := New(domain.SegmentationRules()).Score(stats, customer)
	if rule.ID != "reguliers" {
		t.Fatalf("сегмент %q, ожидался reguliers", rule.ID)
	}
	// частота 1.0 + чек в диапазоне 1.0, вес 1.3
	if math.Abs(score-2.6) > 1e-9 {
		t.Fatalf("счёт %v, ожидалось 2.6", score)
	}

	prefs := BuildPreferences(orders, stats)
	if prefs.PriceRange != [2]float64{18, 50} {
		t.Fatalf("диапазон чека %v, ожидался [18 50]", prefs.PriceRange)
	}
	if len(prefs.OrderTiming) == 0 || prefs.OrderTiming[0] != "12:00" {
		t.Fatalf("время заказов %v, ожидалось начало с 12:00", prefs.OrderTiming)
	}
	if len(prefs.FavoriteCategories) == 0 || prefs.FavoriteCategories[0] != "pizzas" {
		t.Fatalf("любимые категории %v, ожидались pizzas первыми", prefs.FavoriteCategories)
	}
}

func TestScoreDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	orders := lunchRegularOrders(t)
	customer := domain.Customer{AvgBasket: 31, OrderCount: 12}
	sc := New(domain.SegmentationRules())

	first, firstScore := sc.Score(BuildStats(orders, customer.OrderCount, now), customer)
	for i := 0; i < 10; i++ {
		rule, score := sc.Score(BuildStats(orders, customer.OrderCount, now), customer)
		if rule.ID != first.ID || score != firstScore {
			t.Fatalf("повторный расчёт дал %q/%v вместо %q/%v", rule.ID, score, first.ID, firstScore)
		}
	}
}

func TestScoreVIPBeatsPremium(t *testing.T) {
	stats := domain.OrderStats{Frequency: domain.FrequencyVIP}
	customer := domain.Customer{AvgBasket: 60, OrderCount: 25}

	rule, score := New(domain.SegmentationRules()).Score(stats, customer)
	if rule.ID != "vip" {
		t.Fatalf("сегмент %q, ожидался vip", rule.ID)
	}
	if math.Abs(score-2.0) > 1e-9 {
		t.Fatalf("счёт %v, ожидалось 2.0", score)
	}
}

func TestScoreNoMatchFallsBackToDefault(t *testing.T) {
	rule, score := New(domain.SegmentationRules()).Score(domain.OrderStats{}, domain.Customer{})
	if rule.ID != domain.DefaultSegmentID {
		t.Fatalf("сегмент %q, ожидался %q", rule.ID, domain.DefaultSegmentID)
	}
	if score != 0 {
		t.Fatalf("счёт %v, ожидался 0", score)
	}
}

func TestBucketForHour(t *testing.T) {
	cases := []struct {
		hour int
		want string
	}{
		{6, ""},
		{7, domain.BucketMorning},
		{10, domain.BucketMorning},
		{11, domain.BucketLunch},
		{13, domain.BucketLunch},
		{14, ""},
		{18, domain.BucketEvening},
		{21, domain.BucketEvening},
		{22, ""},
	}
	for _, tc := range cases {
		if got := BucketForHour(tc.hour); got != tc.want {
			t.Errorf("BucketForHour(%d) = %q, ожидалось %q", tc.hour, got, tc.want)
		}
	}
}

func TestBuildStatsWindows(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{Total: 10, CreatedAt: now.AddDate(0, 0, -40)},
		{Total: 12, CreatedAt: now.AddDate(0, 0, -100)},
	}

	stats := BuildStats(orders, 2, now)
	if stats.Last30Days != 0 {
		t.Fatalf("Last30Days = %d, ожидалось 0", stats.Last30Days)
	}
	if stats.Last90Days != 1 {
		t.Fatalf("Last90Days = %d, ожидалось 1", stats.Last90Days)
	}
}

func TestBuildPreferencesEmptyOrders(t *testing.T) {
	prefs := BuildPreferences(nil, domain.OrderStats{Frequency: domain.FrequencyNew})
	if prefs.Frequency != domain.FrequencyNew {
		t.Fatalf("частота %q, ожидалась new", prefs.Frequency)
	}
	if len(prefs.FavoriteCategories) != 0 || len(prefs.OrderTiming) != 0 {
		t.Fatalf("пустая выборка дала предпочтения: %+v", prefs)
	}
}

func TestBuildPreferencesFavoritesLimit(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	orders := []domain.Order{
		{
			Total:     30,
			CreatedAt: now.AddDate(0, 0, -1),
			Items: []domain.OrderItem{
				{Category: "pizzas"},
				{Category: "pizzas"},
				{Category: "salades"},
				{Category: "desserts"},
				{Category: "boissons"},
			},
		},
	}

	prefs := BuildPreferences(orders, BuildStats(orders, 1, now))
	if len(prefs.FavoriteCategories) != 3 {
		t.Fatalf("категорий %d, ожидалось 3", len(prefs.FavoriteCategories))
	}
	if prefs.FavoriteCategories[0] != "pizzas" {
		t.Fatalf("первая категория %q, ожидалась pizzas", prefs.FavoriteCategories[0])
	}
	// при равных частотах выигрывает встреченная раньше
	if prefs.FavoriteCategories[1] != "salades" || prefs.FavoriteCategories[2] != "desserts" {
		t.Fatalf("порядок категорий %v нарушает первый встреченный", prefs.FavoriteCategories)
	}
}

func TestChurnRisk(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		daysAgo int
		want    float64
	}{
		{0, 0},
		{5, 0},
		{10, 0.2},
		{20, 0.5},
		{40, 0.8},
	}
	for _, tc := range cases {
		if got := ChurnRisk(now.AddDate(0, 0, -tc.daysAgo), now); got != tc.want {
			t.Errorf("ChurnRisk(%d дней) = %v, ожидалось %v", tc.daysAgo, got, tc.want)
		}
	}
}
