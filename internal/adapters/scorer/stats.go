package scorer

import (
	"fmt"
	"sort"
	"time"

	"order-insights/internal/domain"
)

const (
	topHoursLimit    = 3
	topWeekdaysLimit = 3
	orderTimingLimit = 2
	favoritesLimit   = 3
)

// BuildStats считает статистику по выборке заказов. Заказы ожидаются
// отсортированными от новых к старым.
func BuildStats(orders []domain.Order, lifetimeOrders int, now time.Time) domain.OrderStats {
	stats := domain.OrderStats{Frequency: domain.FrequencyFor(lifetimeOrders)}

	hourCounts := make(map[int]int)
	var hourSeen []int
	dayCounts := make(map[time.Weekday]int)
	var daySeen []time.Weekday

	for _, order := range orders {
		age := now.Sub(order.CreatedAt)
		if age <= 30*24*time.Hour {
			stats.Last30Days++
		}
		if age <= 90*24*time.Hour {
			stats.Last90Days++
		}

		hour := order.CreatedAt.Hour()
		if _, ok := hourCounts[hour]; !ok {
			hourSeen = append(hourSeen, hour)
		}
		hourCounts[hour]++

		day := order.CreatedAt.Weekday()
		if _, ok := dayCounts[day]; !ok {
			daySeen = append(daySeen, day)
		}
		dayCounts[day]++
	}

	stats.TopHours = topHours(hourSeen, hourCounts, topHoursLimit)
	stats.TopWeekdays = topWeekdays(daySeen, dayCounts, topWeekdaysLimit)

	for _, hour := range stats.TopHours {
		bucket := BucketForHour(hour)
		if bucket == "" {
			continue
		}
		if !containsString(stats.TimeBuckets, bucket) {
			stats.TimeBuckets = append(stats.TimeBuckets, bucket)
		}
	}

	return stats
}

// BucketForHour сопоставляет час заказа грубому интервалу дня.
// Часы вне интервалов не учитываются.
func BucketForHour(hour int) string {
	switch {
	case hour >= 7 && hour < 11:
		return domain.BucketMorning
	case hour >= 11 && hour < 14:
		return domain.BucketLunch
	case hour >= 18 && hour < 22:
		return domain.BucketEvening
	default:
		return ""
	}
}

// BuildPreferences выводит предпочтения из выборки заказов.
// Равные частоты разрешаются в пользу встреченного раньше.
func BuildPreferences(orders []domain.Order, stats domain.OrderStats) domain.Preferences {
	prefs := domain.Preferences{Frequency: stats.Frequency}
	if len(orders) == 0 {
		return prefs
	}

	categoryCounts := make(map[string]int)
	var categorySeen []string
	minTotal := orders[0].Total
	maxTotal := orders[0].Total

	for _, order := range orders {
		if order.Total < minTotal {
			minTotal = order.Total
		}
		if order.Total > maxTotal {
			maxTotal = order.Total
		}
		for _, item := range order.Items {
			if item.Category == "" {
				continue
			}
			if _, ok := categoryCounts[item.Category]; !ok {
				categorySeen = append(categorySeen, item.Category)
			}
			categoryCounts[item.Category]++
		}
	}

	favorites := append([]string(nil), categorySeen...)
	sort.SliceStable(favorites, func(i, j int) bool {
		return categoryCounts[favorites[i]] > categoryCounts[favorites[j]]
	})
	if len(favorites) > favoritesLimit {
		favorites = favorites[:favoritesLimit]
	}
	prefs.FavoriteCategories = favorites
	prefs.PriceRange = [2]float64{minTotal, maxTotal}

	timing := stats.TopHours
	if len(timing) > orderTimingLimit {
		timing = timing[:orderTimingLimit]
	}
	for _, hour := range timing {
		prefs.OrderTiming = append(prefs.OrderTiming, fmt.Sprintf("%d:00", hour))
	}

	return prefs
}

// ChurnRisk — ступенчатая оценка риска оттока по давности последнего заказа.
func ChurnRisk(lastOrder, now time.Time) float64 {
	days := now.Sub(lastOrder).Hours() / 24
	switch {
	case days > 30:
		return 0.8
	case days > 14:
		return 0.5
	case days > 7:
		return 0.2
	default:
		return 0
	}
}

func topHours(seen []int, counts map[int]int, limit int) []int {
	top := append([]int(nil), seen...)
	sort.SliceStable(top, func(i, j int) bool { return counts[top[i]] > counts[top[j]] })
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

func topWeekdays(seen []time.Weekday, counts map[time.Weekday]int, limit int) []time.Weekday {
	top := append([]time.Weekday(nil), seen...)
	sort.SliceStable(top, func(i, j int) bool { return counts[top[i]] > counts[top[j]] })
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
