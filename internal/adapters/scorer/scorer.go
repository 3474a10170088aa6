package scorer

import (
	"math"
	"time"

	"order-insights/internal/domain"
)

// Веса частичных совпадений при сопоставлении правила.
const (
	frequencyCredit  = 1.0
	basketCredit     = 1.0
	timeBucketCredit = 0.5
	weekdayCredit    = 0.3
	creditCap        = 1.0
)

// Scorer подбирает сегмент клиента по статическому списку правил.
type Scorer struct {
	rules []domain.SegmentationRule
}

// New создаёт скорер. Порядок правил определяет победителя при равном счёте.
func New(rules []domain.SegmentationRule) *Scorer {
	return &Scorer{rules: rules}
}

// Score оценивает каждое правило и возвращает лучшее вместе с его счётом.
// Если ни одно правило не набрало баллов, возвращается правило по умолчанию
// со счётом 0.
func (s *Scorer) Score(stats domain.OrderStats, customer domain.Customer) (domain.SegmentationRule, float64) {
	best := domain.DefaultSegmentationRule()
	bestScore := 0.0
	matched := false
	for _, rule := range s.rules {
		score := ruleScore(rule, stats, customer)
		if score > bestScore {
			best = rule
			bestScore = score
			matched = true
		}
	}
	if !matched {
		return domain.DefaultSegmentationRule(), 0
	}
	return best, bestScore
}

func ruleScore(rule domain.SegmentationRule, stats domain.OrderStats, customer domain.Customer) float64 {
	c := rule.Criteria
	score := 0.0

	if c.Frequency != "" && c.Frequency == stats.Frequency {
		score += frequencyCredit
	}

	if c.MinAvgBasket != nil || c.MaxAvgBasket != nil {
		within := true
		if c.MinAvgBasket != nil && customer.AvgBasket < *c.MinAvgBasket {
			within = false
		}
		if c.MaxAvgBasket != nil && customer.AvgBasket > *c.MaxAvgBasket {
			within = false
		}
		if within {
			score += basketCredit
		}
	}

	if len(c.TimeBuckets) > 0 {
		matches := overlapStrings(c.TimeBuckets, stats.TimeBuckets)
		score += math.Min(timeBucketCredit*float64(matches), creditCap)
	}

	if len(c.Weekdays) > 0 {
		matches := overlapWeekdays(c.Weekdays, stats.TopWeekdays)
		score += math.Min(weekdayCredit*float64(matches), creditCap)
	}

	return score * rule.Weight
}

func overlapStrings(want, have []string) int {
	matches := 0
	for _, w := range want {
		for _, h := range have {
			if w == h {
				matches++
				break
			}
		}
	}
	return matches
}

func overlapWeekdays(want, have []time.Weekday) int {
	matches := 0
	for _, w := range want {
		for _, h := range have {
			if w == h {
				matches++
				break
			}
		}
	}
	return matches
}
