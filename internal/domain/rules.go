package domain

import (
	"strings"
	"time"
)

// Временные интервалы, в которые группируются часы заказов.
const (
	BucketMorning = "07:00-11:00"
	BucketLunch   = "11:00-14:00"
	BucketEvening = "18:00-22:00"
)

// RuleCriteria — частичный предикат правила сегментации.
// Незаполненные поля в сопоставлении не участвуют.
type RuleCriteria struct {
	Frequency    Frequency
	MinAvgBasket *float64
	MaxAvgBasket *float64
	TimeBuckets  []string
	Weekdays     []time.Weekday
}

// SegmentationRule — статическое правило сегментации с весом.
type SegmentationRule struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Criteria RuleCriteria `json:"-"`
	Weight   float64      `json:"weight"`
}

// DefaultSegmentID назначается, когда ни одно правило не набрало баллов.
const DefaultSegmentID = "nouveaux"

func f64(v float64) *float64 { return &v }

// Список правил фиксирован на процесс. Порядок определяет победителя
// при равном счёте: выигрывает более раннее правило.
var segmentationRules = []SegmentationRule{
	{ID: "nouveaux", Name: "Nouveaux clients", Criteria: RuleCriteria{Frequency: FrequencyNew}, Weight: 1.0},
	{ID: "occasionnels", Name: "Clients occasionnels", Criteria: RuleCriteria{Frequency: FrequencyOccasional}, Weight: 1.1},
	{ID: "reguliers", Name: "Clients réguliers", Criteria: RuleCriteria{Frequency: FrequencyRegular, MinAvgBasket: f64(15), MaxAvgBasket: f64(40)}, Weight: 1.3},
	{ID: "premium", Name: "Gros paniers", Criteria: RuleCriteria{MinAvgBasket: f64(35)}, Weight: 1.5},
	{ID: "vip", Name: "Clients VIP", Criteria: RuleCriteria{Frequency: FrequencyVIP}, Weight: 2.0},
	{ID: "midi", Name: "Habitués du midi", Criteria: RuleCriteria{TimeBuckets: []string{BucketLunch}}, Weight: 1.2},
	{ID: "soir", Name: "Commandes du soir", Criteria: RuleCriteria{TimeBuckets: []string{BucketEvening}}, Weight: 1.2},
	{ID: "matin", Name: "Lève-tôt", Criteria: RuleCriteria{TimeBuckets: []string{BucketMorning}}, Weight: 1.1},
	{ID: "weekend", Name: "Clients du week-end", Criteria: RuleCriteria{Weekdays: []time.Weekday{time.Saturday, time.Sunday}}, Weight: 1.2},
}

// SegmentationRules возвращает копию списка правил, чтобы исключить
// мутацию конфигурации из вызывающего кода.
func SegmentationRules() []SegmentationRule {
	rules := make([]SegmentationRule, len(segmentationRules))
	copy(rules, segmentationRules)
	return rules
}

// DefaultSegmentationRule возвращает правило по умолчанию.
func DefaultSegmentationRule() SegmentationRule {
	for _, rule := range segmentationRules {
		if rule.ID == DefaultSegmentID {
			return rule
		}
	}
	return segmentationRules[0]
}

const genericGreeting = "Bonjour {first_name}, merci pour votre fidélité !"

// Шаблоны приветствий по отображаемому имени сегмента.
var greetingTemplates = map[string]string{
	"Nouveaux clients":     "Bienvenue {first_name} ! Découvrez nos spécialités.",
	"Clients occasionnels": "Content de vous revoir {first_name} ! Votre plat préféré vous attend.",
	"Clients réguliers":    "Bonjour {first_name}, comme d'habitude ?",
	"Gros paniers":         "Bonjour {first_name}, notre sélection du chef devrait vous plaire.",
	"Clients VIP":          "Ravi de vous retrouver {first_name}, votre table est prête !",
	"Habitués du midi":     "Bonjour {first_name}, la formule du midi est arrivée.",
	"Commandes du soir":    "Bonsoir {first_name}, envie d'un dîner sans attendre ?",
	"Lève-tôt":             "Bonjour {first_name}, le petit-déjeuner est servi.",
	"Clients du week-end":  "Bon week-end {first_name} ! Une envie gourmande ?",
}

// GreetingFor подставляет имя клиента в шаблон сегмента. Для неизвестного
// сегмента возвращается общий шаблон.
func GreetingFor(segmentName, firstName string) string {
	tmpl, ok := greetingTemplates[segmentName]
	if !ok {
		tmpl = genericGreeting
	}
	return strings.ReplaceAll(tmpl, "{first_name}", firstName)
}
