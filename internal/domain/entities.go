package domain

import "time"

// Store описывает заведение (арендатора) в системе.
type Store struct {
	ID        int64
	Name      string
	Timezone  string
	CreatedAt time.Time
}

// Customer хранит агрегаты клиента, которые ведёт подсистема заказов.
// Для анализа они доступны только на чтение.
type Customer struct {
	ID         int64
	StoreID    int64
	FirstName  string
	LastName   string
	Phone      string
	AvgBasket  float64
	OrderCount int
	TotalSpent float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem представляет позицию заказа.
type OrderItem struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order представляет оформленный заказ. Неизменяем после создания.
type Order struct {
	ID         int64
	StoreID    int64
	CustomerID int64
	Total      float64
	Items      []OrderItem
	CreatedAt  time.Time
}

// Product описывает позицию каталога заведения.
type Product struct {
	ID         int64
	StoreID    int64
	Name       string
	Category   string
	Price      float64
	IsActive   bool
	Popularity int
}

// Frequency — грубая метка частоты заказов клиента.
type Frequency string

const (
	FrequencyNew        Frequency = "new"
	FrequencyOccasional Frequency = "occasional"
	FrequencyRegular    Frequency = "regular"
	FrequencyVIP        Frequency = "vip"
)

// FrequencyFor возвращает метку частоты по числу заказов за всё время,
// а не по размеру выборки последних заказов.
func FrequencyFor(lifetimeOrders int) Frequency {
	switch {
	case lifetimeOrders >= 20:
		return FrequencyVIP
	case lifetimeOrders >= 10:
		return FrequencyRegular
	case lifetimeOrders >= 3:
		return FrequencyOccasional
	default:
		return FrequencyNew
	}
}

// OrderStats — статистика по выборке последних заказов клиента.
type OrderStats struct {
	Last30Days  int
	Last90Days  int
	TopHours    []int
	TopWeekdays []time.Weekday
	TimeBuckets []string
	Frequency   Frequency
}

// Preferences — выведенные предпочтения клиента.
type Preferences struct {
	FavoriteCategories []string   `json:"favorite_categories"`
	PriceRange         [2]float64 `json:"price_range"`
	OrderTiming        []string   `json:"order_timing"`
	Frequency          Frequency  `json:"frequency"`
}

// Behavior — поведенческие показатели клиента.
type Behavior struct {
	AvgOrderValue float64   `json:"avg_order_value"`
	TotalOrders   int       `json:"total_orders"`
	LastOrderDate time.Time `json:"last_order_date"`
	ChurnRisk     float64   `json:"churn_risk"`
	LifetimeValue float64   `json:"lifetime_value"`
}

// CustomerProfile — результат анализа клиента. Пересчитывается по запросу,
// сохранённая копия служит лишь кэшем.
type CustomerProfile struct {
	CustomerID          int64       `json:"customer_id"`
	StoreID             int64       `json:"store_id"`
	SegmentID           string      `json:"segment_id"`
	Segment             string      `json:"segment"`
	Score               float64     `json:"score"`
	Preferences         Preferences `json:"preferences"`
	Behavior            Behavior    `json:"behavior"`
	Recommendations     []int64     `json:"recommendations"`
	PersonalizedMessage string      `json:"personalized_message"`
	AnalyzedAt          time.Time   `json:"analyzed_at"`
}

// ProfileJob — задача на пересчёт профилей. Если CustomerID не задан,
// пересчитываются все клиенты заведения.
type ProfileJob struct {
	ID         string    `json:"id"`
	StoreID    int64     `json:"store_id"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AnalysisEvent — бизнесовое событие анализа для отчётности.
type AnalysisEvent struct {
	Event      string
	StoreID    *int64
	CustomerID *int64
	Metadata   map[string]any
	OccurredAt time.Time
}

// События анализа.
const (
	AnalysisEventProfileBuilt  = "profile_built"
	AnalysisEventBatchFinished = "batch_finished"
)
