package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"order-insights/internal/domain"
	"order-insights/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.CustomerRepo      = (*Postgres)(nil)
	_ domain.OrderRepo         = (*Postgres)(nil)
	_ domain.ProductRepo       = (*Postgres)(nil)
	_ domain.ProfileRepo       = (*Postgres)(nil)
	_ domain.StoreRepo         = (*Postgres)(nil)
	_ domain.ProfileJobRepo    = (*Postgres)(nil)
	_ domain.AnalysisEventRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetCustomer возвращает агрегаты клиента в рамках заведения.
func (p *Postgres) GetCustomer(storeID, customerID int64) (domain.Customer, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		customer domain.Customer
		lastName sql.NullString
		phone    sql.NullString
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, store_id, first_name, last_name, phone, avg_basket, order_count, total_spent, created_at, updated_at
FROM customers WHERE store_id=$1 AND id=$2
`, storeID, customerID).Scan(&customer.ID, &customer.StoreID, &customer.FirstName, &lastName, &phone, &customer.AvgBasket, &customer.OrderCount, &customer.TotalSpent, &customer.CreatedAt, &customer.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "customers_get", "customers", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	if err != nil {
		return domain.Customer{}, err
	}
	if lastName.Valid {
		customer.LastName = lastName.String
	}
	if phone.Valid {
		customer.Phone = phone.String
	}
	return customer, nil
}

// ListCustomersWithOrders возвращает клиентов заведения, у которых есть
// хотя бы один заказ.
func (p *Postgres) ListCustomersWithOrders(storeID int64) ([]domain.Customer, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, store_id, first_name, last_name, phone, avg_basket, order_count, total_spent, created_at, updated_at
FROM customers WHERE store_id=$1 AND order_count > 0
ORDER BY id
`, storeID)
	metrics.ObserveNetworkRequest("postgres", "customers_list_with_orders", "customers", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []domain.Customer
	for rows.Next() {
		var (
			c        domain.Customer
			lastName sql.NullString
			phone    sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.StoreID, &c.FirstName, &lastName, &phone, &c.AvgBasket, &c.OrderCount, &c.TotalSpent, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if lastName.Valid {
			c.LastName = lastName.String
		}
		if phone.Valid {
			c.Phone = phone.String
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ListRecentOrders возвращает последние заказы клиента, новые первыми.
func (p *Postgres) ListRecentOrders(storeID, customerID int64, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, store_id, customer_id, total, items_json, created_at
FROM orders WHERE store_id=$1 AND customer_id=$2
ORDER BY created_at DESC
LIMIT $3
`, storeID, customerID, limit)
	metrics.ObserveNetworkRequest("postgres", "orders_list_recent", "orders", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []domain.Order
	for rows.Next() {
		var (
			order     domain.Order
			itemsJSON []byte
		)
		if err := rows.Scan(&order.ID, &order.StoreID, &order.CustomerID, &order.Total, &itemsJSON, &order.CreatedAt); err != nil {
			return nil, err
		}
		if len(itemsJSON) > 0 {
			if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
				return nil, err
			}
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ListPopularByCategories возвращает активные товары по категориям,
// отсортированные по убыванию популярности.
func (p *Postgres) ListPopularByCategories(storeID int64, categories []string, limit int) ([]domain.Product, error) {
	if len(categories) == 0 || limit <= 0 {
		return nil, nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, store_id, name, category, price, is_active, popularity
FROM products WHERE store_id=$1 AND is_active AND category = ANY($2)
ORDER BY popularity DESC
LIMIT $3
`, storeID, categories, limit)
	metrics.ObserveNetworkRequest("postgres", "products_list_popular", "products", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []domain.Product
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.StoreID, &product.Name, &product.Category, &product.Price, &product.IsActive, &product.Popularity); err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpsertProfile сохраняет рассчитанный профиль. Последняя запись побеждает.
func (p *Postgres) UpsertProfile(profile domain.CustomerProfile) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	prefsJSON, err := json.Marshal(profile.Preferences)
	if err != nil {
		return err
	}
	behaviorJSON, err := json.Marshal(profile.Behavior)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO customer_profiles (customer_id, store_id, segment_id, segment, score, preferences_json, behavior_json, recommendations, message, analyzed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (customer_id) DO UPDATE
    SET store_id = EXCLUDED.store_id,
        segment_id = EXCLUDED.segment_id,
        segment = EXCLUDED.segment,
        score = EXCLUDED.score,
        preferences_json = EXCLUDED.preferences_json,
        behavior_json = EXCLUDED.behavior_json,
        recommendations = EXCLUDED.recommendations,
        message = EXCLUDED.message,
        analyzed_at = EXCLUDED.analyzed_at
`, profile.CustomerID, profile.StoreID, profile.SegmentID, profile.Segment, profile.Score, prefsJSON, behaviorJSON, profile.Recommendations, profile.PersonalizedMessage, profile.AnalyzedAt)
	metrics.ObserveNetworkRequest("postgres", "customer_profiles_upsert", "customer_profiles", start, err)
	if err != nil {
		return err
	}

	storeID := profile.StoreID
	customerID := profile.CustomerID
	_ = p.saveAnalysisEvent(ctx, domain.AnalysisEvent{
		Event:      domain.AnalysisEventProfileBuilt,
		StoreID:    &storeID,
		CustomerID: &customerID,
		Metadata: map[string]any{
			"segment": profile.SegmentID,
			"score":   profile.Score,
		},
	})
	return nil
}

// GetProfile возвращает последний сохранённый профиль клиента.
func (p *Postgres) GetProfile(storeID, customerID int64) (domain.CustomerProfile, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		profile      domain.CustomerProfile
		prefsJSON    []byte
		behaviorJSON []byte
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT customer_id, store_id, segment_id, segment, score, preferences_json, behavior_json, recommendations, message, analyzed_at
FROM customer_profiles WHERE store_id=$1 AND customer_id=$2
`, storeID, customerID).Scan(&profile.CustomerID, &profile.StoreID, &profile.SegmentID, &profile.Segment, &profile.Score, &prefsJSON, &behaviorJSON, &profile.Recommendations, &profile.PersonalizedMessage, &profile.AnalyzedAt)
	metrics.ObserveNetworkRequest("postgres", "customer_profiles_get", "customer_profiles", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CustomerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.CustomerProfile{}, err
	}
	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &profile.Preferences); err != nil {
			return domain.CustomerProfile{}, err
		}
	}
	if len(behaviorJSON) > 0 {
		if err := json.Unmarshal(behaviorJSON, &profile.Behavior); err != nil {
			return domain.CustomerProfile{}, err
		}
	}
	return profile, nil
}

// ListStores возвращает все заведения.
func (p *Postgres) ListStores() ([]domain.Store, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, name, tz, created_at FROM stores ORDER BY id`)
	metrics.ObserveNetworkRequest("postgres", "stores_list", "stores", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var stores []domain.Store
	for rows.Next() {
		var (
			store domain.Store
			tz    sql.NullString
		)
		if err := rows.Scan(&store.ID, &store.Name, &tz, &store.CreatedAt); err != nil {
			return nil, err
		}
		if tz.Valid {
			store.Timezone = tz.String
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

// EnsureProfileJob регистрирует попытку обработки задачи пересчёта.
func (p *Postgres) EnsureProfileJob(jobID string) (bool, int, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var (
		done     sql.NullTime
		attempts int
	)

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO profile_jobs (job_id, attempts, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (job_id) DO UPDATE
    SET attempts = profile_jobs.attempts + 1,
        updated_at = now()
RETURNING done_at, attempts
`, jobID).Scan(&done, &attempts)
	metrics.ObserveNetworkRequest("postgres", "profile_jobs_upsert", "profile_jobs", start, err)
	if err != nil {
		return false, 0, err
	}

	return done.Valid, attempts, nil
}

// MarkProfileJobDone помечает задачу выполненной.
func (p *Postgres) MarkProfileJobDone(jobID string) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE profile_jobs
SET done_at = COALESCE(done_at, now()),
    updated_at = now()
WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "profile_jobs_mark_done", "profile_jobs", start, err)
	return err
}

func (p *Postgres) saveAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error {
	if event.Event == "" {
		return nil
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var storeID sql.NullInt64
	if event.StoreID != nil {
		storeID = sql.NullInt64{Int64: *event.StoreID, Valid: true}
	}

	var customerID sql.NullInt64
	if event.CustomerID != nil {
		customerID = sql.NullInt64{Int64: *event.CustomerID, Valid: true}
	}

	var payload []byte
	if event.Metadata != nil {
		if data, err := json.Marshal(event.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO analysis_events (event, store_id, customer_id, metadata, occurred_at)
VALUES ($1, $2, $3, $4, $5)
`, event.Event, storeID, customerID, payload, event.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "analysis_events_insert", "analysis_events", start, err)
	return err
}

// RecordAnalysisEvent сохраняет событие анализа в БД.
func (p *Postgres) RecordAnalysisEvent(ctx context.Context, event domain.AnalysisEvent) error {
	return p.saveAnalysisEvent(ctx, event)
}
