package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCustomerNotFound возвращается, если клиент не найден в заведении.
var ErrCustomerNotFound = errors.New("клиент не найден")

// ErrProfileNotFound возвращается, если профиль ещё не рассчитан.
var ErrProfileNotFound = errors.New("профиль не найден")

// CustomerRepo читает агрегаты клиентов.
type CustomerRepo interface {
	GetCustomer(storeID, customerID int64) (Customer, error)
	ListCustomersWithOrders(storeID int64) ([]Customer, error)
}

// OrderRepo читает историю заказов.
type OrderRepo interface {
	ListRecentOrders(storeID, customerID int64, limit int) ([]Order, error)
}

// ProductRepo читает каталог заведения.
type ProductRepo interface {
	ListPopularByCategories(storeID int64, categories []string, limit int) ([]Product, error)
}

// ProfileRepo хранит рассчитанные профили.
type ProfileRepo interface {
	UpsertProfile(profile CustomerProfile) error
	GetProfile(storeID, customerID int64) (CustomerProfile, error)
}

// StoreRepo читает список заведений.
type StoreRepo interface {
	ListStores() ([]Store, error)
}

// ProfileJobRepo отслеживает попытки обработки задач пересчёта.
type ProfileJobRepo interface {
	EnsureProfileJob(jobID string) (done bool, attempts int, err error)
	MarkProfileJobDone(jobID string) error
}

// AnalysisEventRepo сохраняет события анализа.
type AnalysisEventRepo interface {
	RecordAnalysisEvent(ctx context.Context, event AnalysisEvent) error
}

// Profiler — контракт анализа клиентов.
type Profiler interface {
	AnalyzeCustomer(ctx context.Context, storeID, customerID int64) (*CustomerProfile, error)
	AnalyzeAllCustomers(ctx context.Context, storeID int64) ([]CustomerProfile, error)
}

// ProfileQueue — очередь задач пересчёта.
type ProfileQueue interface {
	Enqueue(ctx context.Context, job ProfileJob) error
	Pop(ctx context.Context) (ProfileJob, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
