// Package warehouse defines the backend-agnostic repository contract for the
// staging and warehouse schemas, plus the backend factory registry.
//
// The package deliberately imports no database driver; backends register
// themselves from their own packages (see warehouse/all).
package warehouse

import (
	"context"
	"fmt"
	"sync"

	"ecomdw/internal/calendar"
)

// Config is the minimal configuration needed to open a repository.
type Config struct {
	Kind string
	DSN  string
}

// PaymentMethod is one static payment-method dimension row.
type PaymentMethod struct {
	Name          string
	Type          string
	ProcessingFee float64
}

// ShippingMethod is one static shipping-method dimension row.
type ShippingMethod struct {
	Name          string
	EstimatedDays int
	BaseCost      float64
}

// Repository is the storage contract the loaders and the quality checker
// depend on. Each method executes as its own committed statement or
// transaction; there is no transaction spanning a whole phase, so reruns
// rely on the idempotence of the individual operations.
//
// All state lives in the tables themselves: every "insert new" operation
// re-derives what has already been loaded by querying the target table.
type Repository interface {
	// Close releases backend resources. Call once at process shutdown.
	Close()

	// EnsureSchemas creates the staging and warehouse schemas and every
	// table the pipeline touches. Idempotent.
	EnsureSchemas(ctx context.Context) error

	// ReplaceStaging replaces the full contents of a staging table.
	// Rows are aligned with columns; nil values become SQL NULL.
	ReplaceStaging(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// CountRows counts the rows of a schema-qualified table.
	CountRows(ctx context.Context, table string) (int64, error)

	// InsertDateRows bulk-appends fully-derived date rows.
	InsertDateRows(ctx context.Context, rows []calendar.DateRow) (int64, error)

	// InsertDateRowIfAbsent appends one date row unless its key already
	// exists. Used by the fact loader's date reconciliation.
	InsertDateRowIfAbsent(ctx context.Context, row calendar.DateRow) error

	// SeedPaymentMethods / SeedShippingMethods append the static lookup
	// rows. The caller is responsible for the skip-if-populated check.
	SeedPaymentMethods(ctx context.Context, methods []PaymentMethod) (int64, error)
	SeedShippingMethods(ctx context.Context, methods []ShippingMethod) (int64, error)

	// InsertNewCustomers inserts a current dimension row for every staged
	// customer whose business key has no is_current row yet. Returns the
	// number of rows inserted. Attribute changes on known keys are not
	// detected; this is an append of previously-unseen keys only.
	InsertNewCustomers(ctx context.Context) (int64, error)

	// InsertNewProducts is the same policy keyed on product_id.
	InsertNewProducts(ctx context.Context) (int64, error)

	// MissingDateKeys returns the distinct order-date keys present in
	// staging.orders but absent from warehouse.dim_date, ascending.
	MissingDateKeys(ctx context.Context) ([]int, error)

	// InsertNewFactOrders inserts one fact row per staged order not yet in
	// fact_orders whose date key exists in dim_date. Item quantity and
	// subtotal use left-join semantics (0 when the order has no items);
	// customer/payment/shipping surrogate keys are null when the dimension
	// has no current match.
	InsertNewFactOrders(ctx context.Context) (int64, error)

	// InsertNewFactOrderItems inserts one row per staged order item whose
	// parent order has a fact row and whose product has a current dimension
	// row (items without one are skipped), unless the (order_key,
	// product_key) pair already exists. Unit cost is snapshotted from the
	// current product row; profit = line_total - unit_cost * quantity.
	InsertNewFactOrderItems(ctx context.Context) (int64, error)

	// SelectInt runs a parameter-free read-only scalar query. Used by the
	// quality checker; queries must stick to portable ANSI SQL.
	SelectInt(ctx context.Context, query string) (int64, error)

	// CurrentDuplicateKeys counts business keys that have more than one
	// is_current row in an SCD dimension.
	CurrentDuplicateKeys(ctx context.Context, table, keyColumn string) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Backends call Register from
// init(); registering the same kind twice panics to fail fast on ambiguous
// backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Repository using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("warehouse: unsupported kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}

// DefaultPaymentMethods is the fixed seed set for dim_payment_method.
func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{Name: "Credit Card", Type: "Card", ProcessingFee: 2.5},
		{Name: "PayPal", Type: "Digital", ProcessingFee: 3.0},
		{Name: "Debit Card", Type: "Card", ProcessingFee: 2.0},
		{Name: "Gift Card", Type: "Card", ProcessingFee: 0.0},
	}
}

// DefaultShippingMethods is the fixed seed set for dim_shipping_method.
func DefaultShippingMethods() []ShippingMethod {
	return []ShippingMethod{
		{Name: "Standard", EstimatedDays: 5, BaseCost: 5.99},
		{Name: "Express", EstimatedDays: 3, BaseCost: 12.99},
		{Name: "Next Day", EstimatedDays: 1, BaseCost: 24.99},
	}
}
