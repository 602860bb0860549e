// Package dims populates the warehouse dimension tables.
//
// Loading order is fixed: date, payment methods, shipping methods,
// customers, products. The generated and seeded dimensions are
// skip-if-populated; the SCD dimensions append previously-unseen business
// keys and never rewrite existing rows.
package dims

import (
	"context"
	"fmt"
	"log"
	"time"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

// Loader populates dimensions through a warehouse.Repository.
type Loader struct {
	Repo      warehouse.Repository
	DateStart time.Time
	DateEnd   time.Time
}

// New returns a Loader generating dim_date over [start, end].
func New(repo warehouse.Repository, start, end time.Time) *Loader {
	return &Loader{Repo: repo, DateStart: start, DateEnd: end}
}

// LoadAll runs every dimension load in order, stopping at the first error.
func (l *Loader) LoadAll(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) (int64, error)
	}{
		{"dim_date", l.LoadDates},
		{"dim_payment_method", l.LoadPaymentMethods},
		{"dim_shipping_method", l.LoadShippingMethods},
		{"dim_customer", l.LoadCustomers},
		{"dim_product", l.LoadProducts},
	}

	for _, step := range steps {
		started := time.Now()
		n, err := step.fn(ctx)
		if err != nil {
			return fmt.Errorf("dims: %s: %w", step.name, err)
		}
		log.Printf("stage=dimensions table=%s rows=%d duration=%s",
			step.name, n, time.Since(started).Round(time.Millisecond))
	}
	return nil
}

// LoadDates fills dim_date for the configured range. If the table already
// has rows the load is skipped entirely; gap filling for out-of-range order
// dates happens during the fact load.
func (l *Loader) LoadDates(ctx context.Context) (int64, error) {
	existing, err := l.Repo.CountRows(ctx, "warehouse.dim_date")
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	rows := calendar.Range(l.DateStart, l.DateEnd)
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty date range %s..%s",
			l.DateStart.Format("2006-01-02"), l.DateEnd.Format("2006-01-02"))
	}
	return l.Repo.InsertDateRows(ctx, rows)
}

// LoadPaymentMethods seeds the static payment methods once.
func (l *Loader) LoadPaymentMethods(ctx context.Context) (int64, error) {
	existing, err := l.Repo.CountRows(ctx, "warehouse.dim_payment_method")
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}
	return l.Repo.SeedPaymentMethods(ctx, warehouse.DefaultPaymentMethods())
}

// LoadShippingMethods seeds the static shipping methods once.
func (l *Loader) LoadShippingMethods(ctx context.Context) (int64, error) {
	existing, err := l.Repo.CountRows(ctx, "warehouse.dim_shipping_method")
	if err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}
	return l.Repo.SeedShippingMethods(ctx, warehouse.DefaultShippingMethods())
}

// LoadCustomers appends current rows for staged customers whose business
// key is new to the dimension.
func (l *Loader) LoadCustomers(ctx context.Context) (int64, error) {
	return l.Repo.InsertNewCustomers(ctx)
}

// LoadProducts appends current rows for staged products whose business key
// is new to the dimension.
func (l *Loader) LoadProducts(ctx context.Context) (int64, error) {
	return l.Repo.InsertNewProducts(ctx)
}
