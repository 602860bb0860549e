// Package warehousetest provides a configurable in-memory fake of
// warehouse.Repository for loader and checker tests.
package warehousetest

import (
	"context"
	"fmt"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

// Fake implements warehouse.Repository with per-method function hooks.
// Unset hooks return zero values, so tests only wire what they assert on.
type Fake struct {
	EnsureSchemasFn           func(ctx context.Context) error
	ReplaceStagingFn          func(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
	CountRowsFn               func(ctx context.Context, table string) (int64, error)
	InsertDateRowsFn          func(ctx context.Context, rows []calendar.DateRow) (int64, error)
	InsertDateRowIfAbsentFn   func(ctx context.Context, row calendar.DateRow) error
	SeedPaymentMethodsFn      func(ctx context.Context, methods []warehouse.PaymentMethod) (int64, error)
	SeedShippingMethodsFn     func(ctx context.Context, methods []warehouse.ShippingMethod) (int64, error)
	InsertNewCustomersFn      func(ctx context.Context) (int64, error)
	InsertNewProductsFn       func(ctx context.Context) (int64, error)
	MissingDateKeysFn         func(ctx context.Context) ([]int, error)
	InsertNewFactOrdersFn     func(ctx context.Context) (int64, error)
	InsertNewFactOrderItemsFn func(ctx context.Context) (int64, error)
	SelectIntFn               func(ctx context.Context, query string) (int64, error)
	CurrentDuplicateKeysFn    func(ctx context.Context, table, keyColumn string) (int64, error)

	// Calls records method names in invocation order.
	Calls []string
}

var _ warehouse.Repository = (*Fake)(nil)

func (f *Fake) record(name string) { f.Calls = append(f.Calls, name) }

func (f *Fake) Close() {}

func (f *Fake) EnsureSchemas(ctx context.Context) error {
	f.record("EnsureSchemas")
	if f.EnsureSchemasFn != nil {
		return f.EnsureSchemasFn(ctx)
	}
	return nil
}

func (f *Fake) ReplaceStaging(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	f.record("ReplaceStaging:" + table)
	if f.ReplaceStagingFn != nil {
		return f.ReplaceStagingFn(ctx, table, columns, rows)
	}
	return int64(len(rows)), nil
}

func (f *Fake) CountRows(ctx context.Context, table string) (int64, error) {
	f.record("CountRows:" + table)
	if f.CountRowsFn != nil {
		return f.CountRowsFn(ctx, table)
	}
	return 0, nil
}

func (f *Fake) InsertDateRows(ctx context.Context, rows []calendar.DateRow) (int64, error) {
	f.record("InsertDateRows")
	if f.InsertDateRowsFn != nil {
		return f.InsertDateRowsFn(ctx, rows)
	}
	return int64(len(rows)), nil
}

func (f *Fake) InsertDateRowIfAbsent(ctx context.Context, row calendar.DateRow) error {
	f.record(fmt.Sprintf("InsertDateRowIfAbsent:%d", row.Key))
	if f.InsertDateRowIfAbsentFn != nil {
		return f.InsertDateRowIfAbsentFn(ctx, row)
	}
	return nil
}

func (f *Fake) SeedPaymentMethods(ctx context.Context, methods []warehouse.PaymentMethod) (int64, error) {
	f.record("SeedPaymentMethods")
	if f.SeedPaymentMethodsFn != nil {
		return f.SeedPaymentMethodsFn(ctx, methods)
	}
	return int64(len(methods)), nil
}

func (f *Fake) SeedShippingMethods(ctx context.Context, methods []warehouse.ShippingMethod) (int64, error) {
	f.record("SeedShippingMethods")
	if f.SeedShippingMethodsFn != nil {
		return f.SeedShippingMethodsFn(ctx, methods)
	}
	return int64(len(methods)), nil
}

func (f *Fake) InsertNewCustomers(ctx context.Context) (int64, error) {
	f.record("InsertNewCustomers")
	if f.InsertNewCustomersFn != nil {
		return f.InsertNewCustomersFn(ctx)
	}
	return 0, nil
}

func (f *Fake) InsertNewProducts(ctx context.Context) (int64, error) {
	f.record("InsertNewProducts")
	if f.InsertNewProductsFn != nil {
		return f.InsertNewProductsFn(ctx)
	}
	return 0, nil
}

func (f *Fake) MissingDateKeys(ctx context.Context) ([]int, error) {
	f.record("MissingDateKeys")
	if f.MissingDateKeysFn != nil {
		return f.MissingDateKeysFn(ctx)
	}
	return nil, nil
}

func (f *Fake) InsertNewFactOrders(ctx context.Context) (int64, error) {
	f.record("InsertNewFactOrders")
	if f.InsertNewFactOrdersFn != nil {
		return f.InsertNewFactOrdersFn(ctx)
	}
	return 0, nil
}

func (f *Fake) InsertNewFactOrderItems(ctx context.Context) (int64, error) {
	f.record("InsertNewFactOrderItems")
	if f.InsertNewFactOrderItemsFn != nil {
		return f.InsertNewFactOrderItemsFn(ctx)
	}
	return 0, nil
}

func (f *Fake) SelectInt(ctx context.Context, query string) (int64, error) {
	f.record("SelectInt")
	if f.SelectIntFn != nil {
		return f.SelectIntFn(ctx, query)
	}
	return 0, nil
}

func (f *Fake) CurrentDuplicateKeys(ctx context.Context, table, keyColumn string) (int64, error) {
	f.record("CurrentDuplicateKeys:" + table)
	if f.CurrentDuplicateKeysFn != nil {
		return f.CurrentDuplicateKeysFn(ctx, table, keyColumn)
	}
	return 0, nil
}
