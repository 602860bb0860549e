// Package facts populates the fact tables from staged orders.
//
// The order of operations matters: date reconciliation first, so every
// staged order date has a dim_date row, then fact_orders, then
// fact_order_items (which resolves surrogate keys through fact_orders).
package facts

import (
	"context"
	"fmt"
	"log"
	"time"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

// Loader populates facts through a warehouse.Repository.
type Loader struct {
	Repo warehouse.Repository
}

// New returns a Loader over repo.
func New(repo warehouse.Repository) *Loader {
	return &Loader{Repo: repo}
}

// LoadAll reconciles dates then loads both fact tables, stopping at the
// first error.
func (l *Loader) LoadAll(ctx context.Context) error {
	if err := l.ReconcileDates(ctx); err != nil {
		return fmt.Errorf("facts: reconcile dates: %w", err)
	}

	steps := []struct {
		name string
		fn   func(context.Context) (int64, error)
	}{
		{"fact_orders", l.LoadOrders},
		{"fact_order_items", l.LoadOrderItems},
	}
	for _, step := range steps {
		started := time.Now()
		n, err := step.fn(ctx)
		if err != nil {
			return fmt.Errorf("facts: %s: %w", step.name, err)
		}
		log.Printf("stage=facts table=%s rows=%d duration=%s",
			step.name, n, time.Since(started).Round(time.Millisecond))
	}
	return nil
}

// ReconcileDates inserts a dim_date row for every staged order date missing
// from the dimension. Rows are inserted one by one in key order so a
// partial failure leaves a usable prefix.
func (l *Loader) ReconcileDates(ctx context.Context) error {
	keys, err := l.Repo.MissingDateKeys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		d, err := calendar.ParseKey(key)
		if err != nil {
			return fmt.Errorf("staged order date key %d: %w", key, err)
		}
		if err := l.Repo.InsertDateRowIfAbsent(ctx, calendar.Day(d)); err != nil {
			return fmt.Errorf("insert date %d: %w", key, err)
		}
	}
	if len(keys) > 0 {
		log.Printf("stage=facts table=dim_date gap_filled=%d", len(keys))
	}
	return nil
}

// LoadOrders inserts fact rows for staged orders not yet loaded. Orders
// whose date key is still missing from dim_date are left for a later run;
// run ReconcileDates first to avoid that.
func (l *Loader) LoadOrders(ctx context.Context) (int64, error) {
	return l.Repo.InsertNewFactOrders(ctx)
}

// LoadOrderItems inserts line-item facts for orders already present in
// fact_orders. Call after LoadOrders or the items will have no parent rows
// to join against.
func (l *Loader) LoadOrderItems(ctx context.Context) (int64, error) {
	return l.Repo.InsertNewFactOrderItems(ctx)
}
