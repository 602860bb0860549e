package sqlite

import (
	"context"
	"testing"
	"time"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

func newTestRepo(t *testing.T) warehouse.Repository {
	t.Helper()

	ctx := context.Background()
	repo, err := New(ctx, warehouse.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)

	if err := repo.EnsureSchemas(ctx); err != nil {
		t.Fatalf("EnsureSchemas: %v", err)
	}
	return repo
}

func mustCount(t *testing.T, repo warehouse.Repository, table string) int64 {
	t.Helper()
	n, err := repo.CountRows(context.Background(), table)
	if err != nil {
		t.Fatalf("CountRows(%s): %v", table, err)
	}
	return n
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// stageFixture loads a small but complete staging set:
//
//	2 customers, 2 products, 3 orders (one with no items, one whose
//	customer is unknown to the dimension), 3 order items (one referencing
//	a product with no dimension row).
func stageFixture(t *testing.T, repo warehouse.Repository) {
	t.Helper()
	ctx := context.Background()

	reg := day("2024-01-02")
	customers := [][]any{
		{101, "Ada", "Byrne", "ada@example.com", "555-0101", "1 Elm St",
			"Portland", "OR", "97201", "USA", reg, "Premium", true},
		{102, "Ben", "Cole", "ben@example.com", "555-0102", "2 Oak St",
			"Denver", "CO", "80201", "USA", reg, "Standard", true},
	}
	if _, err := repo.ReplaceStaging(ctx, "customers", warehouse.StagingColumns["customers"], customers); err != nil {
		t.Fatalf("stage customers: %v", err)
	}

	created := day("2023-12-01")
	products := [][]any{
		{201, "Widget", "Tools", "Hand Tools", "Acme", 19.99, 8.00, 40, 1, created},
		{202, "Gadget", "Tools", "Power Tools", "Acme", 49.99, 22.50, 15, 1, created},
	}
	if _, err := repo.ReplaceStaging(ctx, "products", warehouse.StagingColumns["products"], products); err != nil {
		t.Fatalf("stage products: %v", err)
	}

	ts := time.Date(2024, 1, 10, 14, 30, 0, 0, time.UTC)
	orders := [][]any{
		// order 1002 has no items; order 1003 belongs to an unknown customer.
		{1001, 101, ts, "Completed", "Credit Card", "Standard", 5.99, 6.40, 0.0, 92.37, ts, ts},
		{1002, 102, ts, "Pending", "PayPal", "Express", 12.99, 0.0, 0.0, 12.99, ts, ts},
		{1003, 999, ts, "Returned", "Debit Card", "Next Day", 24.99, 1.60, 0.0, 46.58, ts, ts},
	}
	if _, err := repo.ReplaceStaging(ctx, "orders", warehouse.StagingColumns["orders"], orders); err != nil {
		t.Fatalf("stage orders: %v", err)
	}

	items := [][]any{
		{"1001_1", 1001, 201, 2, 19.99, 39.98, 0.0},
		{"1001_2", 1001, 202, 1, 49.99, 49.99, 0.0},
		// product 299 has no dimension row; the item fact must skip it.
		{"1003_1", 1003, 299, 1, 19.99, 19.99, 0.0},
	}
	if _, err := repo.ReplaceStaging(ctx, "order_items", warehouse.StagingColumns["order_items"], items); err != nil {
		t.Fatalf("stage order_items: %v", err)
	}
}

func loadDimensions(t *testing.T, repo warehouse.Repository) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.InsertDateRows(ctx, calendar.Range(day("2024-01-01"), day("2024-01-31"))); err != nil {
		t.Fatalf("InsertDateRows: %v", err)
	}
	if _, err := repo.SeedPaymentMethods(ctx, warehouse.DefaultPaymentMethods()); err != nil {
		t.Fatalf("SeedPaymentMethods: %v", err)
	}
	if _, err := repo.SeedShippingMethods(ctx, warehouse.DefaultShippingMethods()); err != nil {
		t.Fatalf("SeedShippingMethods: %v", err)
	}
	if _, err := repo.InsertNewCustomers(ctx); err != nil {
		t.Fatalf("InsertNewCustomers: %v", err)
	}
	if _, err := repo.InsertNewProducts(ctx); err != nil {
		t.Fatalf("InsertNewProducts: %v", err)
	}
}

func TestFullLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	stageFixture(t, repo)
	loadDimensions(t, repo)

	if got := mustCount(t, repo, "warehouse.dim_date"); got != 31 {
		t.Fatalf("dim_date rows = %d, want 31", got)
	}
	if got := mustCount(t, repo, "warehouse.dim_customer"); got != 2 {
		t.Fatalf("dim_customer rows = %d, want 2", got)
	}

	orders, err := repo.InsertNewFactOrders(ctx)
	if err != nil {
		t.Fatalf("InsertNewFactOrders: %v", err)
	}
	if orders != 3 {
		t.Fatalf("fact orders inserted = %d, want 3", orders)
	}

	items, err := repo.InsertNewFactOrderItems(ctx)
	if err != nil {
		t.Fatalf("InsertNewFactOrderItems: %v", err)
	}
	// The item for the unknown product must be skipped.
	if items != 2 {
		t.Fatalf("fact order items inserted = %d, want 2", items)
	}

	// Itemless order: quantity and subtotal come out as zero, not NULL.
	qty, err := repo.SelectInt(ctx,
		"SELECT order_quantity FROM warehouse.fact_orders WHERE order_id = 1002")
	if err != nil {
		t.Fatalf("select order_quantity: %v", err)
	}
	if qty != 0 {
		t.Fatalf("itemless order quantity = %d, want 0", qty)
	}
	sub, err := repo.SelectInt(ctx,
		"SELECT subtotal_amount FROM warehouse.fact_orders WHERE order_id = 1002")
	if err != nil {
		t.Fatalf("select subtotal_amount: %v", err)
	}
	if sub != 0 {
		t.Fatalf("itemless order subtotal = %d, want 0", sub)
	}

	// Unknown customer: the fact row still lands, with a NULL surrogate.
	nullCust, err := repo.SelectInt(ctx,
		"SELECT COUNT(*) FROM warehouse.fact_orders WHERE order_id = 1003 AND customer_key IS NULL")
	if err != nil {
		t.Fatalf("select null customer_key: %v", err)
	}
	if nullCust != 1 {
		t.Fatalf("orders with null customer_key = %d, want 1", nullCust)
	}

	// Profit is snapshotted against current product cost:
	// 39.98 - 8.00*2 = 23.98 for the widget line.
	profitCents, err := repo.SelectInt(ctx,
		`SELECT CAST(ROUND(profit * 100) AS INTEGER) FROM warehouse.fact_order_items
		 WHERE quantity = 2`)
	if err != nil {
		t.Fatalf("select profit: %v", err)
	}
	if profitCents != 2398 {
		t.Fatalf("profit cents = %d, want 2398", profitCents)
	}

	// Date key derivation: every loaded order fell on 2024-01-10.
	badKeys, err := repo.SelectInt(ctx,
		"SELECT COUNT(*) FROM warehouse.fact_orders WHERE order_date_key <> 20240110")
	if err != nil {
		t.Fatalf("select date keys: %v", err)
	}
	if badKeys != 0 {
		t.Fatalf("orders with unexpected date key = %d, want 0", badKeys)
	}
}

func TestRerunInsertsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	stageFixture(t, repo)
	loadDimensions(t, repo)

	if _, err := repo.InsertNewFactOrders(ctx); err != nil {
		t.Fatalf("first InsertNewFactOrders: %v", err)
	}
	if _, err := repo.InsertNewFactOrderItems(ctx); err != nil {
		t.Fatalf("first InsertNewFactOrderItems: %v", err)
	}

	// A full second pass over unchanged staging must be a no-op.
	if n, err := repo.InsertNewCustomers(ctx); err != nil || n != 0 {
		t.Fatalf("rerun InsertNewCustomers = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := repo.InsertNewProducts(ctx); err != nil || n != 0 {
		t.Fatalf("rerun InsertNewProducts = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := repo.InsertNewFactOrders(ctx); err != nil || n != 0 {
		t.Fatalf("rerun InsertNewFactOrders = (%d, %v), want (0, nil)", n, err)
	}
	if n, err := repo.InsertNewFactOrderItems(ctx); err != nil || n != 0 {
		t.Fatalf("rerun InsertNewFactOrderItems = (%d, %v), want (0, nil)", n, err)
	}

	if dup, err := repo.CurrentDuplicateKeys(ctx, "warehouse.dim_customer", "customer_id"); err != nil || dup != 0 {
		t.Fatalf("duplicate current customers = (%d, %v), want (0, nil)", dup, err)
	}
}

func TestNewCustomerOnSecondRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	stageFixture(t, repo)
	loadDimensions(t, repo)

	// Restage with one extra customer and a changed attribute on a known
	// key. Only the new key may produce a row.
	reg := day("2024-01-02")
	customers := [][]any{
		{101, "Ada", "Byrne", "ada@new.example.com", "555-0101", "1 Elm St",
			"Portland", "OR", "97201", "USA", reg, "Premium", true},
		{103, "Cy", "Dunn", "cy@example.com", "555-0103", "3 Fir St",
			"Austin", "TX", "78701", "USA", day("2024-01-15"), "Standard", true},
	}
	if _, err := repo.ReplaceStaging(ctx, "customers", warehouse.StagingColumns["customers"], customers); err != nil {
		t.Fatalf("restage customers: %v", err)
	}

	n, err := repo.InsertNewCustomers(ctx)
	if err != nil {
		t.Fatalf("InsertNewCustomers: %v", err)
	}
	if n != 1 {
		t.Fatalf("new customers inserted = %d, want 1", n)
	}

	// The known key keeps exactly one current row with its original email.
	kept, err := repo.SelectInt(ctx,
		`SELECT COUNT(*) FROM warehouse.dim_customer
		 WHERE customer_id = 101 AND is_current = TRUE AND email = 'ada@example.com'`)
	if err != nil {
		t.Fatalf("select kept customer: %v", err)
	}
	if kept != 1 {
		t.Fatalf("current rows keeping original email = %d, want 1", kept)
	}
}

func TestMissingDateKeysAndReconcile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	stageFixture(t, repo)

	// dim_date deliberately excludes the order date.
	if _, err := repo.InsertDateRows(ctx, calendar.Range(day("2024-02-01"), day("2024-02-05"))); err != nil {
		t.Fatalf("InsertDateRows: %v", err)
	}

	missing, err := repo.MissingDateKeys(ctx)
	if err != nil {
		t.Fatalf("MissingDateKeys: %v", err)
	}
	if len(missing) != 1 || missing[0] != 20240110 {
		t.Fatalf("missing keys = %v, want [20240110]", missing)
	}

	row := calendar.Day(day("2024-01-10"))
	if err := repo.InsertDateRowIfAbsent(ctx, row); err != nil {
		t.Fatalf("InsertDateRowIfAbsent: %v", err)
	}
	// Repeat is ignored, not an error.
	if err := repo.InsertDateRowIfAbsent(ctx, row); err != nil {
		t.Fatalf("repeat InsertDateRowIfAbsent: %v", err)
	}

	missing, err = repo.MissingDateKeys(ctx)
	if err != nil {
		t.Fatalf("MissingDateKeys after reconcile: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("missing keys after reconcile = %v, want none", missing)
	}

	// The gap-filled row carries fully derived fields: 2024-01-10 was a
	// Wednesday in ISO week 2.
	derived, err := repo.SelectInt(ctx,
		`SELECT COUNT(*) FROM warehouse.dim_date
		 WHERE date_key = 20240110 AND day_of_week = 2 AND day_name = 'Wednesday'
		   AND week_of_year = 2 AND quarter = 1 AND is_weekend = FALSE`)
	if err != nil {
		t.Fatalf("select derived row: %v", err)
	}
	if derived != 1 {
		t.Fatalf("derived date rows = %d, want 1", derived)
	}
}

func TestReplaceStagingReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepo(t)
	stageFixture(t, repo)

	if got := mustCount(t, repo, "staging.orders"); got != 3 {
		t.Fatalf("staged orders = %d, want 3", got)
	}

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	orders := [][]any{
		{2001, 101, ts, "Pending", "PayPal", "Standard", 5.99, 0.0, 0.0, 5.99, ts, ts},
	}
	n, err := repo.ReplaceStaging(ctx, "orders", warehouse.StagingColumns["orders"], orders)
	if err != nil {
		t.Fatalf("ReplaceStaging: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows inserted = %d, want 1", n)
	}
	if got := mustCount(t, repo, "staging.orders"); got != 1 {
		t.Fatalf("staged orders after replace = %d, want 1", got)
	}

	if _, err := repo.ReplaceStaging(ctx, "nope", []string{"x"}, nil); err == nil {
		t.Fatal("expected error for unknown staging table")
	}
}
