// Package sqlite implements warehouse.Repository on modernc.org/sqlite.
//
// Key design points vs Postgres:
//   - SQLite has no schemas; "staging" and "warehouse" are realized with
//     ATTACH DATABASE, so all schema-qualified SQL works unchanged.
//   - There is no TIMESTAMPTZ/TIMESTAMP storage class. Timestamps are
//     stored as text ("2006-01-02 15:04:05") for reliable round-trips and
//     so STRFTIME-based date keys work.
//   - Insert-if-absent uses INSERT OR IGNORE instead of ON CONFLICT.
//
// The pool is pinned to a single connection: attached databases are
// per-connection state, and the :memory: variant would otherwise hand every
// pooled connection its own empty database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

func init() {
	warehouse.Register("sqlite", New)
}

// Repo is the database/sql-backed repository.
type Repo struct {
	db *sql.DB
}

// New opens the database and attaches the staging and warehouse schemas.
//
// For DSN ":memory:" both schemas are attached as in-memory databases; for
// a file path p they are attached as p+".staging" and p+".warehouse".
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	for _, schema := range []string{"staging", "warehouse"} {
		target := ":memory:"
		if cfg.DSN != ":memory:" && cfg.DSN != "" {
			target = cfg.DSN + "." + schema
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteString(target), schema)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: attach %s: %w", schema, err)
		}
	}

	return &Repo{db: db}, nil
}

// Close closes the database.
func (r *Repo) Close() { _ = r.db.Close() }

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS staging.customers (
		customer_id INTEGER,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		phone TEXT,
		address TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		country TEXT,
		registration_date TEXT,
		customer_segment TEXT,
		is_active BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS staging.products (
		product_id INTEGER,
		product_name TEXT,
		category TEXT,
		sub_category TEXT,
		brand TEXT,
		price NUMERIC,
		cost NUMERIC,
		stock_quantity INTEGER,
		supplier_id INTEGER,
		created_date TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS staging.orders (
		order_id INTEGER,
		customer_id INTEGER,
		order_date TEXT,
		order_status TEXT,
		payment_method TEXT,
		shipping_method TEXT,
		shipping_cost NUMERIC,
		tax_amount NUMERIC,
		discount_amount NUMERIC,
		total_amount NUMERIC,
		created_at TEXT,
		updated_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS staging.order_items (
		order_item_id TEXT,
		order_id INTEGER,
		product_id INTEGER,
		quantity INTEGER,
		unit_price NUMERIC,
		line_total NUMERIC,
		discount_amount NUMERIC
	)`,

	`CREATE TABLE IF NOT EXISTS warehouse.dim_date (
		date_key INTEGER PRIMARY KEY,
		date TEXT NOT NULL,
		day_of_week INTEGER NOT NULL,
		day_name TEXT NOT NULL,
		day_of_month INTEGER NOT NULL,
		day_of_year INTEGER NOT NULL,
		week_of_year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		month_name TEXT NOT NULL,
		quarter INTEGER NOT NULL,
		year INTEGER NOT NULL,
		is_weekend BOOLEAN NOT NULL,
		is_holiday BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_customer (
		customer_key INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		phone TEXT,
		address TEXT,
		city TEXT,
		state TEXT,
		zip_code TEXT,
		country TEXT,
		customer_segment TEXT,
		is_active BOOLEAN,
		registration_date TEXT,
		effective_date TEXT,
		end_date TEXT,
		is_current BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_product (
		product_key INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		product_name TEXT,
		category TEXT,
		sub_category TEXT,
		brand TEXT,
		price NUMERIC,
		cost NUMERIC,
		effective_date TEXT,
		end_date TEXT,
		is_current BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_payment_method (
		payment_method_key INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_method TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		processing_fee_pct NUMERIC NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_shipping_method (
		shipping_method_key INTEGER PRIMARY KEY AUTOINCREMENT,
		shipping_method TEXT NOT NULL,
		estimated_days INTEGER NOT NULL,
		base_cost NUMERIC NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.fact_orders (
		order_key INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL UNIQUE,
		order_date_key INTEGER NOT NULL,
		customer_key INTEGER,
		payment_method_key INTEGER,
		shipping_method_key INTEGER,
		order_quantity INTEGER NOT NULL,
		subtotal_amount NUMERIC NOT NULL,
		shipping_cost NUMERIC,
		tax_amount NUMERIC,
		discount_amount NUMERIC,
		total_amount NUMERIC,
		order_status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.fact_order_items (
		order_item_key INTEGER PRIMARY KEY AUTOINCREMENT,
		order_key INTEGER NOT NULL,
		product_key INTEGER NOT NULL,
		order_date_key INTEGER,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC,
		unit_cost NUMERIC,
		line_total NUMERIC,
		discount_amount NUMERIC,
		profit NUMERIC,
		UNIQUE (order_key, product_key)
	)`,
}

// EnsureSchemas creates every table in both attached databases. Idempotent.
func (r *Repo) EnsureSchemas(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: ensure schemas: %w", err)
		}
	}
	return nil
}

// ReplaceStaging deletes the staging table contents and bulk-inserts rows.
func (r *Repo) ReplaceStaging(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if _, ok := warehouse.StagingColumns[table]; !ok {
		return 0, fmt.Errorf("sqlite: unknown staging table %q", table)
	}
	qualified := "staging." + ident(table)

	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+qualified); err != nil {
		return 0, fmt.Errorf("sqlite: clear %s: %w", qualified, err)
	}
	return r.insertRows(ctx, qualified, columns, rows, false)
}

// insertRows performs chunked multirow inserts. When orIgnore is set the
// statement becomes INSERT OR IGNORE for idempotent appends.
func (r *Repo) insertRows(ctx context.Context, table string, columns []string, rows [][]any, orIgnore bool) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	chunk := 800 / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		stmt, args := buildInsertSQL(table, columns, rows[start:end], orIgnore)
		res, err := r.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("sqlite: rows affected %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// buildInsertSQL constructs one multirow INSERT with ? placeholders.
// Values are converted to sqlite-friendly types (time.Time becomes text).
func buildInsertSQL(table string, columns []string, rows [][]any, orIgnore bool) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT ")
	if orIgnore {
		b.WriteString("OR IGNORE ")
	}
	b.WriteString("INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("?")
			args = append(args, toSQLite(row[j]))
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// toSQLite converts bind values to types the driver stores losslessly.
func toSQLite(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return v
	}
}

// CountRows counts rows of a known schema-qualified table.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("sqlite: unknown table %q", table)
	}
	return r.SelectInt(ctx, "SELECT COUNT(*) FROM "+table)
}

// InsertDateRows bulk-appends date rows.
func (r *Repo) InsertDateRows(ctx context.Context, rows []calendar.DateRow) (int64, error) {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = dateValues(row)
	}
	return r.insertRows(ctx, "warehouse.dim_date", warehouse.DateColumns, values, false)
}

// InsertDateRowIfAbsent appends one date row, ignoring an existing key.
func (r *Repo) InsertDateRowIfAbsent(ctx context.Context, row calendar.DateRow) error {
	_, err := r.insertRows(ctx, "warehouse.dim_date", warehouse.DateColumns,
		[][]any{dateValues(row)}, true)
	return err
}

// dateValues stores the calendar date as a date-only string so STRFTIME and
// equality comparisons behave.
func dateValues(row calendar.DateRow) []any {
	vals := warehouse.DateValues(row)
	vals[1] = row.Date.Format("2006-01-02")
	return vals
}

// SeedPaymentMethods appends the static payment-method rows.
func (r *Repo) SeedPaymentMethods(ctx context.Context, methods []warehouse.PaymentMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.Type, m.ProcessingFee}
	}
	return r.insertRows(ctx, "warehouse.dim_payment_method",
		[]string{"payment_method", "payment_type", "processing_fee_pct"}, rows, false)
}

// SeedShippingMethods appends the static shipping-method rows.
func (r *Repo) SeedShippingMethods(ctx context.Context, methods []warehouse.ShippingMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.EstimatedDays, m.BaseCost}
	}
	return r.insertRows(ctx, "warehouse.dim_shipping_method",
		[]string{"shipping_method", "estimated_days", "base_cost"}, rows, false)
}

const insertNewCustomersSQL = `
INSERT INTO warehouse.dim_customer
	(customer_id, first_name, last_name, email, phone, address,
	 city, state, zip_code, country, customer_segment, is_active,
	 registration_date, effective_date, end_date, is_current)
SELECT
	customer_id, first_name, last_name, email, phone, address,
	city, state, zip_code, country, customer_segment, is_active,
	registration_date, registration_date, NULL, TRUE
FROM staging.customers
WHERE customer_id NOT IN (
	SELECT customer_id FROM warehouse.dim_customer WHERE is_current = TRUE
)`

// InsertNewCustomers appends current rows for previously-unseen keys.
func (r *Repo) InsertNewCustomers(ctx context.Context) (int64, error) {
	return r.exec(ctx, insertNewCustomersSQL)
}

const insertNewProductsSQL = `
INSERT INTO warehouse.dim_product
	(product_id, product_name, category, sub_category, brand,
	 price, cost, effective_date, end_date, is_current)
SELECT
	product_id, product_name, category, sub_category, brand,
	price, cost, created_date, NULL, TRUE
FROM staging.products
WHERE product_id NOT IN (
	SELECT product_id FROM warehouse.dim_product WHERE is_current = TRUE
)`

// InsertNewProducts appends current rows for previously-unseen keys.
func (r *Repo) InsertNewProducts(ctx context.Context) (int64, error) {
	return r.exec(ctx, insertNewProductsSQL)
}

const missingDateKeysSQL = `
SELECT DISTINCT CAST(STRFTIME('%Y%m%d', order_date) AS INTEGER) AS date_key
FROM staging.orders
WHERE order_date IS NOT NULL
  AND CAST(STRFTIME('%Y%m%d', order_date) AS INTEGER) NOT IN (
	SELECT date_key FROM warehouse.dim_date
)
ORDER BY date_key`

// MissingDateKeys lists order-date keys absent from dim_date, ascending.
func (r *Repo) MissingDateKeys(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, missingDateKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("sqlite: missing date keys: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var key int
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlite: missing date keys scan: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: missing date keys rows: %w", err)
	}
	return out, nil
}

const insertNewFactOrdersSQL = `
INSERT INTO warehouse.fact_orders
	(order_id, order_date_key, customer_key, payment_method_key,
	 shipping_method_key, order_quantity, subtotal_amount,
	 shipping_cost, tax_amount, discount_amount, total_amount, order_status)
SELECT
	o.order_id,
	CAST(STRFTIME('%Y%m%d', o.order_date) AS INTEGER),
	dc.customer_key,
	dpm.payment_method_key,
	dsm.shipping_method_key,
	COUNT(oi.order_item_id),
	COALESCE(SUM(oi.line_total), 0),
	o.shipping_cost,
	o.tax_amount,
	o.discount_amount,
	o.total_amount,
	o.order_status
FROM staging.orders o
LEFT JOIN staging.order_items oi ON o.order_id = oi.order_id
LEFT JOIN warehouse.dim_customer dc
	ON o.customer_id = dc.customer_id AND dc.is_current = TRUE
LEFT JOIN warehouse.dim_payment_method dpm
	ON o.payment_method = dpm.payment_method
LEFT JOIN warehouse.dim_shipping_method dsm
	ON o.shipping_method = dsm.shipping_method
WHERE o.order_id NOT IN (SELECT order_id FROM warehouse.fact_orders)
  AND CAST(STRFTIME('%Y%m%d', o.order_date) AS INTEGER) IN (
	SELECT date_key FROM warehouse.dim_date
)
GROUP BY o.order_id, o.order_date, dc.customer_key,
	dpm.payment_method_key, dsm.shipping_method_key,
	o.shipping_cost, o.tax_amount, o.discount_amount,
	o.total_amount, o.order_status`

// InsertNewFactOrders materializes one fact row per not-yet-loaded order.
func (r *Repo) InsertNewFactOrders(ctx context.Context) (int64, error) {
	return r.exec(ctx, insertNewFactOrdersSQL)
}

const insertNewFactOrderItemsSQL = `
INSERT INTO warehouse.fact_order_items
	(order_key, product_key, order_date_key, quantity, unit_price,
	 unit_cost, line_total, discount_amount, profit)
SELECT
	fo.order_key,
	dp.product_key,
	fo.order_date_key,
	oi.quantity,
	oi.unit_price,
	COALESCE(dp.cost, 0),
	oi.line_total,
	oi.discount_amount,
	oi.line_total - COALESCE(dp.cost, 0) * oi.quantity
FROM staging.order_items oi
JOIN warehouse.fact_orders fo ON oi.order_id = fo.order_id
JOIN warehouse.dim_product dp
	ON oi.product_id = dp.product_id AND dp.is_current = TRUE
WHERE NOT EXISTS (
	SELECT 1 FROM warehouse.fact_order_items foi
	WHERE foi.order_key = fo.order_key AND foi.product_key = dp.product_key
)`

// InsertNewFactOrderItems materializes order-line facts; items whose
// product has no current dimension row are skipped by the inner join.
func (r *Repo) InsertNewFactOrderItems(ctx context.Context) (int64, error) {
	return r.exec(ctx, insertNewFactOrderItemsSQL)
}

// SelectInt runs a parameter-free scalar query.
func (r *Repo) SelectInt(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: select int: %w", err)
	}
	return n, nil
}

// CurrentDuplicateKeys counts business keys with more than one current row.
func (r *Repo) CurrentDuplicateKeys(ctx context.Context, table, keyColumn string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("sqlite: unknown table %q", table)
	}
	q := fmt.Sprintf(
		`SELECT COUNT(*) FROM (
			SELECT %s FROM %s WHERE is_current = TRUE
			GROUP BY %s HAVING COUNT(*) > 1
		) d`,
		ident(keyColumn), table, ident(keyColumn))
	return r.SelectInt(ctx, q)
}

func (r *Repo) exec(ctx context.Context, stmt string) (int64, error) {
	res, err := r.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ident quotes an identifier.
func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString quotes a string literal (used for ATTACH targets).
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
