// Package postgres implements warehouse.Repository for PostgreSQL using
// pgx. Idempotent inserts use ON CONFLICT DO NOTHING; multirow inserts are
// chunked to keep parameter counts well below the protocol limit.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

func init() {
	warehouse.Register("postgres", New)
}

// Repo is the pgx-backed repository.
type Repo struct {
	pool *pgxpool.Pool
}

// New opens a connection pool for the given DSN.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() { r.pool.Close() }

var ddl = []string{
	`CREATE SCHEMA IF NOT EXISTS staging`,
	`CREATE SCHEMA IF NOT EXISTS warehouse`,

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
		registration_date TIMESTAMP,
		customer_segment TEXT,
		is_active BOOLEAN
	)`,
	`CREATE TABLE IF NOT EXISTS staging.products (
		product_id INTEGER,
		product_name TEXT,
		category TEXT,
		sub_category TEXT,
		brand TEXT,
		price NUMERIC(10,2),
		cost NUMERIC(10,2),
		stock_quantity INTEGER,
		supplier_id INTEGER,
		created_date TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS staging.orders (
		order_id INTEGER,
		customer_id INTEGER,
		order_date TIMESTAMP,
		order_status TEXT,
		payment_method TEXT,
		shipping_method TEXT,
		shipping_cost NUMERIC(10,2),
		tax_amount NUMERIC(10,2),
		discount_amount NUMERIC(10,2),
		total_amount NUMERIC(10,2),
		created_at TIMESTAMP,
		updated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS staging.order_items (
		order_item_id TEXT,
		order_id INTEGER,
		product_id INTEGER,
		quantity INTEGER,
		unit_price NUMERIC(10,2),
		line_total NUMERIC(10,2),
		discount_amount NUMERIC(10,2)
	)`,

	`CREATE TABLE IF NOT EXISTS warehouse.dim_date (
		date_key INTEGER PRIMARY KEY,
		date DATE NOT NULL,
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
		customer_key SERIAL PRIMARY KEY,
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
		registration_date TIMESTAMP,
		effective_date TIMESTAMP,
		end_date TIMESTAMP,
		is_current BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_product (
		product_key SERIAL PRIMARY KEY,
		product_id INTEGER NOT NULL,
		product_name TEXT,
		category TEXT,
		sub_category TEXT,
		brand TEXT,
		price NUMERIC(10,2),
		cost NUMERIC(10,2),
		effective_date TIMESTAMP,
		end_date TIMESTAMP,
		is_current BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_payment_method (
		payment_method_key SERIAL PRIMARY KEY,
		payment_method TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		processing_fee_pct NUMERIC(5,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.dim_shipping_method (
		shipping_method_key SERIAL PRIMARY KEY,
		shipping_method TEXT NOT NULL,
		estimated_days INTEGER NOT NULL,
		base_cost NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.fact_orders (
		order_key SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL UNIQUE,
		order_date_key INTEGER NOT NULL REFERENCES warehouse.dim_date (date_key),
		customer_key INTEGER,
		payment_method_key INTEGER,
		shipping_method_key INTEGER,
		order_quantity INTEGER NOT NULL,
		subtotal_amount NUMERIC(12,2) NOT NULL,
		shipping_cost NUMERIC(10,2),
		tax_amount NUMERIC(10,2),
		discount_amount NUMERIC(10,2),
		total_amount NUMERIC(12,2),
		order_status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS warehouse.fact_order_items (
		order_item_key SERIAL PRIMARY KEY,
		order_key INTEGER NOT NULL REFERENCES warehouse.fact_orders (order_key),
		product_key INTEGER NOT NULL,
		order_date_key INTEGER,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC(10,2),
		unit_cost NUMERIC(10,2),
		line_total NUMERIC(12,2),
		discount_amount NUMERIC(10,2),
		profit NUMERIC(12,2),
		UNIQUE (order_key, product_key)
	)`,
}

// EnsureSchemas creates both schemas and every table. Idempotent.
func (r *Repo) EnsureSchemas(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schemas: %w", err)
		}
	}
	return nil
}

// ReplaceStaging truncates the staging table and bulk-inserts rows.
func (r *Repo) ReplaceStaging(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if _, ok := warehouse.StagingColumns[table]; !ok {
		return 0, fmt.Errorf("postgres: unknown staging table %q", table)
	}
	qualified := "staging." + pgIdent(table)

	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+qualified); err != nil {
		return 0, fmt.Errorf("postgres: truncate %s: %w", qualified, err)
	}
	return r.insertRows(ctx, qualified, columns, rows, nil)
}

// insertRows performs chunked multirow inserts, optionally with an
// ON CONFLICT DO NOTHING clause over conflictColumns.
func (r *Repo) insertRows(ctx context.Context, table string, columns []string, rows [][]any, conflictColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	// Rows per statement; bounded so rows*columns stays far below the
	// 65535 bind-parameter limit.
	chunk := 2000 / len(columns)
	if chunk < 1 {
		chunk = 1
	}

	var total int64
	for start := 0; start < len(rows); start += chunk {
		end := start + chunk
		if end > len(rows) {
			end = len(rows)
		}

		sql, args := buildInsertSQL(table, columns, rows[start:end], conflictColumns)
		cmd, err := r.pool.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// buildInsertSQL constructs a single multirow INSERT and its args.
//
// It is pure and deterministic so placeholder numbering and ON CONFLICT
// behavior can be unit tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(conflictColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range conflictColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	return b.String(), args
}

// CountRows counts rows of a known schema-qualified table.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("postgres: unknown table %q", table)
	}
	return r.SelectInt(ctx, "SELECT COUNT(*) FROM "+table)
}

// InsertDateRows bulk-appends date rows.
func (r *Repo) InsertDateRows(ctx context.Context, rows []calendar.DateRow) (int64, error) {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = warehouse.DateValues(row)
	}
	return r.insertRows(ctx, "warehouse.dim_date", warehouse.DateColumns, values, nil)
}

// InsertDateRowIfAbsent appends one date row, ignoring an existing key.
func (r *Repo) InsertDateRowIfAbsent(ctx context.Context, row calendar.DateRow) error {
	_, err := r.insertRows(ctx, "warehouse.dim_date", warehouse.DateColumns,
		[][]any{warehouse.DateValues(row)}, []string{"date_key"})
	return err
}

// SeedPaymentMethods appends the static payment-method rows.
func (r *Repo) SeedPaymentMethods(ctx context.Context, methods []warehouse.PaymentMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.Type, m.ProcessingFee}
	}
	return r.insertRows(ctx, "warehouse.dim_payment_method",
		[]string{"payment_method", "payment_type", "processing_fee_pct"}, rows, nil)
}

// SeedShippingMethods appends the static shipping-method rows.
func (r *Repo) SeedShippingMethods(ctx context.Context, methods []warehouse.ShippingMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.EstimatedDays, m.BaseCost}
	}
	return r.insertRows(ctx, "warehouse.dim_shipping_method",
		[]string{"shipping_method", "estimated_days", "base_cost"}, rows, nil)
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
SELECT DISTINCT CAST(TO_CHAR(order_date, 'YYYYMMDD') AS INTEGER) AS date_key
FROM staging.orders
WHERE order_date IS NOT NULL
  AND CAST(TO_CHAR(order_date, 'YYYYMMDD') AS INTEGER) NOT IN (
	SELECT date_key FROM warehouse.dim_date
)
ORDER BY date_key`

// MissingDateKeys lists order-date keys absent from dim_date, ascending.
func (r *Repo) MissingDateKeys(ctx context.Context) ([]int, error) {
	rows, err := r.pool.Query(ctx, missingDateKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("postgres: missing date keys: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var key int
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("postgres: missing date keys scan: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: missing date keys rows: %w", err)
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
	CAST(TO_CHAR(o.order_date, 'YYYYMMDD') AS INTEGER),
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
  AND CAST(TO_CHAR(o.order_date, 'YYYYMMDD') AS INTEGER) IN (
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
	if err := r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: select int: %w", err)
	}
	return n, nil
}

// CurrentDuplicateKeys counts business keys with more than one current row.
func (r *Repo) CurrentDuplicateKeys(ctx context.Context, table, keyColumn string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("postgres: unknown table %q", table)
	}
	q := fmt.Sprintf(
		`SELECT COUNT(*) FROM (
			SELECT %s FROM %s WHERE is_current = TRUE
			GROUP BY %s HAVING COUNT(*) > 1
		) d`,
		pgIdent(keyColumn), table, pgIdent(keyColumn))
	return r.SelectInt(ctx, q)
}

func (r *Repo) exec(ctx context.Context, sql string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, sql)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// pgIdent quotes an identifier for Postgres.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
