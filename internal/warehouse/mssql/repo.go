// Package mssql implements warehouse.Repository on SQL Server via
// github.com/microsoft/go-mssqldb.
//
// Dialect notes: date keys are derived arithmetically
// (YEAR*10000 + MONTH*100 + DAY) since there is no TO_CHAR; booleans are
// BIT columns compared with = 1; insert-if-absent is expressed with
// NOT EXISTS guards because SQL Server has no ON CONFLICT.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"ecomdw/internal/calendar"
	"ecomdw/internal/warehouse"
)

func init() {
	warehouse.Register("mssql", New)
}

// Repo is the database/sql-backed repository.
type Repo struct {
	db *sql.DB
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close closes the pool.
func (r *Repo) Close() { _ = r.db.Close() }

var ddl = []string{
	`IF SCHEMA_ID('staging') IS NULL EXEC('CREATE SCHEMA staging')`,
	`IF SCHEMA_ID('warehouse') IS NULL EXEC('CREATE SCHEMA warehouse')`,

	`IF OBJECT_ID('staging.customers') IS NULL
	CREATE TABLE staging.customers (
		customer_id INT,
		first_name NVARCHAR(100),
		last_name NVARCHAR(100),
		email NVARCHAR(255),
		phone NVARCHAR(50),
		address NVARCHAR(255),
		city NVARCHAR(100),
		state NVARCHAR(100),
		zip_code NVARCHAR(20),
		country NVARCHAR(100),
		registration_date DATETIME2,
		customer_segment NVARCHAR(50),
		is_active BIT
	)`,
	`IF OBJECT_ID('staging.products') IS NULL
	CREATE TABLE staging.products (
		product_id INT,
		product_name NVARCHAR(255),
		category NVARCHAR(100),
		sub_category NVARCHAR(100),
		brand NVARCHAR(100),
		price DECIMAL(10,2),
		cost DECIMAL(10,2),
		stock_quantity INT,
		supplier_id INT,
		created_date DATETIME2
	)`,
	`IF OBJECT_ID('staging.orders') IS NULL
	CREATE TABLE staging.orders (
		order_id INT,
		customer_id INT,
		order_date DATETIME2,
		order_status NVARCHAR(50),
		payment_method NVARCHAR(50),
		shipping_method NVARCHAR(50),
		shipping_cost DECIMAL(10,2),
		tax_amount DECIMAL(10,2),
		discount_amount DECIMAL(10,2),
		total_amount DECIMAL(10,2),
		created_at DATETIME2,
		updated_at DATETIME2
	)`,
	`IF OBJECT_ID('staging.order_items') IS NULL
	CREATE TABLE staging.order_items (
		order_item_id NVARCHAR(50),
		order_id INT,
		product_id INT,
		quantity INT,
		unit_price DECIMAL(10,2),
		line_total DECIMAL(10,2),
		discount_amount DECIMAL(10,2)
	)`,

	`IF OBJECT_ID('warehouse.dim_date') IS NULL
	CREATE TABLE warehouse.dim_date (
		date_key INT PRIMARY KEY,
		date DATE NOT NULL,
		day_of_week INT NOT NULL,
		day_name NVARCHAR(20) NOT NULL,
		day_of_month INT NOT NULL,
		day_of_year INT NOT NULL,
		week_of_year INT NOT NULL,
		month INT NOT NULL,
		month_name NVARCHAR(20) NOT NULL,
		quarter INT NOT NULL,
		year INT NOT NULL,
		is_weekend BIT NOT NULL,
		is_holiday BIT NOT NULL
	)`,
	`IF OBJECT_ID('warehouse.dim_customer') IS NULL
	CREATE TABLE warehouse.dim_customer (
		customer_key INT IDENTITY(1,1) PRIMARY KEY,
		customer_id INT NOT NULL,
		first_name NVARCHAR(100),
		last_name NVARCHAR(100),
		email NVARCHAR(255),
		phone NVARCHAR(50),
		address NVARCHAR(255),
		city NVARCHAR(100),
		state NVARCHAR(100),
		zip_code NVARCHAR(20),
		country NVARCHAR(100),
		customer_segment NVARCHAR(50),
		is_active BIT,
		registration_date DATETIME2,
		effective_date DATETIME2,
		end_date DATETIME2,
		is_current BIT NOT NULL
	)`,
	`IF OBJECT_ID('warehouse.dim_product') IS NULL
	CREATE TABLE warehouse.dim_product (
		product_key INT IDENTITY(1,1) PRIMARY KEY,
		product_id INT NOT NULL,
		product_name NVARCHAR(255),
		category NVARCHAR(100),
		sub_category NVARCHAR(100),
		brand NVARCHAR(100),
		price DECIMAL(10,2),
		cost DECIMAL(10,2),
		effective_date DATETIME2,
		end_date DATETIME2,
		is_current BIT NOT NULL
	)`,
	`IF OBJECT_ID('warehouse.dim_payment_method') IS NULL
	CREATE TABLE warehouse.dim_payment_method (
		payment_method_key INT IDENTITY(1,1) PRIMARY KEY,
		payment_method NVARCHAR(50) NOT NULL,
		payment_type NVARCHAR(50) NOT NULL,
		processing_fee_pct DECIMAL(5,2) NOT NULL
	)`,
	`IF OBJECT_ID('warehouse.dim_shipping_method') IS NULL
	CREATE TABLE warehouse.dim_shipping_method (
		shipping_method_key INT IDENTITY(1,1) PRIMARY KEY,
		shipping_method NVARCHAR(50) NOT NULL,
		estimated_days INT NOT NULL,
		base_cost DECIMAL(10,2) NOT NULL
	)`,
	`IF OBJECT_ID('warehouse.fact_orders') IS NULL
	CREATE TABLE warehouse.fact_orders (
		order_key INT IDENTITY(1,1) PRIMARY KEY,
		order_id INT NOT NULL UNIQUE,
		order_date_key INT NOT NULL REFERENCES warehouse.dim_date (date_key),
		customer_key INT,
		payment_method_key INT,
		shipping_method_key INT,
		order_quantity INT NOT NULL,
		subtotal_amount DECIMAL(12,2) NOT NULL,
		shipping_cost DECIMAL(10,2),
		tax_amount DECIMAL(10,2),
		discount_amount DECIMAL(10,2),
		total_amount DECIMAL(12,2),
		order_status NVARCHAR(50)
	)`,
	`IF OBJECT_ID('warehouse.fact_order_items') IS NULL
	CREATE TABLE warehouse.fact_order_items (
		order_item_key INT IDENTITY(1,1) PRIMARY KEY,
		order_key INT NOT NULL,
		product_key INT NOT NULL,
		order_date_key INT,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2),
		unit_cost DECIMAL(10,2),
		line_total DECIMAL(12,2),
		discount_amount DECIMAL(10,2),
		profit DECIMAL(12,2),
		CONSTRAINT uq_fact_order_items UNIQUE (order_key, product_key)
	)`,
}

// EnsureSchemas creates both schemas and every table. Idempotent.
func (r *Repo) EnsureSchemas(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mssql: ensure schemas: %w", err)
		}
	}
	return nil
}

// ReplaceStaging truncates the staging table and bulk-inserts rows.
func (r *Repo) ReplaceStaging(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if _, ok := warehouse.StagingColumns[table]; !ok {
		return 0, fmt.Errorf("mssql: unknown staging table %q", table)
	}
	qualified := "staging." + ident(table)

	if _, err := r.db.ExecContext(ctx, "TRUNCATE TABLE "+qualified); err != nil {
		return 0, fmt.Errorf("mssql: truncate %s: %w", qualified, err)
	}
	return r.insertRows(ctx, qualified, columns, rows)
}

// insertRows performs chunked multirow inserts. SQL Server caps a statement
// at 2100 parameters, so the chunk size stays well below that.
func (r *Repo) insertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

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

		stmt, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := r.db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return total, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("mssql: rows affected %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// buildInsertSQL constructs one multirow INSERT with @pN placeholders.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
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
	n := 0
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			fmt.Fprintf(&b, "@p%d", n)
			args = append(args, row[j])
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// CountRows counts rows of a known schema-qualified table.
func (r *Repo) CountRows(ctx context.Context, table string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("mssql: unknown table %q", table)
	}
	return r.SelectInt(ctx, "SELECT COUNT(*) FROM "+table)
}

// InsertDateRows bulk-appends date rows.
func (r *Repo) InsertDateRows(ctx context.Context, rows []calendar.DateRow) (int64, error) {
	values := make([][]any, len(rows))
	for i, row := range rows {
		values[i] = warehouse.DateValues(row)
	}
	return r.insertRows(ctx, "warehouse.dim_date", warehouse.DateColumns, values)
}

const insertDateIfAbsentSQL = `
INSERT INTO warehouse.dim_date
	(date_key, date, day_of_week, day_name, day_of_month, day_of_year,
	 week_of_year, month, month_name, quarter, year, is_weekend, is_holiday)
SELECT @p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9, @p10, @p11, @p12, @p13
WHERE NOT EXISTS (
	SELECT 1 FROM warehouse.dim_date WHERE date_key = @p1
)`

// InsertDateRowIfAbsent appends one date row unless its key exists.
func (r *Repo) InsertDateRowIfAbsent(ctx context.Context, row calendar.DateRow) error {
	if _, err := r.db.ExecContext(ctx, insertDateIfAbsentSQL, warehouse.DateValues(row)...); err != nil {
		return fmt.Errorf("mssql: insert date %d: %w", row.Key, err)
	}
	return nil
}

// SeedPaymentMethods appends the static payment-method rows.
func (r *Repo) SeedPaymentMethods(ctx context.Context, methods []warehouse.PaymentMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.Type, m.ProcessingFee}
	}
	return r.insertRows(ctx, "warehouse.dim_payment_method",
		[]string{"payment_method", "payment_type", "processing_fee_pct"}, rows)
}

// SeedShippingMethods appends the static shipping-method rows.
func (r *Repo) SeedShippingMethods(ctx context.Context, methods []warehouse.ShippingMethod) (int64, error) {
	rows := make([][]any, len(methods))
	for i, m := range methods {
		rows[i] = []any{m.Name, m.EstimatedDays, m.BaseCost}
	}
	return r.insertRows(ctx, "warehouse.dim_shipping_method",
		[]string{"shipping_method", "estimated_days", "base_cost"}, rows)
}

const insertNewCustomersSQL = `
INSERT INTO warehouse.dim_customer
	(customer_id, first_name, last_name, email, phone, address,
	 city, state, zip_code, country, customer_segment, is_active,
	 registration_date, effective_date, end_date, is_current)
SELECT
	customer_id, first_name, last_name, email, phone, address,
	city, state, zip_code, country, customer_segment, is_active,
	registration_date, registration_date, NULL, 1
FROM staging.customers
WHERE customer_id NOT IN (
	SELECT customer_id FROM warehouse.dim_customer WHERE is_current = 1
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
	price, cost, created_date, NULL, 1
FROM staging.products
WHERE product_id NOT IN (
	SELECT product_id FROM warehouse.dim_product WHERE is_current = 1
)`

// InsertNewProducts appends current rows for previously-unseen keys.
func (r *Repo) InsertNewProducts(ctx context.Context) (int64, error) {
	return r.exec(ctx, insertNewProductsSQL)
}

const missingDateKeysSQL = `
SELECT DISTINCT
	YEAR(order_date) * 10000 + MONTH(order_date) * 100 + DAY(order_date) AS date_key
FROM staging.orders
WHERE order_date IS NOT NULL
  AND YEAR(order_date) * 10000 + MONTH(order_date) * 100 + DAY(order_date) NOT IN (
	SELECT date_key FROM warehouse.dim_date
)
ORDER BY date_key`

// MissingDateKeys lists order-date keys absent from dim_date, ascending.
func (r *Repo) MissingDateKeys(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, missingDateKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("mssql: missing date keys: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var key int
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("mssql: missing date keys scan: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mssql: missing date keys rows: %w", err)
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
	YEAR(o.order_date) * 10000 + MONTH(o.order_date) * 100 + DAY(o.order_date),
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
	ON o.customer_id = dc.customer_id AND dc.is_current = 1
LEFT JOIN warehouse.dim_payment_method dpm
	ON o.payment_method = dpm.payment_method
LEFT JOIN warehouse.dim_shipping_method dsm
	ON o.shipping_method = dsm.shipping_method
WHERE o.order_id NOT IN (SELECT order_id FROM warehouse.fact_orders)
  AND YEAR(o.order_date) * 10000 + MONTH(o.order_date) * 100 + DAY(o.order_date) IN (
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
	ON oi.product_id = dp.product_id AND dp.is_current = 1
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
		return 0, fmt.Errorf("mssql: select int: %w", err)
	}
	return n, nil
}

// CurrentDuplicateKeys counts business keys with more than one current row.
func (r *Repo) CurrentDuplicateKeys(ctx context.Context, table, keyColumn string) (int64, error) {
	if !warehouse.KnownTables[table] {
		return 0, fmt.Errorf("mssql: unknown table %q", table)
	}
	q := fmt.Sprintf(
		`SELECT COUNT(*) FROM (
			SELECT %s FROM %s WHERE is_current = 1
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

// ident quotes an identifier with brackets.
func ident(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
