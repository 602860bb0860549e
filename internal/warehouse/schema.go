package warehouse

// Canonical table shapes shared by the staging loader and the backends.
// Keeping the ordered column lists here gives every backend the same insert
// order and gives the CSV loader one place to align headers against.

// StagingColumns maps each staging table to its ordered column list.
var StagingColumns = map[string][]string{
	"customers": {
		"customer_id", "first_name", "last_name", "email", "phone",
		"address", "city", "state", "zip_code", "country",
		"registration_date", "customer_segment", "is_active",
	},
	"products": {
		"product_id", "product_name", "category", "sub_category", "brand",
		"price", "cost", "stock_quantity", "supplier_id", "created_date",
	},
	"orders": {
		"order_id", "customer_id", "order_date", "order_status",
		"payment_method", "shipping_method", "shipping_cost", "tax_amount",
		"discount_amount", "total_amount", "created_at", "updated_at",
	},
	"order_items": {
		"order_item_id", "order_id", "product_id", "quantity",
		"unit_price", "line_total", "discount_amount",
	},
}

// DateColumns is the ordered dim_date column list, aligned with the value
// order produced by backends from a calendar.DateRow.
var DateColumns = []string{
	"date_key", "date", "day_of_week", "day_name", "day_of_month",
	"day_of_year", "week_of_year", "month", "month_name", "quarter",
	"year", "is_weekend", "is_holiday",
}

// KnownTables is the set of schema-qualified tables CountRows may target.
var KnownTables = map[string]bool{
	"staging.customers":             true,
	"staging.products":              true,
	"staging.orders":                true,
	"staging.order_items":           true,
	"warehouse.dim_date":            true,
	"warehouse.dim_customer":        true,
	"warehouse.dim_product":         true,
	"warehouse.dim_payment_method":  true,
	"warehouse.dim_shipping_method": true,
	"warehouse.fact_orders":         true,
	"warehouse.fact_order_items":    true,
}
