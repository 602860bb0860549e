// Package quality runs read-only validation queries over the staging and
// warehouse tables and reports pass/fail per check.
//
// Violations are reported, never raised: a failed rule flips the check's
// result but the run continues. Only query errors abort, since they mean
// the warehouse itself is unreachable or incomplete.
package quality

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"ecomdw/internal/warehouse"
)

// Checker validates the loaded warehouse through a warehouse.Repository.
type Checker struct {
	Repo warehouse.Repository

	p *message.Printer
}

// New returns a Checker over repo.
func New(repo warehouse.Repository) *Checker {
	return &Checker{
		Repo: repo,
		p:    message.NewPrinter(language.English),
	}
}

// CheckNames lists the checks in execution order.
var CheckNames = []string{
	"staging_customers",
	"staging_products",
	"fact_orders",
	"fact_order_items",
	"dimension_integrity",
}

// Run executes every check. It returns overall pass, the per-check
// results, and an error only when a validation query itself failed.
func (c *Checker) Run(ctx context.Context) (bool, map[string]bool, error) {
	checks := map[string]func(context.Context) (bool, error){
		"staging_customers":   c.CheckStagingCustomers,
		"staging_products":    c.CheckStagingProducts,
		"fact_orders":         c.CheckFactOrders,
		"fact_order_items":    c.CheckFactOrderItems,
		"dimension_integrity": c.CheckDimensionIntegrity,
	}

	results := make(map[string]bool, len(checks))
	all := true
	for _, name := range CheckNames {
		passed, err := checks[name](ctx)
		if err != nil {
			return false, nil, fmt.Errorf("quality: %s: %w", name, err)
		}
		results[name] = passed
		all = all && passed
	}

	for _, name := range CheckNames {
		log.Printf("stage=quality check=%s passed=%t", name, results[name])
	}
	return all, results, nil
}

// rule is one enforced zero-violation assertion.
type rule struct {
	label string
	query string
}

// runRules counts violations for each rule, logging every count. The check
// passes when all counts are zero.
func (c *Checker) runRules(ctx context.Context, check string, rules []rule) (bool, error) {
	passed := true
	for _, r := range rules {
		n, err := c.Repo.SelectInt(ctx, r.query)
		if err != nil {
			return false, fmt.Errorf("%s: %w", r.label, err)
		}
		if n != 0 {
			passed = false
		}
		log.Printf("stage=quality check=%s %s=%s", check, r.label, c.p.Sprintf("%d", n))
	}
	return passed, nil
}

// info logs a non-enforced count.
func (c *Checker) info(ctx context.Context, check, label, query string) error {
	n, err := c.Repo.SelectInt(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	log.Printf("stage=quality check=%s %s=%s", check, label, c.p.Sprintf("%d", n))
	return nil
}

// CheckStagingCustomers validates the staged customer extract: ids present
// and unique, emails contain '@', segments drawn from the known set.
func (c *Checker) CheckStagingCustomers(ctx context.Context) (bool, error) {
	const check = "staging_customers"
	if err := c.info(ctx, check, "total_rows", "SELECT COUNT(*) FROM staging.customers"); err != nil {
		return false, err
	}
	return c.runRules(ctx, check, []rule{
		{"null_customer_ids",
			"SELECT COUNT(*) FROM staging.customers WHERE customer_id IS NULL"},
		{"duplicate_customer_ids",
			`SELECT (SELECT COUNT(*) FROM staging.customers WHERE customer_id IS NOT NULL)
			      - (SELECT COUNT(DISTINCT customer_id) FROM staging.customers)`},
		{"invalid_emails",
			"SELECT COUNT(*) FROM staging.customers WHERE email IS NULL OR email NOT LIKE '%@%'"},
		{"invalid_segments",
			`SELECT COUNT(*) FROM staging.customers
			 WHERE customer_segment IS NULL
			    OR customer_segment NOT IN ('Premium', 'Standard', 'Basic')`},
	})
}

// CheckStagingProducts validates the staged product extract. Price below
// cost is reported but not enforced.
func (c *Checker) CheckStagingProducts(ctx context.Context) (bool, error) {
	const check = "staging_products"
	if err := c.info(ctx, check, "total_rows", "SELECT COUNT(*) FROM staging.products"); err != nil {
		return false, err
	}
	passed, err := c.runRules(ctx, check, []rule{
		{"null_product_ids",
			"SELECT COUNT(*) FROM staging.products WHERE product_id IS NULL"},
		{"duplicate_product_ids",
			`SELECT (SELECT COUNT(*) FROM staging.products WHERE product_id IS NOT NULL)
			      - (SELECT COUNT(DISTINCT product_id) FROM staging.products)`},
		{"negative_prices",
			"SELECT COUNT(*) FROM staging.products WHERE price < 0"},
		{"negative_costs",
			"SELECT COUNT(*) FROM staging.products WHERE cost < 0"},
	})
	if err != nil {
		return false, err
	}
	if err := c.info(ctx, check, "price_below_cost",
		"SELECT COUNT(*) FROM staging.products WHERE price < cost"); err != nil {
		return false, err
	}
	return passed, nil
}

// CheckFactOrders validates the order facts: critical fields populated,
// amounts non-negative, statuses known, dimension references resolved.
func (c *Checker) CheckFactOrders(ctx context.Context) (bool, error) {
	const check = "fact_orders"
	if err := c.info(ctx, check, "total_rows", "SELECT COUNT(*) FROM warehouse.fact_orders"); err != nil {
		return false, err
	}
	return c.runRules(ctx, check, []rule{
		{"null_critical_fields",
			"SELECT COUNT(*) FROM warehouse.fact_orders WHERE order_id IS NULL OR order_date_key IS NULL"},
		{"negative_amounts",
			"SELECT COUNT(*) FROM warehouse.fact_orders WHERE total_amount < 0"},
		{"invalid_statuses",
			`SELECT COUNT(*) FROM warehouse.fact_orders
			 WHERE order_status NOT IN ('Completed', 'Pending', 'Cancelled', 'Returned')`},
		{"missing_references",
			`SELECT COUNT(*) FROM warehouse.fact_orders
			 WHERE customer_key IS NULL
			    OR payment_method_key IS NULL
			    OR shipping_method_key IS NULL`},
	})
}

// CheckFactOrderItems validates the line-item facts, including the
// line_total arithmetic within a cent of quantity times unit price.
func (c *Checker) CheckFactOrderItems(ctx context.Context) (bool, error) {
	const check = "fact_order_items"
	if err := c.info(ctx, check, "total_rows", "SELECT COUNT(*) FROM warehouse.fact_order_items"); err != nil {
		return false, err
	}
	return c.runRules(ctx, check, []rule{
		{"invalid_quantities",
			"SELECT COUNT(*) FROM warehouse.fact_order_items WHERE quantity <= 0"},
		{"negative_prices",
			"SELECT COUNT(*) FROM warehouse.fact_order_items WHERE unit_price < 0"},
		{"incorrect_line_totals",
			"SELECT COUNT(*) FROM warehouse.fact_order_items WHERE ABS(line_total - (quantity * unit_price)) > 0.01"},
	})
}

// CheckDimensionIntegrity asserts the single-current-row invariant of both
// versioned dimensions and reports date coverage.
func (c *Checker) CheckDimensionIntegrity(ctx context.Context) (bool, error) {
	const check = "dimension_integrity"

	dupCustomers, err := c.Repo.CurrentDuplicateKeys(ctx, "warehouse.dim_customer", "customer_id")
	if err != nil {
		return false, fmt.Errorf("duplicate_current_customers: %w", err)
	}
	log.Printf("stage=quality check=%s duplicate_current_customers=%s", check, c.p.Sprintf("%d", dupCustomers))

	dupProducts, err := c.Repo.CurrentDuplicateKeys(ctx, "warehouse.dim_product", "product_id")
	if err != nil {
		return false, fmt.Errorf("duplicate_current_products: %w", err)
	}
	log.Printf("stage=quality check=%s duplicate_current_products=%s", check, c.p.Sprintf("%d", dupProducts))

	if err := c.info(ctx, check, "order_date_keys",
		"SELECT COUNT(DISTINCT order_date_key) FROM warehouse.fact_orders"); err != nil {
		return false, err
	}
	if err := c.info(ctx, check, "dim_date_rows",
		"SELECT COUNT(*) FROM warehouse.dim_date"); err != nil {
		return false, err
	}

	return dupCustomers == 0 && dupProducts == 0, nil
}
