package quality

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ecomdw/internal/warehouse/warehousetest"
)

func TestRunAllClean(t *testing.T) {
	t.Parallel()

	c := New(&warehousetest.Fake{})
	all, results, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !all {
		t.Fatal("all = false for a clean warehouse")
	}
	if len(results) != len(CheckNames) {
		t.Fatalf("results = %d checks, want %d", len(results), len(CheckNames))
	}
	for _, name := range CheckNames {
		if !results[name] {
			t.Errorf("check %s failed on clean warehouse", name)
		}
	}
}

func TestRunReportsViolationWithoutHalting(t *testing.T) {
	t.Parallel()

	fake := &warehousetest.Fake{
		SelectIntFn: func(_ context.Context, query string) (int64, error) {
			if strings.Contains(query, "NOT LIKE '%@%'") {
				return 3, nil
			}
			return 0, nil
		},
	}

	all, results, err := New(fake).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if all {
		t.Fatal("all = true despite invalid emails")
	}
	if results["staging_customers"] {
		t.Fatal("staging_customers passed despite invalid emails")
	}
	// The remaining checks still ran and passed.
	for _, name := range []string{"staging_products", "fact_orders", "fact_order_items", "dimension_integrity"} {
		if !results[name] {
			t.Errorf("check %s did not pass", name)
		}
	}
}

func TestDimensionIntegrityDuplicates(t *testing.T) {
	t.Parallel()

	fake := &warehousetest.Fake{
		CurrentDuplicateKeysFn: func(_ context.Context, table, _ string) (int64, error) {
			if table == "warehouse.dim_product" {
				return 2, nil
			}
			return 0, nil
		},
	}

	passed, err := New(fake).CheckDimensionIntegrity(context.Background())
	if err != nil {
		t.Fatalf("CheckDimensionIntegrity: %v", err)
	}
	if passed {
		t.Fatal("passed despite duplicate current products")
	}
}

func TestRunQueryErrorIsFatal(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	fake := &warehousetest.Fake{
		SelectIntFn: func(_ context.Context, query string) (int64, error) {
			if strings.Contains(query, "fact_orders") {
				return 0, boom
			}
			return 0, nil
		},
	}

	_, _, err := New(fake).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run error = %v, want wrapped boom", err)
	}
}

func TestPriceBelowCostIsInformational(t *testing.T) {
	t.Parallel()

	fake := &warehousetest.Fake{
		SelectIntFn: func(_ context.Context, query string) (int64, error) {
			if strings.Contains(query, "price < cost") {
				return 12, nil
			}
			return 0, nil
		},
	}

	passed, err := New(fake).CheckStagingProducts(context.Background())
	if err != nil {
		t.Fatalf("CheckStagingProducts: %v", err)
	}
	if !passed {
		t.Fatal("price-below-cost count must not fail the check")
	}
}
