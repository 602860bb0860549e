package mssql

import (
	"strings"
	"testing"
)

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	stmt, args := buildInsertSQL("staging.orders",
		[]string{"order_id", "order_status"},
		[][]any{{1, "pending"}, {2, "shipped"}})

	want := "INSERT INTO staging.orders ([order_id], [order_status]) " +
		"VALUES (@p1, @p2), (@p3, @p4)"
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[0] != 1 || args[3] != "shipped" {
		t.Fatalf("args out of order: %v", args)
	}
}

func TestIdentEscapesBrackets(t *testing.T) {
	t.Parallel()

	if got := ident("we]ird"); got != "[we]]ird]" {
		t.Fatalf("ident = %q", got)
	}
}

func TestFactSQLDialect(t *testing.T) {
	t.Parallel()

	// Date keys are arithmetic, booleans are BIT comparisons.
	for _, frag := range []string{
		"YEAR(o.order_date) * 10000 + MONTH(o.order_date) * 100 + DAY(o.order_date)",
		"dc.is_current = 1",
		"LEFT JOIN staging.order_items oi",
		"COALESCE(SUM(oi.line_total), 0)",
	} {
		if !strings.Contains(insertNewFactOrdersSQL, frag) {
			t.Errorf("fact orders SQL missing %q", frag)
		}
	}

	for _, frag := range []string{
		"JOIN warehouse.dim_product dp",
		"dp.is_current = 1",
		"NOT EXISTS",
		"oi.line_total - COALESCE(dp.cost, 0) * oi.quantity",
	} {
		if !strings.Contains(insertNewFactOrderItemsSQL, frag) {
			t.Errorf("fact order items SQL missing %q", frag)
		}
	}

	if strings.Contains(insertNewFactOrderItemsSQL, "LEFT JOIN warehouse.dim_product") {
		t.Error("order items must inner-join the product dimension")
	}
}
