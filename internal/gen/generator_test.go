package gen

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func testOptions() Options {
	return Options{
		Customers: 20,
		Products:  10,
		Orders:    30,
		Seed:      42,
		Now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestWriteCSVShape(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	counts, err := New(testOptions()).WriteCSV(dir)
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	if counts["customers"] != 20 || counts["products"] != 10 || counts["orders"] != 30 {
		t.Fatalf("counts = %v", counts)
	}
	// 1 to 5 items per order.
	if counts["order_items"] < 30 || counts["order_items"] > 150 {
		t.Fatalf("order_items = %d, want within [30, 150]", counts["order_items"])
	}

	customers := readAll(t, filepath.Join(dir, "customers.csv"))
	if len(customers) != 21 {
		t.Fatalf("customers.csv rows = %d, want 21 with header", len(customers))
	}
	if customers[0][0] != "customer_id" || customers[0][12] != "is_active" {
		t.Fatalf("customers header = %v", customers[0])
	}
	if _, err := time.Parse("2006-01-02", customers[1][10]); err != nil {
		t.Fatalf("registration_date %q not a date: %v", customers[1][10], err)
	}
	if _, err := strconv.ParseBool(customers[1][12]); err != nil {
		t.Fatalf("is_active %q not a bool: %v", customers[1][12], err)
	}

	orders := readAll(t, filepath.Join(dir, "orders.csv"))
	if _, err := time.Parse("2006-01-02 15:04:05", orders[1][2]); err != nil {
		t.Fatalf("order_date %q not a timestamp: %v", orders[1][2], err)
	}
	valid := map[string]bool{"Completed": true, "Pending": true, "Cancelled": true, "Returned": true}
	for _, row := range orders[1:] {
		if !valid[row[3]] {
			t.Fatalf("unexpected order status %q", row[3])
		}
	}
}

func TestOrderArithmetic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := New(testOptions()).WriteCSV(dir); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	items := readAll(t, filepath.Join(dir, "order_items.csv"))
	subtotals := map[string]float64{}
	for _, row := range items[1:] {
		qty, _ := strconv.Atoi(row[3])
		price, _ := strconv.ParseFloat(row[4], 64)
		total, _ := strconv.ParseFloat(row[5], 64)
		if diff := total - float64(qty)*price; diff > 0.011 || diff < -0.011 {
			t.Fatalf("item %s: line_total %v != %d * %v", row[0], total, qty, price)
		}
		subtotals[row[1]] += total
	}

	orders := readAll(t, filepath.Join(dir, "orders.csv"))
	for _, row := range orders[1:] {
		shipping, _ := strconv.ParseFloat(row[6], 64)
		tax, _ := strconv.ParseFloat(row[7], 64)
		discount, _ := strconv.ParseFloat(row[8], 64)
		total, _ := strconv.ParseFloat(row[9], 64)

		sub := subtotals[row[0]]
		want := sub + tax + shipping - discount
		if diff := total - want; diff > 0.02 || diff < -0.02 {
			t.Fatalf("order %s: total %v, want %v", row[0], total, want)
		}
		wantTax := sub * 0.08
		if diff := tax - wantTax; diff > 0.02 || diff < -0.02 {
			t.Fatalf("order %s: tax %v, want %v", row[0], tax, wantTax)
		}
	}
}

func TestDeterministicForSameSeed(t *testing.T) {
	t.Parallel()

	dirA, dirB := t.TempDir(), t.TempDir()
	if _, err := New(testOptions()).WriteCSV(dirA); err != nil {
		t.Fatalf("WriteCSV A: %v", err)
	}
	if _, err := New(testOptions()).WriteCSV(dirB); err != nil {
		t.Fatalf("WriteCSV B: %v", err)
	}

	for _, name := range []string{"customers.csv", "products.csv", "orders.csv", "order_items.csv"} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		if err != nil {
			t.Fatalf("read A %s: %v", name, err)
		}
		b, err := os.ReadFile(filepath.Join(dirB, name))
		if err != nil {
			t.Fatalf("read B %s: %v", name, err)
		}
		if string(a) != string(b) {
			t.Fatalf("%s differs between identically-seeded runs", name)
		}
	}
}

func TestDistinctProductsPerOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := New(testOptions()).WriteCSV(dir); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	items := readAll(t, filepath.Join(dir, "order_items.csv"))
	seen := map[string]bool{}
	for _, row := range items[1:] {
		key := row[1] + ":" + row[2]
		if seen[key] {
			t.Fatalf("order %s repeats product %s", row[1], row[2])
		}
		seen[key] = true
	}
}

func TestTinyCatalog(t *testing.T) {
	t.Parallel()

	opts := testOptions()
	opts.Products = 2
	opts.Orders = 50

	dir := t.TempDir()
	done := make(chan error, 1)
	go func() {
		_, err := New(opts).WriteCSV(dir)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("WriteCSV did not finish with a 2-product catalog")
	}
}
