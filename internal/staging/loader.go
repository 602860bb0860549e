// Package staging loads raw CSV extracts into the staging schema.
//
// Each *.csv file in the data directory maps to the staging table named by
// its base name. The load is a wholesale replace: the target table is
// cleared and refilled, so rerunning the stage is safe.
package staging

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"ecomdw/internal/warehouse"
)

// Loader reads CSV extracts and replaces staging tables through a
// warehouse.Repository.
type Loader struct {
	Repo    warehouse.Repository
	DataDir string

	// replace is a test seam over Repo.ReplaceStaging.
	replace func(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// New returns a Loader over repo reading from dataDir.
func New(repo warehouse.Repository, dataDir string) *Loader {
	return &Loader{Repo: repo, DataDir: dataDir}
}

// Load discovers the CSV files and loads each into its staging table,
// alphabetically by file name. It returns per-table row counts.
func (l *Loader) Load(ctx context.Context) (map[string]int64, error) {
	paths, err := filepath.Glob(filepath.Join(l.DataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("staging: glob %s: %w", l.DataDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("staging: no CSV files in %s (run gendata to produce sample extracts)", l.DataDir)
	}
	sort.Strings(paths)

	counts := make(map[string]int64, len(paths))
	for _, path := range paths {
		table := strings.TrimSuffix(filepath.Base(path), ".csv")
		columns, ok := warehouse.StagingColumns[table]
		if !ok {
			return nil, fmt.Errorf("staging: %s does not match a staging table", path)
		}

		started := time.Now()
		rows, err := l.readFile(path, table, columns)
		if err != nil {
			return nil, err
		}

		replace := l.replace
		if replace == nil {
			replace = l.Repo.ReplaceStaging
		}
		n, err := replace(ctx, table, columns, rows)
		if err != nil {
			return nil, fmt.Errorf("staging: load %s: %w", table, err)
		}
		counts[table] = n
		log.Printf("stage=staging table=%s rows=%d duration=%s", table, n, time.Since(started).Round(time.Millisecond))
	}
	return counts, nil
}

// readFile parses one CSV into rows aligned with the table's column order.
func (l *Loader) readFile(path, table string, columns []string) ([][]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("staging: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("staging: read header of %s: %w", path, err)
	}

	// Map each target column to its position in the file, tolerating
	// reordered columns and cosmetic header differences.
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	positions := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("staging: %s is missing column %q", path, c)
		}
		positions[i] = pos
	}

	kinds := columnKinds[table]

	var rows [][]any
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("staging: read %s: %w", path, err)
		}

		row := make([]any, len(columns))
		for i, c := range columns {
			v, err := coerce(record[positions[i]], kinds[c])
			if err != nil {
				return nil, fmt.Errorf("staging: %s line %d column %s: %w", path, line, c, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// normalizeHeader lowercases a header cell, strips a UTF-8 BOM and
// surrounding space, and converts spaces to underscores.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

type kind int

const (
	kindText kind = iota
	kindInt
	kindFloat
	kindBool
	kindTime
)

// columnKinds declares the non-text columns of each staging table.
// Unlisted columns load as text.
var columnKinds = map[string]map[string]kind{
	"customers": {
		"customer_id":       kindInt,
		"registration_date": kindTime,
		"is_active":         kindBool,
	},
	"products": {
		"product_id":     kindInt,
		"price":          kindFloat,
		"cost":           kindFloat,
		"stock_quantity": kindInt,
		"supplier_id":    kindInt,
		"created_date":   kindTime,
	},
	"orders": {
		"order_id":        kindInt,
		"customer_id":     kindInt,
		"order_date":      kindTime,
		"shipping_cost":   kindFloat,
		"tax_amount":      kindFloat,
		"discount_amount": kindFloat,
		"total_amount":    kindFloat,
		"created_at":      kindTime,
		"updated_at":      kindTime,
	},
	"order_items": {
		"order_id":        kindInt,
		"product_id":      kindInt,
		"quantity":        kindInt,
		"unit_price":      kindFloat,
		"line_total":      kindFloat,
		"discount_amount": kindFloat,
	},
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// coerce converts one CSV cell to a bind value. Empty cells become NULL.
// Malformed timestamps also become NULL, matching extracts where the date
// column is sparsely populated; other malformed values are errors.
func coerce(s string, k kind) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch k {
	case kindText:
		return s, nil
	case kindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q", s)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", s)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("bad boolean %q", s)
		}
		return b, nil
	case kindTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown column kind %d", k)
	}
}
