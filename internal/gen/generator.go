// Package gen produces deterministic sample e-commerce extracts as CSV
// files, shaped exactly like the staging tables expect them.
//
// The same seed always yields the same dataset, so generated extracts are
// reproducible across machines and runs.
package gen

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Options sizes the generated dataset.
type Options struct {
	Customers int
	Products  int
	Orders    int
	Seed      uint64

	// Now anchors the relative date ranges; zero means time.Now().
	Now time.Time
}

// DefaultOptions mirrors the standard sample-data volume.
func DefaultOptions() Options {
	return Options{
		Customers: 5000,
		Products:  500,
		Orders:    20000,
		Seed:      42,
	}
}

// Generator produces the dataset.
type Generator struct {
	opts  Options
	faker *gofakeit.Faker
	title cases.Caser
	now   time.Time
}

// New returns a Generator for opts.
func New(opts Options) *Generator {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Generator{
		opts:  opts,
		faker: gofakeit.New(opts.Seed),
		title: cases.Title(language.English),
		now:   now.UTC().Truncate(time.Second),
	}
}

type customer struct {
	ID           int
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Address      string
	City         string
	State        string
	Zip          string
	Country      string
	Registered   time.Time
	Segment      string
	Active       bool
}

type product struct {
	ID       int
	Name     string
	Category string
	SubCat   string
	Brand    string
	Price    float64
	Cost     float64
	Stock    int
	Supplier int
	Created  time.Time
}

type order struct {
	ID       int
	Customer int
	Date     time.Time
	Status   string
	Payment  string
	Shipping string
	ShipCost float64
	Tax      float64
	Discount float64
	Total    float64
}

type orderItem struct {
	ID       string
	Order    int
	Product  int
	Quantity int
	Price    float64
	Total    float64
	Discount float64
}

var (
	segments        = []string{"Premium", "Standard", "Basic"}
	categories      = []string{"Electronics", "Clothing", "Home & Garden", "Sports", "Books", "Toys"}
	paymentMethods  = []string{"Credit Card", "PayPal", "Debit Card", "Gift Card"}
	shippingMethods = []string{"Standard", "Express", "Next Day"}
)

// weightedStatus picks an order status: 70% Completed, 15% Pending,
// 10% Cancelled, 5% Returned.
func (g *Generator) weightedStatus() string {
	switch n := g.faker.Number(1, 100); {
	case n <= 70:
		return "Completed"
	case n <= 85:
		return "Pending"
	case n <= 95:
		return "Cancelled"
	default:
		return "Returned"
	}
}

func (g *Generator) customers() []customer {
	out := make([]customer, g.opts.Customers)
	for i := range out {
		out[i] = customer{
			ID:         i + 1,
			FirstName:  g.faker.FirstName(),
			LastName:   g.faker.LastName(),
			Email:      g.faker.Email(),
			Phone:      g.faker.Phone(),
			Address:    g.faker.Street(),
			City:       g.faker.City(),
			State:      g.faker.State(),
			Zip:        g.faker.Zip(),
			Country:    "USA",
			Registered: g.dateBetween(-2*365, 0),
			Segment:    segments[g.faker.Number(0, len(segments)-1)],
			Active:     g.faker.Number(1, 4) <= 3,
		}
	}
	return out
}

func (g *Generator) products() []product {
	out := make([]product, g.opts.Products)
	for i := range out {
		cat := categories[g.faker.Number(0, len(categories)-1)]
		out[i] = product{
			ID:       i + 1,
			Name:     g.title.String(g.faker.Word() + " " + g.faker.Word()),
			Category: cat,
			SubCat:   cat + " - " + g.title.String(g.faker.Word()),
			Brand:    g.faker.Company(),
			Price:    round2(g.faker.Float64Range(9.99, 999.99)),
			Cost:     round2(g.faker.Float64Range(5.0, 500.0)),
			Stock:    g.faker.Number(0, 1000),
			Supplier: g.faker.Number(1, 50),
			Created:  g.dateBetween(-3*365, -365),
		}
	}
	return out
}

func (g *Generator) orders(products []product) ([]order, []orderItem) {
	orders := make([]order, 0, g.opts.Orders)
	var items []orderItem

	for id := 1; id <= g.opts.Orders; id++ {
		orderDate := g.timeBetween(-365, 0)

		o := order{
			ID:       id,
			Customer: g.faker.Number(1, g.opts.Customers),
			Date:     orderDate,
			Status:   g.weightedStatus(),
			Payment:  paymentMethods[g.faker.Number(0, len(paymentMethods)-1)],
			Shipping: shippingMethods[g.faker.Number(0, len(shippingMethods)-1)],
			ShipCost: round2(g.faker.Float64Range(0, 25)),
		}
		if g.faker.Number(1, 10) > 7 {
			o.Discount = round2(g.faker.Float64Range(0, 50))
		}

		// 1 to 5 distinct products per order; a tiny catalog caps the
		// draw so the rejection loop below always terminates.
		maxItems := 5
		if g.opts.Products < maxItems {
			maxItems = g.opts.Products
		}
		numItems := g.faker.Number(1, maxItems)
		seen := make(map[int]bool, numItems)
		subtotal := 0.0
		for n := 1; n <= numItems; n++ {
			pid := g.faker.Number(1, g.opts.Products)
			for seen[pid] {
				pid = g.faker.Number(1, g.opts.Products)
			}
			seen[pid] = true

			p := products[pid-1]
			qty := g.faker.Number(1, 3)
			lineTotal := round2(float64(qty) * p.Price)
			subtotal += lineTotal

			items = append(items, orderItem{
				ID:       fmt.Sprintf("%d_%d", id, n),
				Order:    id,
				Product:  pid,
				Quantity: qty,
				Price:    p.Price,
				Total:    lineTotal,
			})
		}

		o.Tax = round2(subtotal * 0.08)
		// A small order can draw a discount larger than its value; clamp
		// so totals never go negative.
		if o.Discount > subtotal {
			o.Discount = round2(subtotal)
		}
		o.Total = round2(subtotal + o.Tax + o.ShipCost - o.Discount)
		orders = append(orders, o)
	}
	return orders, items
}

// WriteCSV generates the dataset and writes the four extract files into
// dir, creating it if needed. Returns per-file row counts.
func (g *Generator) WriteCSV(dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gen: create %s: %w", dir, err)
	}

	customers := g.customers()
	products := g.products()
	orders, items := g.orders(products)

	counts := map[string]int{
		"customers":   len(customers),
		"products":    len(products),
		"orders":      len(orders),
		"order_items": len(items),
	}

	if err := writeCSV(dir, "customers.csv",
		[]string{"customer_id", "first_name", "last_name", "email", "phone",
			"address", "city", "state", "zip_code", "country",
			"registration_date", "customer_segment", "is_active"},
		len(customers), func(i int) []string {
			c := customers[i]
			return []string{
				strconv.Itoa(c.ID), c.FirstName, c.LastName, c.Email, c.Phone,
				c.Address, c.City, c.State, c.Zip, c.Country,
				c.Registered.Format("2006-01-02"), c.Segment, strconv.FormatBool(c.Active),
			}
		}); err != nil {
		return nil, err
	}

	if err := writeCSV(dir, "products.csv",
		[]string{"product_id", "product_name", "category", "sub_category", "brand",
			"price", "cost", "stock_quantity", "supplier_id", "created_date"},
		len(products), func(i int) []string {
			p := products[i]
			return []string{
				strconv.Itoa(p.ID), p.Name, p.Category, p.SubCat, p.Brand,
				money(p.Price), money(p.Cost), strconv.Itoa(p.Stock),
				strconv.Itoa(p.Supplier), p.Created.Format("2006-01-02"),
			}
		}); err != nil {
		return nil, err
	}

	if err := writeCSV(dir, "orders.csv",
		[]string{"order_id", "customer_id", "order_date", "order_status",
			"payment_method", "shipping_method", "shipping_cost", "tax_amount",
			"discount_amount", "total_amount", "created_at", "updated_at"},
		len(orders), func(i int) []string {
			o := orders[i]
			ts := o.Date.Format("2006-01-02 15:04:05")
			return []string{
				strconv.Itoa(o.ID), strconv.Itoa(o.Customer), ts, o.Status,
				o.Payment, o.Shipping, money(o.ShipCost), money(o.Tax),
				money(o.Discount), money(o.Total), ts, ts,
			}
		}); err != nil {
		return nil, err
	}

	if err := writeCSV(dir, "order_items.csv",
		[]string{"order_item_id", "order_id", "product_id", "quantity",
			"unit_price", "line_total", "discount_amount"},
		len(items), func(i int) []string {
			it := items[i]
			return []string{
				it.ID, strconv.Itoa(it.Order), strconv.Itoa(it.Product),
				strconv.Itoa(it.Quantity), money(it.Price), money(it.Total),
				money(it.Discount),
			}
		}); err != nil {
		return nil, err
	}

	return counts, nil
}

func writeCSV(dir, name string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("gen: create %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("gen: write %s: %w", name, err)
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return fmt.Errorf("gen: write %s: %w", name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("gen: flush %s: %w", name, err)
	}
	return nil
}

// dateBetween returns a date offset by a whole number of days from now.
func (g *Generator) dateBetween(minDays, maxDays int) time.Time {
	days := g.faker.Number(minDays, maxDays)
	d := g.now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// timeBetween returns a timestamp with an intra-day component.
func (g *Generator) timeBetween(minDays, maxDays int) time.Time {
	d := g.dateBetween(minDays, maxDays)
	return d.Add(time.Duration(g.faker.Number(0, 86399)) * time.Second)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
