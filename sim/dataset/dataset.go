// Package dataset loads order history exported from an ERP or the DataCo
// supply-chain dataset and turns it into simulator input.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"

	"github.com/supplychain-copilot/copilot/sim"
)

// Column names of the order export.
const (
	ColOrderID      = "Order Id"
	ColQuantity     = "Order Item Quantity"
	ColProductPrice = "Product Price"
	ColProfit       = "Order Profit Per Order"
	ColShippingDays = "Days for shipping (real)"
	ColOrderDate    = "Order Date"
)

var requiredColumns = []string{ColOrderID, ColQuantity, ColProductPrice, ColProfit, ColShippingDays}

// ErrEmpty is returned when a file has a header but no usable rows.
var ErrEmpty = errors.New("dataset has no usable rows")

var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// Row is one cleaned order line.
type Row struct {
	OrderID      string          `json:"order_id"`
	Quantity     int64           `json:"quantity"`
	ProductPrice float64         `json:"product_price"`
	Profit       decimal.Decimal `json:"profit"`
	ShippingDays float64         `json:"shipping_days"`
	OrderDate    time.Time       `json:"order_date"` // zero when the column is absent or unparsable
}

// Dataset is a cleaned, in-memory order table.
type Dataset struct {
	Rows    []Row
	Dropped int  // rows removed for missing required values
	HasDate bool // true when at least one row carries an order date
}

// LoadFile opens path and parses it with Load.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses an ISO-8859-1 encoded CSV order export.
// Values that do not parse as numbers are treated as missing and the row is
// dropped. A missing or unparsable order date only disables forecasting for
// that row.
func Load(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading header: %w", ErrEmpty)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}
	dateIdx, hasDateCol := index[ColOrderDate]

	ds := &Dataset{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row, ok := parseRow(field)
		if !ok {
			ds.Dropped++
			continue
		}
		if hasDateCol && dateIdx < len(record) {
			if d, ok := parseDate(strings.TrimSpace(record[dateIdx])); ok {
				row.OrderDate = d
				ds.HasDate = true
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	if ds.Dropped > 0 {
		logrus.Warnf("dataset: dropped %d rows with missing required values", ds.Dropped)
	}
	if len(ds.Rows) == 0 {
		return nil, ErrEmpty
	}
	return ds, nil
}

func parseRow(field func(string) string) (Row, bool) {
	id := field(ColOrderID)
	if id == "" {
		return Row{}, false
	}
	shipping, ok := parseNumber(field(ColShippingDays))
	if !ok {
		return Row{}, false
	}
	profit, err := decimal.NewFromString(field(ColProfit))
	if err != nil {
		return Row{}, false
	}
	qty, ok := parseNumber(field(ColQuantity))
	if !ok || qty < 0 {
		return Row{}, false
	}
	price, ok := parseNumber(field(ColProductPrice))
	if !ok {
		return Row{}, false
	}
	return Row{
		OrderID:      id,
		Quantity:     int64(math.Round(qty)),
		ProductPrice: price,
		Profit:       profit,
		ShippingDays: shipping,
	}, true
}

func parseNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Len returns the number of usable rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Sample draws n rows without replacement. n is clamped to [1, Len()].
func (d *Dataset) Sample(n int, rng *rand.Rand) []Row {
	n = max(1, min(n, len(d.Rows)))
	perm := rng.Perm(len(d.Rows))
	out := make([]Row, n)
	for i := 0; i < n; i++ {
		out[i] = d.Rows[perm[i]]
	}
	return out
}

// Orders converts rows into simulator orders.
func Orders(rows []Row) []sim.Order {
	orders := make([]sim.Order, len(rows))
	for i, r := range rows {
		orders[i] = sim.Order{
			ID:         r.OrderID,
			Quantity:   r.Quantity,
			UnitPrice:  r.ProductPrice,
			BaseProfit: r.Profit,
		}
	}
	return orders
}

// DailyTotal is the ordered quantity of one calendar day.
type DailyTotal struct {
	Date     time.Time `json:"date"`
	Quantity float64   `json:"quantity"`
}

// DailyDemand sums ordered quantity per calendar day, sorted by date.
// Rows without an order date are skipped.
func (d *Dataset) DailyDemand() []DailyTotal {
	sums := make(map[time.Time]float64)
	for _, r := range d.Rows {
		if r.OrderDate.IsZero() {
			continue
		}
		day := time.Date(r.OrderDate.Year(), r.OrderDate.Month(), r.OrderDate.Day(), 0, 0, 0, 0, time.UTC)
		sums[day] += float64(r.Quantity)
	}
	out := make([]DailyTotal, 0, len(sums))
	for day, q := range sums {
		out = append(out, DailyTotal{Date: day, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
