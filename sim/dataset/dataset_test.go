package dataset

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Type,Days for shipping (real),Order Id,Order Item Quantity,Product Price,Order Profit Per Order,Order Date,Customer City
DEBIT,3,1001,2,50.5,12.25,1/31/2018 22:56,Caguas
TRANSFER,5,1002,1,20,-3.5,1/31/2018 10:01,Caguas
CASH,,1003,4,10,1,2/01/2018 09:00,Caguas
DEBIT,2,,4,10,1,2/01/2018 09:00,Caguas
DEBIT,2,1005,abc,10,1,2/01/2018 09:00,Caguas
PAYMENT,4,1006,3,99.99,40,2/1/2018 12:30,Caguas
`

func TestLoad_ValidCSV_DropsIncompleteRows(t *testing.T) {
	ds, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// rows 1003 (no shipping days), blank id and 1005 (bad quantity) are dropped
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 3, ds.Dropped)
	assert.True(t, ds.HasDate)

	first := ds.Rows[0]
	assert.Equal(t, "1001", first.OrderID)
	assert.Equal(t, int64(2), first.Quantity)
	assert.InDelta(t, 50.5, first.ProductPrice, 1e-9)
	assert.Equal(t, "12.25", first.Profit.String())
	assert.Equal(t, time.Date(2018, 1, 31, 22, 56, 0, 0, time.UTC), first.OrderDate)
}

func TestLoad_Latin1Bytes_AreDecoded(t *testing.T) {
	// GIVEN a city name encoded as ISO-8859-1 (0xE1 = á)
	raw := "Order Id,Order Item Quantity,Product Price,Order Profit Per Order,Days for shipping (real),Customer City\n" +
		"1,1,1,1,1,Bogot\xe1\n"
	ds, err := Load(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.False(t, ds.HasDate)
}

func TestLoad_MissingColumn_ReturnsError(t *testing.T) {
	_, err := Load(strings.NewReader("Order Id,Product Price\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ColQuantity)
}

func TestLoad_NoUsableRows_ReturnsErrEmpty(t *testing.T) {
	raw := "Order Id,Order Item Quantity,Product Price,Order Profit Per Order,Days for shipping (real)\n,1,1,1,1\n"
	_, err := Load(strings.NewReader(raw))
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = Load(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrEmpty))
}

func TestLoadFile_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))
	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSample_NoReplacementAndClamped(t *testing.T) {
	ds, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	rows := ds.Sample(10, rand.New(rand.NewSource(1)))
	require.Len(t, rows, 3)
	seen := map[string]bool{}
	for _, r := range rows {
		assert.False(t, seen[r.OrderID], "duplicate %s", r.OrderID)
		seen[r.OrderID] = true
	}

	assert.Len(t, ds.Sample(0, rand.New(rand.NewSource(1))), 1)
}

func TestOrders_ConvertsRows(t *testing.T) {
	ds, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	orders := Orders(ds.Rows)
	require.Len(t, orders, 3)
	assert.Equal(t, "1002", orders[1].ID)
	assert.Equal(t, "-3.5", orders[1].BaseProfit.String())
}

func TestDailyDemand_GroupsByCalendarDay(t *testing.T) {
	ds, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	daily := ds.DailyDemand()
	require.Len(t, daily, 2)
	assert.Equal(t, time.Date(2018, 1, 31, 0, 0, 0, 0, time.UTC), daily[0].Date)
	assert.Equal(t, 3.0, daily[0].Quantity)
	assert.Equal(t, 3.0, daily[1].Quantity)
}

func TestDescribe_ComputesQuartiles(t *testing.T) {
	ds, err := Load(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	summary := ds.Describe()
	require.Len(t, summary, 3)
	qty := summary[1]
	assert.Equal(t, ColQuantity, qty.Column)
	assert.Equal(t, 3, qty.Count)
	assert.InDelta(t, 2.0, qty.Mean, 1e-9)
	assert.InDelta(t, 1.0, qty.Std, 1e-9)
	assert.InDelta(t, 1.0, qty.Min, 1e-9)
	assert.InDelta(t, 1.5, qty.P25, 1e-9)
	assert.InDelta(t, 2.0, qty.P50, 1e-9)
	assert.InDelta(t, 2.5, qty.P75, 1e-9)
	assert.InDelta(t, 3.0, qty.Max, 1e-9)
}
