package kpi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(t *testing.T, s string) Item {
	t.Helper()
	var r Record
	require.NoError(t, json.Unmarshal([]byte(s), &r))
	return Classify(r)
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1234.5, "$1,234.50"},
		{0, "$0.00"},
		{1000000, "$1,000,000.00"},
		{12.3, "$12.30"},
		{999.999, "$1,000.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCurrency(tt.in), "%v", tt.in)
	}
}

func TestIsCurrencyHeader(t *testing.T) {
	assert.True(t, IsCurrencyHeader("Total_Revenue"))
	assert.True(t, IsCurrencyHeader("average_amount"))
	assert.True(t, IsCurrencyHeader("SUM"))
	assert.False(t, IsCurrencyHeader("orders"))
	assert.False(t, IsCurrencyHeader("product_id"))
}

func TestTableHeadersUnion(t *testing.T) {
	rows := []Item{
		row(t, `{"b":1,"a":2}`),
		row(t, `{"c":3,"a":4}`),
		row(t, `{}`),
	}
	assert.Equal(t, []string{"a", "b", "c"}, TableHeaders(rows))
	assert.Empty(t, TableHeaders(nil))
}

func TestFormatCell(t *testing.T) {
	r := row(t, `{"total_amount":1234.5,"orders":3,"region":"eu","note":"","flag":false,"meta":{"k":1}}`)

	assert.Equal(t, "$1,234.50", FormatCell(r, "total_amount"))
	assert.Equal(t, "3", FormatCell(r, "orders"))
	assert.Equal(t, "eu", FormatCell(r, "region"))
	assert.Equal(t, "-", FormatCell(r, "note"))
	assert.Equal(t, "-", FormatCell(r, "missing"))
	assert.Equal(t, "false", FormatCell(r, "flag"))
	assert.Equal(t, `{"k":1}`, FormatCell(r, "meta"))
}

func TestNumericValueAndLabel(t *testing.T) {
	tests := []struct {
		name      string
		row       string
		wantValue float64
		wantLabel string
	}{
		{"sum", `{"sum":42}`, 42, "total revenue"},
		{"sum beats average", `{"average_amount":3,"sum":10}`, 10, "total revenue"},
		{"average", `{"average_amount":3.5}`, 3.5, "total revenue"},
		{"product", `{"product_id":7,"revenue_by_product":99}`, 99, "Product 7"},
		{"payment method", `{"payment_method":"card","total":12}`, 12, "card"},
		{"first numeric skips product id", `{"product_id":7,"units":5,"other":6}`, 5, "Product 7"},
		{"no numbers", `{"region":"eu"}`, 0, "total revenue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := row(t, tt.row)
			assert.Equal(t, tt.wantValue, NumericValue(it))
			assert.Equal(t, tt.wantLabel, DisplayLabel(it, "total_revenue"))
		})
	}
}

func TestLayoutFor(t *testing.T) {
	one := KPI{Name: "k", Result: []Item{row(t, `{"sum":1}`)}}
	many := KPI{Name: "k", Result: []Item{row(t, `{"sum":1}`), row(t, `{"sum":2}`)}}
	none := KPI{Name: "k"}

	assert.Equal(t, LayoutCard, LayoutFor(one))
	assert.Equal(t, LayoutTable, LayoutFor(many))
	assert.Equal(t, LayoutTable, LayoutFor(none))
}
