package kpi

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var currencyPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders v as US dollars with grouping and two decimals:
// 1234.5 -> "$1,234.50".
func FormatCurrency(v float64) string {
	return "$" + currencyPrinter.Sprintf("%.2f", v)
}

// IsCurrencyHeader reports whether a column holds money.
func IsCurrencyHeader(header string) bool {
	h := strings.ToLower(header)
	return strings.Contains(h, "revenue") ||
		strings.Contains(h, "amount") ||
		strings.Contains(h, "sum")
}

// TableHeaders returns the sorted union of keys across rows.
func TableHeaders(rows []Item) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, k := range row.Fields().keys {
			seen[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(seen))
	for k := range seen {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers
}

// FormatCell renders one table cell. Missing and empty values show "-".
func FormatCell(row Item, header string) string {
	v, ok := row.Fields().Get(header)
	if !ok || v == nil {
		return "-"
	}
	switch val := v.(type) {
	case float64:
		if IsCurrencyHeader(header) {
			return FormatCurrency(val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		if val == "" {
			return "-"
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "-"
		}
		return string(b)
	}
}

// NumericValue is the headline number shown on a summary card.
func NumericValue(item Item) float64 {
	switch it := item.(type) {
	case PaymentMethodItem:
		return it.Value
	case SumItem:
		return it.Sum
	case AverageAmountItem:
		return it.AverageAmount
	case RevenueByProductItem:
		return it.Revenue
	default:
		return measure(item.Fields())
	}
}

// DisplayLabel is the caption of a summary card.
func DisplayLabel(item Item, kpiName string) string {
	if it, ok := item.(PaymentMethodItem); ok {
		return it.Method
	}
	if id, ok := item.Fields().Number("product_id"); ok {
		return "Product " + strconv.FormatFloat(id, 'f', -1, 64)
	}
	return strings.ReplaceAll(kpiName, "_", " ")
}

// Layout says how a KPI block is drawn.
type Layout int

const (
	LayoutTable Layout = iota
	LayoutCard
)

// LayoutFor draws a single-row KPI as a card and anything else as a
// paginated table.
func LayoutFor(k KPI) Layout {
	if len(k.Result) == 1 {
		return LayoutCard
	}
	return LayoutTable
}
