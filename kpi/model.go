// Package kpi models Key Performance Indicator results returned by the
// backend and the client-side logic around them: classification of
// result rows, table/cell formatting, per-KPI pagination, creation
// validation and the page loader.
package kpi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/onyxprism/prism/apperr"
)

// Record is one result row with its keys kept in document order.
type Record struct {
	keys   []string
	values map[string]interface{}
}

// RecordFromMap builds a record from m, keys in sorted order.
func RecordFromMap(m map[string]interface{}) Record {
	r := Record{values: make(map[string]interface{}, len(m))}
	for k, v := range m {
		r.keys = append(r.keys, k)
		r.values[k] = v
	}
	sort.Strings(r.keys)
	return r
}

// Keys returns the field names in document order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Get returns the value of a field.
func (r Record) Get(key string) (interface{}, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Number returns a field as float64 when it is numeric.
func (r Record) Number(key string) (float64, bool) {
	v, ok := r.values[key].(float64)
	return v, ok
}

// Fields returns the record itself; every Item variant embeds it.
func (r Record) Fields() Record { return r }

// UnmarshalJSON decodes a JSON object while keeping key order.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("kpi result row: expected object, got %v", tok)
	}

	r.keys = nil
	r.values = make(map[string]interface{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("kpi result row: expected key, got %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("kpi result row %q: %w", key, err)
		}
		if _, seen := r.values[key]; !seen {
			r.keys = append(r.keys, key)
		}
		r.values[key] = v
	}
	_, err = dec.Token()
	return err
}

// MarshalJSON encodes the record with its original key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Item is a classified result row. The concrete type tells which known
// shape the row has; RecordItem is the fallback for anything else.
type Item interface {
	Fields() Record
	kpiItem()
}

// PaymentMethodItem is a row grouped by payment method.
type PaymentMethodItem struct {
	Record
	Method string
	Value  float64
}

// SumItem is a row carrying a "sum" aggregate.
type SumItem struct {
	Record
	Sum float64
}

// AverageAmountItem is a row carrying an "average_amount" aggregate.
type AverageAmountItem struct {
	Record
	AverageAmount float64
}

// RevenueByProductItem is a per-product revenue row.
type RevenueByProductItem struct {
	Record
	ProductID *float64
	Revenue   float64
}

// RecordItem is a row of unknown shape.
type RecordItem struct {
	Record
}

func (PaymentMethodItem) kpiItem()    {}
func (SumItem) kpiItem()              {}
func (AverageAmountItem) kpiItem()    {}
func (RevenueByProductItem) kpiItem() {}
func (RecordItem) kpiItem()           {}

// Classify picks the variant for a row.
func Classify(r Record) Item {
	if method, ok := r.values["payment_method"].(string); ok && method != "" {
		return PaymentMethodItem{Record: r, Method: method, Value: measure(r)}
	}
	if v, ok := r.Number("sum"); ok {
		return SumItem{Record: r, Sum: v}
	}
	if v, ok := r.Number("average_amount"); ok {
		return AverageAmountItem{Record: r, AverageAmount: v}
	}
	if v, ok := r.Number("revenue_by_product"); ok {
		item := RevenueByProductItem{Record: r, Revenue: v}
		if id, ok := r.Number("product_id"); ok {
			item.ProductID = &id
		}
		return item
	}
	return RecordItem{Record: r}
}

// measure finds the headline number of a row: the known aggregates in
// priority order, then the first numeric field other than product_id.
func measure(r Record) float64 {
	for _, key := range []string{"sum", "average_amount", "revenue_by_product"} {
		if v, ok := r.Number(key); ok {
			return v
		}
	}
	for _, key := range r.keys {
		if key == "product_id" {
			continue
		}
		if v, ok := r.Number(key); ok {
			return v
		}
	}
	return 0
}

// KPI is a named metric with its result rows.
type KPI struct {
	Name   string
	Result []Item
}

func (k *KPI) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string   `json:"name"`
		Result []Record `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k.Name = raw.Name
	k.Result = make([]Item, 0, len(raw.Result))
	for _, r := range raw.Result {
		k.Result = append(k.Result, Classify(r))
	}
	return nil
}

func (k KPI) MarshalJSON() ([]byte, error) {
	rows := make([]Record, 0, len(k.Result))
	for _, it := range k.Result {
		rows = append(rows, it.Fields())
	}
	return json.Marshal(struct {
		Name   string   `json:"name"`
		Result []Record `json:"result"`
	}{k.Name, rows})
}

// Response is the /get-kpi payload. The backend sends "kpis" as a list,
// or as an empty object when the user has none.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	KPIs    []KPI  `json:"kpis"`
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		KPIs    json.RawMessage `json:"kpis"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Success = raw.Success
	r.Message = raw.Message
	r.KPIs = nil

	body := bytes.TrimSpace(raw.KPIs)
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &r.KPIs); err != nil {
			return fmt.Errorf("kpis: %w", err)
		}
	}
	return nil
}

// FormulaTypes lists the accepted values of NewKPI.FormulaType.
var FormulaTypes = []string{"sql", "aggregation", "calculation", "general", "custom"}

// NewKPI is the creation form posted to /kpi as "kpiData".
type NewKPI struct {
	Name        string `json:"name"`
	Formula     string `json:"formula"`
	Description string `json:"description"`
	FormulaType string `json:"formula_type"`
}

// Validate requires every field and a known formula type.
func (k NewKPI) Validate() error {
	if strings.TrimSpace(k.Name) == "" ||
		strings.TrimSpace(k.Formula) == "" ||
		strings.TrimSpace(k.Description) == "" ||
		strings.TrimSpace(k.FormulaType) == "" {
		return apperr.Validation("Please fill in all required fields.")
	}
	for _, t := range FormulaTypes {
		if k.FormulaType == t {
			return nil
		}
	}
	return apperr.Newf(apperr.KindValidation, "unknown formula type %q (want one of %s)",
		k.FormulaType, strings.Join(FormulaTypes, ", "))
}
