package viz

import (
	"fmt"
	"strconv"
	"strings"
)

// Summary renders a chart option as plain text for the terminal: one
// line per data point, grouped by series.
func Summary(opt map[string]any) string {
	var b strings.Builder

	if msg, ok := opt["error"].(string); ok && msg != "" {
		fmt.Fprintf(&b, "(%s)\n", msg)
	}

	series, _ := opt["series"].([]any)
	if len(series) == 0 {
		if b.Len() == 0 {
			b.WriteString("(no data)\n")
		}
		return b.String()
	}

	categories := axisData(opt, "xAxis")
	indicators := radarIndicators(opt)

	for i, raw := range series {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := s["type"].(string)
		name, _ := s["name"].(string)
		if name == "" {
			name = fmt.Sprintf("series %d", i+1)
		}
		fmt.Fprintf(&b, "%s [%s]\n", name, kind)

		data, _ := s["data"].([]any)
		for j, point := range data {
			label, value := pointText(point, j, categories, indicators)
			fmt.Fprintf(&b, "  %-24s %s\n", label, value)
		}
	}
	return b.String()
}

func axisData(opt map[string]any, key string) []any {
	axis, ok := opt[key].(map[string]any)
	if !ok {
		return nil
	}
	data, _ := axis["data"].([]any)
	return data
}

func radarIndicators(opt map[string]any) []string {
	radar, ok := opt["radar"].(map[string]any)
	if !ok {
		return nil
	}
	list, _ := radar["indicator"].([]any)
	names := make([]string, 0, len(list))
	for _, ind := range list {
		if m, ok := ind.(map[string]any); ok {
			n, _ := m["name"].(string)
			names = append(names, n)
		}
	}
	return names
}

func pointText(point any, idx int, categories []any, indicators []string) (string, string) {
	switch p := point.(type) {
	case map[string]any:
		// pie slices and radar entries
		name, _ := p["name"].(string)
		if vals, ok := p["value"].([]any); ok {
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = scalar(v)
				if i < len(indicators) && indicators[i] != "" {
					parts[i] = indicators[i] + "=" + parts[i]
				}
			}
			return name, strings.Join(parts, " ")
		}
		return name, scalar(p["value"])
	case []any:
		// scatter pairs
		parts := make([]string, len(p))
		for i, v := range p {
			parts[i] = scalar(v)
		}
		return "#" + strconv.Itoa(idx+1), "(" + strings.Join(parts, ", ") + ")"
	default:
		label := "#" + strconv.Itoa(idx+1)
		if idx < len(categories) {
			label = scalar(categories[idx])
		}
		return label, scalar(p)
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// SeriesKinds lists the distinct series types of a chart in order of
// appearance, e.g. ["bar", "line"].
func SeriesKinds(opt map[string]any) []string {
	series, _ := opt["series"].([]any)
	seen := map[string]bool{}
	var kinds []string
	for _, raw := range series {
		s, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if k, _ := s["type"].(string); k != "" && !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds
}
