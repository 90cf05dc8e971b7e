// Package viz holds the chart documents returned by the visualization
// endpoint and the client-side bookkeeping around them.
package viz

import (
	"encoding/json"
	"fmt"
)

// Chart is one chart document. Apart from chart_id, pinned and
// title.text the option is opaque and passed through unchanged.
type Chart struct {
	ID     string
	Pinned bool
	Option map[string]any

	// unflagged is set when the document's pinned field is missing or
	// not a bool. Such a chart is neither pinned nor recommended.
	unflagged bool
}

func (c *Chart) UnmarshalJSON(data []byte) error {
	var opt map[string]any
	if err := json.Unmarshal(data, &opt); err != nil {
		return err
	}
	if opt == nil {
		return fmt.Errorf("chart: expected object")
	}
	c.Option = opt
	c.ID, _ = opt["chart_id"].(string)
	c.Pinned, c.unflagged = false, true
	if pinned, ok := opt["pinned"].(bool); ok {
		c.Pinned, c.unflagged = pinned, false
	}
	return nil
}

func (c Chart) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Option)+2)
	for k, v := range c.Option {
		out[k] = v
	}
	out["chart_id"] = c.ID
	if !c.unflagged {
		out["pinned"] = c.Pinned
	}
	return json.Marshal(out)
}

// Title returns title.text, or "Chart" when the option has none.
func (c Chart) Title() string {
	return titleOf(c.Option)
}

func titleOf(opt map[string]any) string {
	if title, ok := opt["title"].(map[string]any); ok {
		if text, ok := title["text"].(string); ok && text != "" {
			return text
		}
	}
	return "Chart"
}

// Response is the /get-visualization payload.
type Response struct {
	ID     string  `json:"_id"`
	Charts []Chart `json:"charts"`
}

// Partition splits charts into pinned and recommended, keeping order.
// Charts without a boolean pinned flag appear in neither list.
func Partition(charts []Chart) (pinned, recommended []Chart) {
	for _, c := range charts {
		if c.unflagged {
			continue
		}
		if c.Pinned {
			pinned = append(pinned, c)
		} else {
			recommended = append(recommended, c)
		}
	}
	return pinned, recommended
}

// FullScreen returns the title text and a copy of the option with its
// title removed. The original option is not modified.
func FullScreen(c Chart) (string, map[string]any) {
	opt := make(map[string]any, len(c.Option))
	for k, v := range c.Option {
		if k == "title" {
			continue
		}
		opt[k] = v
	}
	return c.Title(), opt
}
