package render

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/evyataryagoni/iptracker/internal/lookup"
	"github.com/evyataryagoni/iptracker/internal/view"
)

// Placeholder is shown for any field the backend did not return
const Placeholder = "N/A"

// Field is one labelled line of the result panel
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Fields projects a result into its display fields
// Labels are always present and in a fixed order, even for a nil result
func Fields(r *lookup.Result) []Field {
	if r == nil {
		r = &lookup.Result{}
	}
	return []Field{
		{Label: "IP", Value: orPlaceholder(r.IP)},
		{Label: "City", Value: orPlaceholder(r.City)},
		{Label: "Region", Value: orPlaceholder(r.Region)},
		{Label: "Country", Value: orPlaceholder(r.Country)},
		{Label: "Organization", Value: orPlaceholder(r.Org)},
		{Label: "Timezone", Value: orPlaceholder(r.Timezone)},
		{Label: "Latitude", Value: formatCoordinate(r.Latitude)},
		{Label: "Longitude", Value: formatCoordinate(r.Longitude)},
	}
}

// Text writes fields as an aligned two-column table
func Text(w io.Writer, fields []Field) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range fields {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", f.Label, f.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}

// formatCoordinate uses the shortest representation that parses back to v
func formatCoordinate(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// Results keeps the fields for the current view state
type Results struct {
	mu     sync.RWMutex
	fields []Field
}

// Apply is a view.Listener: Success sets the fields, anything else clears them
func (r *Results) Apply(s view.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Kind == view.Success {
		r.fields = Fields(s.Result)
	} else {
		r.fields = nil
	}
	return nil
}

// Fields returns the current fields, nil when nothing is displayed
func (r *Results) Fields() []Field {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fields
}
