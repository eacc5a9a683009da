// Package columns normalizes grid column definitions for flex layouts.
package columns

import "math"

const (
	// DefaultFallbackWidth is used for columns without width or minWidth.
	DefaultFallbackWidth = 100

	// DefaultRelaxedMinWidth is the floor applied by RelaxColumnMinWidths.
	DefaultRelaxedMinWidth = 50
)

// ColumnDefinition describes one grid column. Width, MinWidth and Flex are
// pointers so an unset value is distinguishable from zero.
type ColumnDefinition struct {
	Field          string         `json:"field"`
	HeaderName     string         `json:"headerName,omitempty"`
	Width          *float64       `json:"width,omitempty"`
	MinWidth       *float64       `json:"minWidth,omitempty"`
	Flex           *float64       `json:"flex,omitempty"`
	Hide           bool           `json:"hide,omitempty"`
	Pinned         string         `json:"pinned,omitempty"`
	Sortable       *bool          `json:"sortable,omitempty"`
	CellRenderer   string         `json:"cellRenderer,omitempty"`
	ValueFormatter string         `json:"valueFormatter,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// declared reports whether v carries a usable number. Zero and negative
// values count as declared; only absent and non-finite ones do not.
func declared(v *float64) bool {
	return v != nil && !math.IsInf(*v, 0) && !math.IsNaN(*v)
}

// AddFlexToColumns returns a copy of defs in which every column without a
// width or flex gets flex 1. Columns with a width keep it and lose any flex.
// The bool reports whether at least one column ends up flexible. Applying it
// twice gives the same result.
func AddFlexToColumns(defs []ColumnDefinition) ([]ColumnDefinition, bool) {
	if defs == nil {
		return nil, false
	}

	out := make([]ColumnDefinition, len(defs))
	hasFlex := false
	for i, def := range defs {
		switch {
		case declared(def.Width):
			def.Width = Float(*def.Width)
			def.Flex = nil
		case declared(def.Flex):
			def.Width = nil
			def.Flex = Float(*def.Flex)
			hasFlex = true
		default:
			def.Width = nil
			def.Flex = Float(1)
			hasFlex = true
		}
		if def.MinWidth != nil {
			def.MinWidth = Float(*def.MinWidth)
		}
		out[i] = def
	}
	return out, hasFlex
}

// ColumnMinWidthSum adds up width ?? minWidth ?? fallback for every column:
// the first present value wins, and a non-finite result counts as fallback.
// A fallback that is not a positive number is replaced by DefaultFallbackWidth.
func ColumnMinWidthSum(defs []ColumnDefinition, fallback float64) float64 {
	if !declared(&fallback) || fallback <= 0 {
		fallback = DefaultFallbackWidth
	}

	var sum float64
	for _, def := range defs {
		v := fallback
		switch {
		case def.Width != nil:
			v = *def.Width
		case def.MinWidth != nil:
			v = *def.MinWidth
		}
		if !declared(&v) {
			v = fallback
		}
		sum += v
	}
	return sum
}

// LayoutResult is the outcome of Layout.
type LayoutResult struct {
	Columns        []ColumnDefinition `json:"columns"`
	HasFlexColumns bool               `json:"hasFlexColumns"`
	MinWidthSum    float64            `json:"minWidthSum"`
	ScrollRequired bool               `json:"scrollRequired"`
	ViewportWidth  float64            `json:"viewportWidth"`
}

// Layout normalizes defs and decides whether a viewport of the given width
// needs horizontal scrolling.
func Layout(defs []ColumnDefinition, viewportWidth float64) LayoutResult {
	normalized, hasFlex := AddFlexToColumns(defs)
	sum := ColumnMinWidthSum(normalized, DefaultFallbackWidth)
	return LayoutResult{
		Columns:        normalized,
		HasFlexColumns: hasFlex,
		MinWidthSum:    sum,
		ScrollRequired: !hasFlex || sum > viewportWidth,
		ViewportWidth:  viewportWidth,
	}
}
