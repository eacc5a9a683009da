package columns

import "sync"

// GridAPI reads and installs column definitions.
type GridAPI interface {
	ColumnDefs() []ColumnDefinition
	SetColumnDefs(defs []ColumnDefinition)
}

// ColumnStateAPI reads and applies per-column runtime state.
type ColumnStateAPI interface {
	ColumnState() []ColumnState
	ApplyColumnState(state []ColumnState, applyOrder bool)
}

// ColumnState is the runtime state of a column, keyed by ColID.
type ColumnState struct {
	ColID     string   `json:"colId"`
	Hide      bool     `json:"hide,omitempty"`
	Sort      string   `json:"sort,omitempty"`
	SortIndex *int     `json:"sortIndex,omitempty"`
	Pinned    string   `json:"pinned,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	Flex      *float64 `json:"flex,omitempty"`
}

// RelaxColumnMinWidths lowers every column's minWidth to minWidth while
// keeping the user's column order, sort, widths and visibility. Installing new
// definitions resets state, so state is captured first and reapplied after.
func RelaxColumnMinWidths(grid GridAPI, state ColumnStateAPI, minWidth float64) {
	if grid == nil || state == nil {
		return
	}
	defs := grid.ColumnDefs()
	if len(defs) == 0 {
		return
	}
	if !declared(&minWidth) || minWidth <= 0 {
		minWidth = DefaultRelaxedMinWidth
	}

	captured := state.ColumnState()

	relaxed := make([]ColumnDefinition, len(defs))
	for i, def := range defs {
		def.MinWidth = Float(minWidth)
		relaxed[i] = def
	}
	grid.SetColumnDefs(relaxed)
	state.ApplyColumnState(captured, true)
}

// Grid is an in-memory grid holding definitions and state. It implements
// GridAPI and ColumnStateAPI.
type Grid struct {
	mu    sync.Mutex
	defs  []ColumnDefinition
	state []ColumnState
}

// NewGrid creates a grid with defs installed.
func NewGrid(defs []ColumnDefinition) *Grid {
	g := &Grid{}
	g.SetColumnDefs(defs)
	return g
}

// ColumnDefs returns a copy of the installed definitions.
func (g *Grid) ColumnDefs() []ColumnDefinition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ColumnDefinition(nil), g.defs...)
}

// SetColumnDefs installs defs and resets column state to definition order.
func (g *Grid) SetColumnDefs(defs []ColumnDefinition) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.defs = append([]ColumnDefinition(nil), defs...)
	g.state = make([]ColumnState, len(defs))
	for i, def := range defs {
		g.state[i] = ColumnState{ColID: def.Field, Hide: def.Hide, Pinned: def.Pinned, Width: def.Width, Flex: def.Flex}
	}
}

// ColumnState returns a copy of the current state in display order.
func (g *Grid) ColumnState() []ColumnState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ColumnState(nil), g.state...)
}

// ApplyColumnState merges state by ColID. With applyOrder the listed columns
// move to the front in the given order; unknown ids are ignored.
func (g *Grid) ApplyColumnState(state []ColumnState, applyOrder bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	index := make(map[string]int, len(g.state))
	for i, s := range g.state {
		index[s.ColID] = i
	}

	for _, s := range state {
		if i, ok := index[s.ColID]; ok {
			g.state[i] = s
		}
	}
	if !applyOrder {
		return
	}

	ordered := make([]ColumnState, 0, len(g.state))
	used := make(map[string]bool, len(g.state))
	for _, s := range state {
		i, ok := index[s.ColID]
		if !ok || used[s.ColID] {
			continue
		}
		ordered = append(ordered, g.state[i])
		used[s.ColID] = true
	}
	for _, s := range g.state {
		if !used[s.ColID] {
			ordered = append(ordered, s)
		}
	}
	g.state = ordered
}

// DisplayOrder returns the column ids in display order.
func (g *Grid) DisplayOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.state))
	for i, s := range g.state {
		ids[i] = s.ColID
	}
	return ids
}

var (
	_ GridAPI        = (*Grid)(nil)
	_ ColumnStateAPI = (*Grid)(nil)
)
