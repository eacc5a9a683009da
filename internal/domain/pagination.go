package domain

// Sort directions accepted by the API.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Pagination defaults applied when a request omits them.
const (
	DefaultPage = 1
	DefaultSize = 10
)

// SortOrder is one entry of a multi-column sort. Primary sort comes first.
type SortOrder struct {
	Field     string `json:"field" validate:"required"`
	Direction string `json:"direction" validate:"required,oneof=asc desc"`
}

// Filter is one column filter as produced by the grid filter model.
// Filter holds a string, a number or a bool; Type is the optional condition
// (e.g. "contains", "equals", "inRange").
type Filter struct {
	Field      string `json:"field" validate:"required"`
	FilterType string `json:"filterType" validate:"required"`
	Type       string `json:"type,omitempty"`
	Filter     any    `json:"filter"`
}

// PaginationRequest is the body POSTed for every paged, sorted and filtered list.
// A normalized request always has Page and Size set and non-nil slices.
type PaginationRequest struct {
	Page       int         `json:"page" validate:"min=1"`
	Size       int         `json:"size" validate:"min=1"`
	SortOrders []SortOrder `json:"sortOrders" validate:"dive"`
	Filters    []Filter    `json:"filters" validate:"dive"`
}

// Pagination is the paging block of a list response.
type Pagination struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages,omitempty"`
}

// Page is one decoded page of rows.
type Page[T any] struct {
	Rows       []T        `json:"rows"`
	Pagination Pagination `json:"pagination"`
}
