// Package pagination normalizes list requests and turns them into canonical
// cache keys.
package pagination

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

// Partial is a list request as received from a view. Nil fields are filled
// with defaults by Normalize; explicit values are validated as given.
type Partial struct {
	Page       *int               `json:"page,omitempty"`
	Size       *int               `json:"size,omitempty"`
	SortOrders []domain.SortOrder `json:"sortOrders,omitempty"`
	Filters    []domain.Filter    `json:"filters,omitempty"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Normalize fills in defaults for missing fields and rejects malformed
// requests with domain.ErrInvalidRequest.
func Normalize(p Partial) (domain.PaginationRequest, error) {
	req := domain.PaginationRequest{
		Page:       domain.DefaultPage,
		Size:       domain.DefaultSize,
		SortOrders: make([]domain.SortOrder, 0, len(p.SortOrders)),
		Filters:    make([]domain.Filter, 0, len(p.Filters)),
	}
	if p.Page != nil {
		req.Page = *p.Page
	}
	if p.Size != nil {
		req.Size = *p.Size
	}
	for _, so := range p.SortOrders {
		so.Direction = strings.ToLower(so.Direction)
		req.SortOrders = append(req.SortOrders, so)
	}
	req.Filters = append(req.Filters, p.Filters...)

	if err := Validate(req); err != nil {
		return domain.PaginationRequest{}, err
	}
	return req, nil
}

// Validate checks an already built request.
func Validate(req domain.PaginationRequest) error {
	if req.Page < 1 {
		return fmt.Errorf("%w: page must be at least 1, got %d", domain.ErrInvalidRequest, req.Page)
	}
	if req.Size < 1 {
		return fmt.Errorf("%w: size must be at least 1, got %d", domain.ErrInvalidRequest, req.Size)
	}
	if err := getValidator().Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidRequest, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	for i, f := range req.Filters {
		if !isScalar(f.Filter) {
			return fmt.Errorf("%w: filters[%d].filter must be a string, number or bool, got %T",
				domain.ErrInvalidRequest, i, f.Filter)
		}
	}
	return nil
}

// FromRequest converts a full request back into a Partial, e.g. to adjust
// the page of an existing request.
func FromRequest(req domain.PaginationRequest) Partial {
	page, size := req.Page, req.Size
	return Partial{
		Page:       &page,
		Size:       &size,
		SortOrders: req.SortOrders,
		Filters:    req.Filters,
	}
}

// WithPage returns a copy of req pointing at another page.
func WithPage(req domain.PaginationRequest, page int) domain.PaginationRequest {
	out := req
	out.Page = page
	out.SortOrders = append([]domain.SortOrder(nil), req.SortOrders...)
	out.Filters = append([]domain.Filter(nil), req.Filters...)
	if out.SortOrders == nil {
		out.SortOrders = []domain.SortOrder{}
	}
	if out.Filters == nil {
		out.Filters = []domain.Filter{}
	}
	return out
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	case json.Number:
		return true
	default:
		return false
	}
}
