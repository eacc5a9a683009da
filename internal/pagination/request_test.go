package pagination

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestNormalizeDefaults(t *testing.T) {
	req, err := Normalize(Partial{})
	require.NoError(t, err)

	want := domain.PaginationRequest{
		Page:       1,
		Size:       10,
		SortOrders: []domain.SortOrder{},
		Filters:    []domain.Filter{},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":1,"size":10,"sortOrders":[],"filters":[]}`, string(b))
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	req, err := Normalize(Partial{
		Page:       intPtr(3),
		Size:       intPtr(25),
		SortOrders: []domain.SortOrder{{Field: "quantity", Direction: "DESC"}},
		Filters:    []domain.Filter{{Field: "legalName", FilterType: "text", Type: "contains", Filter: "acme"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 25, req.Size)
	assert.Equal(t, domain.SortDesc, req.SortOrders[0].Direction)
	assert.Len(t, req.Filters, 1)
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		partial Partial
	}{
		{name: "zero page", partial: Partial{Page: intPtr(0)}},
		{name: "negative page", partial: Partial{Page: intPtr(-1)}},
		{name: "zero size", partial: Partial{Size: intPtr(0)}},
		{name: "negative size", partial: Partial{Size: intPtr(-10)}},
		{name: "bad direction", partial: Partial{SortOrders: []domain.SortOrder{{Field: "a", Direction: "up"}}}},
		{name: "empty sort field", partial: Partial{SortOrders: []domain.SortOrder{{Direction: "asc"}}}},
		{name: "empty filter field", partial: Partial{Filters: []domain.Filter{{FilterType: "text", Filter: "x"}}}},
		{name: "missing filter type", partial: Partial{Filters: []domain.Filter{{Field: "a", Filter: "x"}}}},
		{name: "object filter value", partial: Partial{Filters: []domain.Filter{{Field: "a", FilterType: "text", Filter: map[string]any{"x": 1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.partial)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}
}

func TestWithPageCopies(t *testing.T) {
	req, err := Normalize(Partial{Filters: []domain.Filter{{Field: "a", FilterType: "text", Filter: "x"}}})
	require.NoError(t, err)

	next := WithPage(req, 2)
	next.Filters[0].Filter = "changed"

	assert.Equal(t, 1, req.Page)
	assert.Equal(t, 2, next.Page)
	assert.Equal(t, "x", req.Filters[0].Filter)
}
