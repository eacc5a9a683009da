package pagination

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

func TestCacheKeyStructuralEquality(t *testing.T) {
	build := func() Partial {
		return Partial{
			Page: intPtr(2),
			Size: intPtr(10),
			SortOrders: []domain.SortOrder{
				{Field: "legalName", Direction: "asc"},
				{Field: "quantity", Direction: "desc"},
			},
			Filters: []domain.Filter{
				{Field: "fuelCategory", FilterType: "text", Type: "equals", Filter: "Diesel"},
				{Field: "quantity", FilterType: "number", Type: "greaterThan", Filter: 100},
			},
		}
	}

	a, err := ToCacheKey(build(), "notional-transfers", 42)
	require.NoError(t, err)
	b, err := ToCacheKey(build(), "notional-transfers", "42")
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())

	// filter order is not significant
	reordered := build()
	reordered.Filters[0], reordered.Filters[1] = reordered.Filters[1], reordered.Filters[0]
	c, err := ToCacheKey(reordered, "notional-transfers", 42)
	require.NoError(t, err)
	assert.Equal(t, a.String(), c.String())

	// numbers decoded from JSON compare equal to Go ints
	var decoded Partial
	raw, err := json.Marshal(build())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	d, err := ToCacheKey(decoded, "notional-transfers", 42)
	require.NoError(t, err)
	assert.Equal(t, a.String(), d.String())
}

func TestCacheKeySortOrderIsSignificant(t *testing.T) {
	p := Partial{SortOrders: []domain.SortOrder{
		{Field: "legalName", Direction: "asc"},
		{Field: "quantity", Direction: "desc"},
	}}
	a, err := ToCacheKey(p, "notional-transfers", 42)
	require.NoError(t, err)

	p.SortOrders[0], p.SortOrders[1] = p.SortOrders[1], p.SortOrders[0]
	b, err := ToCacheKey(p, "notional-transfers", 42)
	require.NoError(t, err)

	assert.NotEqual(t, a.String(), b.String())
}

func TestCacheKeyDefaultsMatchExplicit(t *testing.T) {
	a, err := ToCacheKey(Partial{}, "audit-logs")
	require.NoError(t, err)
	b, err := ToCacheKey(Partial{Page: intPtr(1), Size: intPtr(10), SortOrders: []domain.SortOrder{}}, "audit-logs")
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestCacheKeyRejectsInvalid(t *testing.T) {
	_, err := ToCacheKey(Partial{Page: intPtr(-1)}, "audit-logs")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestKeyPrefix(t *testing.T) {
	req, err := Normalize(Partial{})
	require.NoError(t, err)

	key := NewKey("notional-transfers", 42).With(req)

	assert.True(t, key.HasPrefix(NewKey("notional-transfers")))
	assert.True(t, key.HasPrefix(NewKey("notional-transfers", "42")))
	assert.True(t, key.HasPrefix(key))
	assert.False(t, key.HasPrefix(NewKey("notional-transfers", 4)))
	assert.False(t, key.HasPrefix(NewKey("notional-transfers", 420)))
	assert.False(t, key.HasPrefix(NewKey("other-uses", 42)))

	// string prefixes line up with segment prefixes
	prefix := NewKey("notional-transfers", 42).String() + domain.KeySeparator
	assert.Contains(t, key.String(), prefix)
	assert.NotContains(t, NewKey("notional-transfers", 420).With(req).String(), prefix)
}

func TestKeyResourceAndScalar(t *testing.T) {
	key := NewKey("fuel-supply-options").WithScalar("2024")
	assert.Equal(t, "fuel-supply-options", key.Resource())
	assert.Equal(t, 2, key.Len())
	assert.False(t, key.IsZero())
	assert.True(t, Key{}.IsZero())
	assert.Equal(t, "", Key{}.Resource())

	// WithScalar does not alias the receiver's segments
	base := NewKey("x", 1)
	k1 := base.WithScalar("a")
	k2 := base.WithScalar("b")
	assert.NotEqual(t, k1.String(), k2.String())
	assert.Equal(t, 2, base.Len())
}
