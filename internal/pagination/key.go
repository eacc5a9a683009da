package pagination

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

// Key is a canonical cache key: resource tag, scope ids, serialized request
// and any extra discriminators, in that order. Two keys built from
// structurally equal inputs have equal String values.
type Key struct {
	segments []string
}

// NewKey starts a key for resource scoped by the given ids. Scope ids are
// compared by their printed form, so 42 and "42" address the same entries.
func NewKey(resource string, scope ...any) Key {
	k := Key{segments: make([]string, 0, len(scope)+2)}
	k.segments = append(k.segments, quote(resource))
	for _, id := range scope {
		k.segments = append(k.segments, quote(fmt.Sprint(id)))
	}
	return k
}

// With appends the canonical form of req.
func (k Key) With(req domain.PaginationRequest) Key {
	return k.append(canonicalRequest(req))
}

// WithScalar appends an extra discriminator such as a compliance period.
func (k Key) WithScalar(v any) Key {
	return k.append(quote(fmt.Sprint(v)))
}

func (k Key) append(seg string) Key {
	segs := make([]string, len(k.segments), len(k.segments)+1)
	copy(segs, k.segments)
	return Key{segments: append(segs, seg)}
}

// String is the map key used by the cache.
func (k Key) String() string {
	return strings.Join(k.segments, domain.KeySeparator)
}

// Len is the number of segments.
func (k Key) Len() int {
	return len(k.segments)
}

// IsZero reports whether the key has no segments.
func (k Key) IsZero() bool {
	return len(k.segments) == 0
}

// Resource returns the resource tag of the key.
func (k Key) Resource() string {
	if len(k.segments) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(k.segments[0]), &s); err != nil {
		return k.segments[0]
	}
	return s
}

// HasPrefix reports whether the leading segments of k equal prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segments) > len(k.segments) {
		return false
	}
	for i, seg := range prefix.segments {
		if k.segments[i] != seg {
			return false
		}
	}
	return true
}

// ToCacheKey normalizes p and returns the key for resource and scope.
func ToCacheKey(p Partial, resource string, scope ...any) (Key, error) {
	req, err := Normalize(p)
	if err != nil {
		return Key{}, err
	}
	return NewKey(resource, scope...).With(req), nil
}

// wireRequest fixes the field order of the serialized request.
type wireRequest struct {
	Page       int                `json:"page"`
	Size       int                `json:"size"`
	SortOrders []domain.SortOrder `json:"sortOrders"`
	Filters    []domain.Filter    `json:"filters"`
}

func canonicalRequest(req domain.PaginationRequest) string {
	w := wireRequest{
		Page:       req.Page,
		Size:       req.Size,
		SortOrders: append([]domain.SortOrder{}, req.SortOrders...),
		Filters:    CanonicalFilters(req.Filters),
	}
	b, err := json.Marshal(w)
	if err != nil {
		// only reachable with a non-scalar filter value, which Validate rejects
		return quote(fmt.Sprintf("%#v", w))
	}
	return string(b)
}

// CanonicalFilters returns a sorted copy of filters. Filter order carries no
// meaning, so the key must not depend on it.
func CanonicalFilters(filters []domain.Filter) []domain.Filter {
	out := append([]domain.Filter{}, filters...)
	slices.SortStableFunc(out, func(a, b domain.Filter) int {
		return cmp.Or(
			cmp.Compare(a.Field, b.Field),
			cmp.Compare(a.FilterType, b.FilterType),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(filterValue(a.Filter), filterValue(b.Filter)),
		)
	})
	return out
}

func filterValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
