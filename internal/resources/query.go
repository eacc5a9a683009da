// Package resources defines the remote list and lookup queries of the portal.
// Every list query has the same shape so caching and invalidation are uniform.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/pagination"
	"github.com/bcgov/lcfs-portal/internal/query"
)

// Common scope names.
const (
	ScopeReport           = "complianceReportId"
	ScopeOrganization     = "organizationId"
	ScopeCompliancePeriod = "compliancePeriod"
)

// ListQuery is a paginated POST query. Path may contain {scope} placeholders;
// scopes not used by the path are sent in the request body. Rows are read
// from the Envelope field of the answer.
type ListQuery[T any] struct {
	Resource  string
	Path      string
	Envelope  string
	Scopes    []string
	SavePath  string
	IDField   string
	StaleTime time.Duration
}

// Prefix is the invalidation prefix for the given scope.
func (q ListQuery[T]) Prefix(scope ...any) pagination.Key {
	return pagination.NewKey(q.Resource, scope...)
}

// Key returns the cache key of one page.
func (q ListQuery[T]) Key(req domain.PaginationRequest, scope ...any) pagination.Key {
	return q.Prefix(scope...).With(req)
}

// Fetch returns the network call for one page.
func (q ListQuery[T]) Fetch(api domain.HTTPClient, req domain.PaginationRequest, scope ...any) func(context.Context) (domain.Page[T], error) {
	return func(ctx context.Context) (domain.Page[T], error) {
		path, rest := expandPath(q.Path, q.Scopes, scope)

		body := map[string]any{
			"page":       req.Page,
			"size":       req.Size,
			"sortOrders": req.SortOrders,
			"filters":    pagination.CanonicalFilters(req.Filters),
		}
		for name, v := range rest {
			body[name] = v
		}

		var raw map[string]json.RawMessage
		if err := api.Post(ctx, path, body, &raw); err != nil {
			return domain.Page[T]{}, err
		}
		return decodePage[T](raw, q.Envelope)
	}
}

// Query returns one page, from cache when fresh. Malformed requests fail with
// domain.ErrInvalidRequest before any network call; a missing scope disables
// the query.
func (q ListQuery[T]) Query(ctx context.Context, c *query.Client, api domain.HTTPClient, p pagination.Partial, scope ...any) query.TypedResult[domain.Page[T]] {
	if !scopeReady(q.Scopes, scope) {
		return query.TypedResult[domain.Page[T]]{Disabled: true}
	}
	req, err := pagination.Normalize(p)
	if err != nil {
		return query.TypedResult[domain.Page[T]]{Err: err}
	}
	return query.Get(ctx, c, q.Key(req, scope...), q.Fetch(api, req, scope...), query.Options{StaleTime: q.StaleTime})
}

// Warm returns a prefetch request for the first page with default sorting.
func (q ListQuery[T]) Warm(api domain.HTTPClient, scope ...any) query.PrefetchRequest {
	req, _ := pagination.Normalize(pagination.Partial{})
	fetch := q.Fetch(api, req, scope...)
	return query.PrefetchRequest{
		Key: q.Key(req, scope...),
		Fetch: func(ctx context.Context) (any, error) {
			return fetch(ctx)
		},
		Options: query.Options{StaleTime: q.StaleTime},
	}
}

// LookupQuery is an unparameterized GET, e.g. table options or a summary.
// Scopes not used by the path are sent as query parameters.
type LookupQuery[T any] struct {
	Resource  string
	Path      string
	Scopes    []string
	StaleTime time.Duration
}

// Key returns the cache key for scope.
func (q LookupQuery[T]) Key(scope ...any) pagination.Key {
	return pagination.NewKey(q.Resource, scope...)
}

// Fetch returns the network call.
func (q LookupQuery[T]) Fetch(api domain.HTTPClient, scope ...any) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		path, rest := expandPath(q.Path, q.Scopes, scope)

		var params url.Values
		if len(rest) > 0 {
			params = url.Values{}
			for name, v := range rest {
				params.Set(name, fmt.Sprint(v))
			}
		}

		var out T
		if err := api.Get(ctx, path, params, &out); err != nil {
			var zero T
			return zero, err
		}
		return out, nil
	}
}

// Query returns the lookup, from cache when fresh.
func (q LookupQuery[T]) Query(ctx context.Context, c *query.Client, api domain.HTTPClient, scope ...any) query.TypedResult[T] {
	if !scopeReady(q.Scopes, scope) {
		return query.TypedResult[T]{Disabled: true}
	}
	return query.Get(ctx, c, q.Key(scope...), q.Fetch(api, scope...), query.Options{StaleTime: q.StaleTime})
}

// Warm returns a prefetch request for scope.
func (q LookupQuery[T]) Warm(api domain.HTTPClient, scope ...any) query.PrefetchRequest {
	fetch := q.Fetch(api, scope...)
	return query.PrefetchRequest{
		Key: q.Key(scope...),
		Fetch: func(ctx context.Context) (any, error) {
			return fetch(ctx)
		},
		Options: query.Options{StaleTime: q.StaleTime},
	}
}

// scopeReady reports whether every declared scope has a non-empty value.
func scopeReady(names []string, scope []any) bool {
	if len(scope) < len(names) {
		return false
	}
	for _, v := range scope[:len(names)] {
		if isEmpty(v) {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}

// expandPath substitutes {name} placeholders and returns the scopes the
// path did not consume.
func expandPath(path string, names []string, scope []any) (string, map[string]any) {
	rest := make(map[string]any)
	for i, name := range names {
		if i >= len(scope) {
			break
		}
		v := scope[i]
		placeholder := "{" + name + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(fmt.Sprint(v)))
			continue
		}
		rest[name] = v
	}
	return path, rest
}

func decodePage[T any](raw map[string]json.RawMessage, envelope string) (domain.Page[T], error) {
	page := domain.Page[T]{Rows: []T{}}

	if data, ok := raw[envelope]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &page.Rows); err != nil {
			return domain.Page[T]{}, fmt.Errorf("decode %s rows: %w", envelope, err)
		}
	}
	if data, ok := raw["pagination"]; ok && string(data) != "null" {
		if err := json.Unmarshal(data, &page.Pagination); err != nil {
			return domain.Page[T]{}, fmt.Errorf("decode pagination: %w", err)
		}
	}
	return page, nil
}
