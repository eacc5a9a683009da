package resources

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/pagination"
	"github.com/bcgov/lcfs-portal/internal/query"
)

// Definition is the untyped view of a query used by handlers and the
// invalidation policy.
type Definition interface {
	Name() string
	ScopeNames() []string
	Prefix(scope ...any) pagination.Key
	Warm(api domain.HTTPClient, scope ...any) query.PrefetchRequest
}

// ListDefinition is an untyped ListQuery.
type ListDefinition interface {
	Definition
	List(ctx context.Context, c *query.Client, api domain.HTTPClient, p pagination.Partial, scope ...any) query.Result
	SaveTarget() string
	IDName() string
}

// LookupDefinition is an untyped LookupQuery.
type LookupDefinition interface {
	Definition
	Lookup(ctx context.Context, c *query.Client, api domain.HTTPClient, scope ...any) query.Result
}

func (q ListQuery[T]) Name() string         { return q.Resource }
func (q ListQuery[T]) ScopeNames() []string { return slices.Clone(q.Scopes) }
func (q ListQuery[T]) SaveTarget() string   { return q.SavePath }
func (q ListQuery[T]) IDName() string       { return q.IDField }

// List runs Query and drops the row type.
func (q ListQuery[T]) List(ctx context.Context, c *query.Client, api domain.HTTPClient, p pagination.Partial, scope ...any) query.Result {
	return q.Query(ctx, c, api, p, scope...).Untyped()
}

func (q LookupQuery[T]) Name() string         { return q.Resource }
func (q LookupQuery[T]) ScopeNames() []string { return slices.Clone(q.Scopes) }

// Prefix is the invalidation prefix for the given scope.
func (q LookupQuery[T]) Prefix(scope ...any) pagination.Key {
	return q.Key(scope...)
}

// Lookup runs Query and drops the result type.
func (q LookupQuery[T]) Lookup(ctx context.Context, c *query.Client, api domain.HTTPClient, scope ...any) query.Result {
	return q.Query(ctx, c, api, scope...).Untyped()
}

// Registry maps resource names to definitions.
type Registry struct {
	lists   map[string]ListDefinition
	lookups map[string]LookupDefinition
}

// NewRegistry returns a registry holding every portal query.
func NewRegistry() *Registry {
	r := &Registry{
		lists:   make(map[string]ListDefinition),
		lookups: make(map[string]LookupDefinition),
	}
	r.RegisterList(
		AuditLogs,
		Users,
		OrganizationUsers,
		Transactions,
		OrganizationTransactions,
		FuelCodes,
		ComplianceReports,
		OrganizationComplianceReports,
		NotionalTransfers,
		OtherUses,
		FuelSupplies,
		FuelExports,
		AllocationAgreements,
		FinalSupplyEquipments,
	)
	r.RegisterLookup(
		ReportSummary,
		NotionalTransferOptions,
		OtherUseOptions,
		FuelSupplyOptions,
		FuelExportOptions,
		AllocationAgreementOptions,
		OrganizationNames,
	)
	return r
}

// RegisterList adds or replaces list definitions.
func (r *Registry) RegisterList(defs ...ListDefinition) {
	for _, def := range defs {
		r.lists[def.Name()] = def
	}
}

// RegisterLookup adds or replaces lookup definitions.
func (r *Registry) RegisterLookup(defs ...LookupDefinition) {
	for _, def := range defs {
		r.lookups[def.Name()] = def
	}
}

// List returns the list definition called name.
func (r *Registry) List(name string) (ListDefinition, error) {
	def, ok := r.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownResource, name)
	}
	return def, nil
}

// Lookup returns the lookup definition called name.
func (r *Registry) Lookup(name string) (LookupDefinition, error) {
	def, ok := r.lookups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownResource, name)
	}
	return def, nil
}

// ScopedBy returns every definition whose first scope is scope, sorted by name.
func (r *Registry) ScopedBy(scope string) []Definition {
	var out []Definition
	for _, def := range r.lists {
		if names := def.ScopeNames(); len(names) > 0 && names[0] == scope {
			out = append(out, def)
		}
	}
	for _, def := range r.lookups {
		if names := def.ScopeNames(); len(names) > 0 && names[0] == scope {
			out = append(out, def)
		}
	}
	slices.SortFunc(out, func(a, b Definition) int {
		return cmp.Compare(a.Name(), b.Name())
	})
	return out
}

// ScopeValues picks the scope values def needs from values, in order.
// Missing names yield nil, which disables the query.
func ScopeValues(def Definition, values map[string]any) []any {
	names := def.ScopeNames()
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = values[name]
	}
	return out
}
