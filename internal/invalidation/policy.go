// Package invalidation decides which cached queries a mutation makes stale.
package invalidation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcgov/lcfs-portal/internal/pagination"
	"github.com/bcgov/lcfs-portal/internal/query"
	"github.com/bcgov/lcfs-portal/internal/resources"
)

// Action is the kind of mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceReport names mutations of the compliance report itself.
const ResourceReport = "compliance-report"

// Event describes a settled mutation.
type Event struct {
	Resource       string
	Action         Action
	ReportID       int
	OrganizationID int
	EntityID       int
}

// Invalidator marks cached queries stale by key prefix.
type Invalidator interface {
	Invalidate(prefix pagination.Key) int
}

// ReportRemover drops a report from the working cache.
type ReportRemover interface {
	RemoveReport(id int)
}

// Rule lists the resources that depend on a mutated resource. Report-scoped
// dependents are invalidated under the event's report id; Global ones as a
// whole.
type Rule struct {
	Global       []string
	ReportScoped []string
}

// lineItemRule applies to every schedule of a report.
var lineItemRule = Rule{
	Global:       []string{resources.ComplianceReports.Resource, resources.OrganizationComplianceReports.Resource},
	ReportScoped: []string{resources.ReportSummary.Resource, resources.ComplianceReport.Resource},
}

// DefaultRules is the dependency table of the portal.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		resources.NotionalTransfers.Resource:     lineItemRule,
		resources.OtherUses.Resource:             lineItemRule,
		resources.FuelSupplies.Resource:          lineItemRule,
		resources.FuelExports.Resource:           lineItemRule,
		resources.AllocationAgreements.Resource:  lineItemRule,
		resources.FinalSupplyEquipments.Resource: lineItemRule,
		resources.Users.Resource: {
			Global: []string{resources.OrganizationUsers.Resource, resources.AuditLogs.Resource},
		},
		resources.Transactions.Resource: {
			Global: []string{resources.OrganizationTransactions.Resource, resources.AuditLogs.Resource},
		},
		resources.FuelCodes.Resource: {
			Global: []string{resources.AuditLogs.Resource},
		},
	}
}

// Policy applies invalidation after mutations. It never fails: anything that
// goes wrong is logged and the affected entries are assumed stale.
type Policy struct {
	queries  Invalidator
	reports  ReportRemover
	registry *resources.Registry
	rules    map[string]Rule
	logger   *zap.Logger
}

// NewPolicy creates a policy with DefaultRules. reports may be nil.
func NewPolicy(queries Invalidator, reports ReportRemover, registry *resources.Registry, logger *zap.Logger) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = resources.NewRegistry()
	}
	return &Policy{
		queries:  queries,
		reports:  reports,
		registry: registry,
		rules:    DefaultRules(),
		logger:   logger,
	}
}

// Prefixes returns every key prefix ev invalidates.
func (p *Policy) Prefixes(ev Event) []pagination.Key {
	var out []pagination.Key

	if ev.Resource == ResourceReport {
		out = append(out,
			pagination.NewKey(resources.ComplianceReports.Resource),
			pagination.NewKey(resources.OrganizationComplianceReports.Resource),
		)
		if ev.ReportID != 0 {
			out = append(out, pagination.NewKey(ResourceReport, ev.ReportID))
			for _, def := range p.registry.ScopedBy(resources.ScopeReport) {
				out = append(out, def.Prefix(ev.ReportID))
			}
		}
		return out
	}

	out = append(out, p.ownPrefix(ev))

	rule := p.rules[ev.Resource]
	for _, res := range rule.Global {
		out = append(out, pagination.NewKey(res))
	}
	if ev.ReportID != 0 {
		for _, res := range rule.ReportScoped {
			out = append(out, pagination.NewKey(res, ev.ReportID))
		}
	}
	return out
}

// ownPrefix scopes the mutated resource by whatever id it is keyed on.
func (p *Policy) ownPrefix(ev Event) pagination.Key {
	def, err := p.registry.List(ev.Resource)
	if err != nil {
		return pagination.NewKey(ev.Resource)
	}
	scope := resources.ScopeValues(def, map[string]any{
		resources.ScopeReport:       nonZero(ev.ReportID),
		resources.ScopeOrganization: nonZero(ev.OrganizationID),
	})
	for i, v := range scope {
		if v == nil {
			// unknown scope, widen to everything above it
			scope = scope[:i]
			break
		}
	}
	return def.Prefix(scope...)
}

func nonZero(id int) any {
	if id == 0 {
		return nil
	}
	return id
}

// Apply invalidates every dependent query of ev and then drops the working
// report for report-scoped events. Queries go first so a read racing the
// removal cannot refill the working report from a still-fresh cache entry.
// A failing step is logged and the remaining steps still run.
func (p *Policy) Apply(ctx context.Context, ev Event) {
	total := 0
	for _, prefix := range p.Prefixes(ev) {
		n := p.invalidate(ev, prefix)
		if n == 0 {
			p.logger.Debug("invalidation miss",
				zap.String("prefix", prefix.Resource()),
				zap.Int("segments", prefix.Len()),
			)
		}
		total += n
	}

	if ev.ReportID != 0 && p.reports != nil {
		p.removeReport(ev)
	}

	p.logger.Debug("mutation settled",
		zap.String("resource", ev.Resource),
		zap.String("action", string(ev.Action)),
		zap.Int("report_id", ev.ReportID),
		zap.Int("invalidated", total),
	)
}

func (p *Policy) invalidate(ev Event, prefix pagination.Key) (n int) {
	defer p.recoverStep(ev, prefix.Resource())
	return p.queries.Invalidate(prefix)
}

func (p *Policy) removeReport(ev Event) {
	defer p.recoverStep(ev, "working report")
	p.reports.RemoveReport(ev.ReportID)
}

func (p *Policy) recoverStep(ev Event, step string) {
	if r := recover(); r != nil {
		p.logger.Warn("invalidation failed, entries assumed stale",
			zap.String("resource", ev.Resource),
			zap.String("action", string(ev.Action)),
			zap.String("step", step),
			zap.String("panic", fmt.Sprint(r)),
		)
	}
}

// OnSettled returns a mutation callback applying the event built by toEvent.
// It runs after failed mutations too.
func OnSettled[In, Out any](p *Policy, toEvent func(in In, out Out) Event) query.SettledFunc[In, Out] {
	return func(ctx context.Context, in In, out Out, err error) {
		ev := toEvent(in, out)
		if err != nil {
			p.logger.Debug("mutation failed, invalidating anyway",
				zap.String("resource", ev.Resource),
				zap.Error(err),
			)
		}
		p.Apply(ctx, ev)
	}
}
