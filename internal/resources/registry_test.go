package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/lcfs-portal/internal/domain"
	"github.com/bcgov/lcfs-portal/internal/pagination"
)

func TestRegistryLookups(t *testing.T) {
	r := NewRegistry()

	def, err := r.List("notional-transfers")
	require.NoError(t, err)
	assert.Equal(t, []string{ScopeReport}, def.ScopeNames())
	assert.Equal(t, "/notional-transfers/save", def.SaveTarget())

	_, err = r.List("unknown")
	assert.ErrorIs(t, err, domain.ErrUnknownResource)
	_, err = r.Lookup("notional-transfers")
	assert.ErrorIs(t, err, domain.ErrUnknownResource)

	lookup, err := r.Lookup("organization-names")
	require.NoError(t, err)
	assert.Empty(t, lookup.ScopeNames())
}

func TestRegistryScopedBy(t *testing.T) {
	r := NewRegistry()

	var names []string
	for _, def := range r.ScopedBy(ScopeReport) {
		names = append(names, def.Name())
	}
	assert.Equal(t, []string{
		"allocation-agreements",
		"compliance-report-summary",
		"final-supply-equipments",
		"fuel-exports",
		"fuel-supplies",
		"notional-transfers",
		"other-uses",
	}, names)
}

func TestScopeValues(t *testing.T) {
	values := map[string]any{ScopeReport: 42, ScopeOrganization: 3}
	assert.Equal(t, []any{42}, ScopeValues(NotionalTransfers, values))
	assert.Equal(t, []any{3}, ScopeValues(OrganizationTransactions, values))
	assert.Equal(t, []any{nil}, ScopeValues(FuelSupplyOptions, values))
	assert.Empty(t, ScopeValues(AuditLogs, values))
}

func TestUntypedList(t *testing.T) {
	api := new(MockHTTPClient)
	client := newClient(t)

	api.On("Post", mock.Anything, "/audit-log/list", mock.Anything, mock.Anything).
		Run(answer(3, `{"auditLogs": [{"auditLogId": 1, "tableName": "fuel_code"}], "pagination": {"page": 1, "size": 10, "total": 1}}`)).
		Return(nil)

	def, err := NewRegistry().List("audit-logs")
	require.NoError(t, err)

	res := def.List(context.Background(), client, api, pagination.Partial{})
	require.NoError(t, res.Err)
	page, ok := res.Data.(domain.Page[domain.AuditLog])
	require.True(t, ok)
	assert.Equal(t, "fuel_code", page.Rows[0].TableName)

	res = def.List(context.Background(), client, api, pagination.Partial{Size: intPtr(-1)})
	assert.ErrorIs(t, res.Err, domain.ErrInvalidRequest)
	assert.Nil(t, res.Data)
}
