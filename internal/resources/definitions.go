package resources

import (
	"time"

	"github.com/bcgov/lcfs-portal/internal/domain"
)

const optionsStaleTime = 10 * time.Minute

// Organization-wide and government lists.
var (
	AuditLogs = ListQuery[domain.AuditLog]{
		Resource: "audit-logs",
		Path:     "/audit-log/list",
		Envelope: "auditLogs",
	}
	Users = ListQuery[domain.User]{
		Resource: "users",
		Path:     "/users/list",
		Envelope: "users",
	}
	OrganizationUsers = ListQuery[domain.User]{
		Resource: "organization-users",
		Path:     "/organization/{organizationId}/users/list",
		Envelope: "users",
		Scopes:   []string{ScopeOrganization},
	}
	Transactions = ListQuery[domain.Transaction]{
		Resource: "transactions",
		Path:     "/transactions/",
		Envelope: "transactions",
	}
	OrganizationTransactions = ListQuery[domain.Transaction]{
		Resource: "organization-transactions",
		Path:     "/organization/{organizationId}/transactions",
		Envelope: "transactions",
		Scopes:   []string{ScopeOrganization},
	}
	FuelCodes = ListQuery[domain.FuelCode]{
		Resource: "fuel-codes",
		Path:     "/fuel-codes/list",
		Envelope: "fuelCodes",
	}
	ComplianceReports = ListQuery[domain.ReportBase]{
		Resource: "compliance-reports",
		Path:     "/reports/list",
		Envelope: "reports",
	}
	OrganizationComplianceReports = ListQuery[domain.ReportBase]{
		Resource: "organization-compliance-reports",
		Path:     "/organization/{organizationId}/reports/list",
		Envelope: "reports",
		Scopes:   []string{ScopeOrganization},
	}
)

// Schedules of a compliance report. The report id travels in the body.
var (
	NotionalTransfers = ListQuery[domain.NotionalTransfer]{
		Resource: "notional-transfers",
		Path:     "/notional-transfers/list",
		Envelope: "notionalTransfers",
		Scopes:   []string{ScopeReport},
		SavePath: "/notional-transfers/save",
		IDField:  "notionalTransferId",
	}
	OtherUses = ListQuery[domain.OtherUse]{
		Resource: "other-uses",
		Path:     "/other-uses/list",
		Envelope: "otherUses",
		Scopes:   []string{ScopeReport},
		SavePath: "/other-uses/save",
		IDField:  "otherUsesId",
	}
	FuelSupplies = ListQuery[domain.FuelSupply]{
		Resource: "fuel-supplies",
		Path:     "/fuel-supply/list",
		Envelope: "fuelSupplies",
		Scopes:   []string{ScopeReport},
		SavePath: "/fuel-supply/save",
		IDField:  "fuelSupplyId",
	}
	FuelExports = ListQuery[domain.FuelExport]{
		Resource: "fuel-exports",
		Path:     "/fuel-exports/list",
		Envelope: "fuelExports",
		Scopes:   []string{ScopeReport},
		SavePath: "/fuel-exports/save",
		IDField:  "fuelExportId",
	}
	AllocationAgreements = ListQuery[domain.AllocationAgreement]{
		Resource: "allocation-agreements",
		Path:     "/allocation-agreement/list",
		Envelope: "allocationAgreements",
		Scopes:   []string{ScopeReport},
		SavePath: "/allocation-agreement/save",
		IDField:  "allocationAgreementId",
	}
	FinalSupplyEquipments = ListQuery[domain.FinalSupplyEquipment]{
		Resource: "final-supply-equipments",
		Path:     "/final-supply-equipments/list",
		Envelope: "finalSupplyEquipments",
		Scopes:   []string{ScopeReport},
		SavePath: "/final-supply-equipments/save",
		IDField:  "finalSupplyEquipmentId",
	}
)

// Lookups.
var (
	ComplianceReport = LookupQuery[domain.ComplianceReport]{
		Resource: "compliance-report",
		Path:     "/reports/{complianceReportId}",
		Scopes:   []string{ScopeReport},
	}
	ReportSummary = LookupQuery[domain.ReportSummary]{
		Resource: "compliance-report-summary",
		Path:     "/reports/{complianceReportId}/summary",
		Scopes:   []string{ScopeReport},
	}
	NotionalTransferOptions = LookupQuery[domain.TableOptions]{
		Resource:  "notional-transfer-options",
		Path:      "/notional-transfers/table-options",
		Scopes:    []string{ScopeCompliancePeriod},
		StaleTime: optionsStaleTime,
	}
	OtherUseOptions = LookupQuery[domain.TableOptions]{
		Resource:  "other-use-options",
		Path:      "/other-uses/table-options",
		Scopes:    []string{ScopeCompliancePeriod},
		StaleTime: optionsStaleTime,
	}
	FuelSupplyOptions = LookupQuery[domain.TableOptions]{
		Resource:  "fuel-supply-options",
		Path:      "/fuel-supply/table-options",
		Scopes:    []string{ScopeCompliancePeriod},
		StaleTime: optionsStaleTime,
	}
	FuelExportOptions = LookupQuery[domain.TableOptions]{
		Resource:  "fuel-export-options",
		Path:      "/fuel-exports/table-options",
		Scopes:    []string{ScopeCompliancePeriod},
		StaleTime: optionsStaleTime,
	}
	AllocationAgreementOptions = LookupQuery[domain.TableOptions]{
		Resource:  "allocation-agreement-options",
		Path:      "/allocation-agreement/table-options",
		Scopes:    []string{ScopeCompliancePeriod},
		StaleTime: optionsStaleTime,
	}
	OrganizationNames = LookupQuery[[]domain.OrganizationName]{
		Resource:  "organization-names",
		Path:      "/organizations/names/",
		StaleTime: optionsStaleTime,
	}
)
