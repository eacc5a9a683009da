package domain

import "time"

// ComplianceReport is the full server representation of a report, including
// its computed summary and history.
type ComplianceReport struct {
	ComplianceReportID    int                  `json:"complianceReportId"`
	ComplianceReportGroup string               `json:"complianceReportGroupUuid,omitempty"`
	Version               int                  `json:"version"`
	OrganizationID        int                  `json:"organizationId"`
	CompliancePeriod      string               `json:"compliancePeriod"`
	ReportingFrequency    string               `json:"reportingFrequency,omitempty"`
	Status                string               `json:"currentStatus"`
	Nickname              string               `json:"nickname,omitempty"`
	Supplemental          bool                 `json:"isSupplemental,omitempty"`
	Summary               *ReportSummary       `json:"summary,omitempty"`
	History               []ReportHistoryEntry `json:"history,omitempty"`
	UpdateDate            time.Time            `json:"updateDate"`
	Extra                 map[string]any       `json:"extra,omitempty"`
}

// ReportSummary is the server-derived aggregate of a report. It is never
// patched on the client.
type ReportSummary struct {
	SummaryID            int           `json:"summaryId"`
	IsLocked             bool          `json:"isLocked"`
	RenewableFuelTarget  []SummaryLine `json:"renewableFuelTargetSummary"`
	LowCarbonFuelTarget  []SummaryLine `json:"lowCarbonFuelTargetSummary"`
	NonCompliancePenalty []SummaryLine `json:"nonCompliancePenaltySummary"`
	CanSign              bool          `json:"canSign"`
}

// SummaryLine is one row of a summary table.
type SummaryLine struct {
	Line        string   `json:"line"`
	Description string   `json:"description"`
	Field       string   `json:"field"`
	Value       *float64 `json:"value,omitempty"`
	Gasoline    *float64 `json:"gasoline,omitempty"`
	Diesel      *float64 `json:"diesel,omitempty"`
	JetFuel     *float64 `json:"jetFuel,omitempty"`
	TotalValue  *float64 `json:"totalValue,omitempty"`
}

// ReportHistoryEntry records a status change.
type ReportHistoryEntry struct {
	Status      string    `json:"status"`
	DisplayName string    `json:"displayName"`
	CreateDate  time.Time `json:"createDate"`
}

// ReportBase is the row shape of report lists.
type ReportBase struct {
	ComplianceReportID int       `json:"complianceReportId"`
	OrganizationID     int       `json:"organizationId"`
	OrganizationName   string    `json:"organizationName"`
	CompliancePeriod   string    `json:"compliancePeriod"`
	ReportType         string    `json:"reportType"`
	Status             string    `json:"reportStatus"`
	UpdateDate         time.Time `json:"updateDate"`
}

// NotionalTransfer is a notional transfer schedule line.
type NotionalTransfer struct {
	NotionalTransferID    int     `json:"notionalTransferId,omitempty"`
	ComplianceReportID    int     `json:"complianceReportId"`
	LegalName             string  `json:"legalName"`
	AddressForService     string  `json:"addressForService"`
	FuelCategory          string  `json:"fuelCategory"`
	ReceivedOrTransferred string  `json:"receivedOrTransferred"`
	Quantity              float64 `json:"quantity"`
	GroupUUID             string  `json:"groupUuid,omitempty"`
	Version               int     `json:"version,omitempty"`
	ActionType            string  `json:"actionType,omitempty"`
	Deleted               bool    `json:"deleted,omitempty"`
}

// OtherUse is a fuels-used-for-other-purposes schedule line.
type OtherUse struct {
	OtherUsesID        int     `json:"otherUsesId,omitempty"`
	ComplianceReportID int     `json:"complianceReportId"`
	FuelType           string  `json:"fuelType"`
	FuelCategory       string  `json:"fuelCategory"`
	ProvisionOfTheAct  string  `json:"provisionOfTheAct"`
	QuantitySupplied   float64 `json:"quantitySupplied"`
	Units              string  `json:"units"`
	ExpectedUse        string  `json:"expectedUse"`
	Rationale          string  `json:"rationale,omitempty"`
	Deleted            bool    `json:"deleted,omitempty"`
}

// FuelSupply is a supply of fuel schedule line.
type FuelSupply struct {
	FuelSupplyID       int      `json:"fuelSupplyId,omitempty"`
	ComplianceReportID int      `json:"complianceReportId"`
	FuelType           string   `json:"fuelType"`
	FuelCategory       string   `json:"fuelCategory"`
	EndUseType         string   `json:"endUseType,omitempty"`
	ProvisionOfTheAct  string   `json:"provisionOfTheAct"`
	FuelCode           string   `json:"fuelCode,omitempty"`
	Quantity           float64  `json:"quantity"`
	Units              string   `json:"units"`
	CIOfFuel           *float64 `json:"ciOfFuel,omitempty"`
	ComplianceUnits    *float64 `json:"complianceUnits,omitempty"`
	Deleted            bool     `json:"deleted,omitempty"`
}

// FuelExport is an export of fuel schedule line.
type FuelExport struct {
	FuelExportID       int      `json:"fuelExportId,omitempty"`
	ComplianceReportID int      `json:"complianceReportId"`
	FuelType           string   `json:"fuelType"`
	FuelCategory       string   `json:"fuelCategory"`
	ExportDate         string   `json:"exportDate"`
	Quantity           float64  `json:"quantity"`
	Units              string   `json:"units"`
	ComplianceUnits    *float64 `json:"complianceUnits,omitempty"`
	Deleted            bool     `json:"deleted,omitempty"`
}

// AllocationAgreement is an allocation agreement schedule line.
type AllocationAgreement struct {
	AllocationAgreementID int     `json:"allocationAgreementId,omitempty"`
	ComplianceReportID    int     `json:"complianceReportId"`
	AllocationTransaction string  `json:"allocationTransactionType"`
	TransactionPartner    string  `json:"transactionPartner"`
	PostalAddress         string  `json:"postalAddress"`
	FuelType              string  `json:"fuelType"`
	FuelCategory          string  `json:"fuelCategory"`
	Quantity              float64 `json:"quantity"`
	Units                 string  `json:"units"`
	Deleted               bool    `json:"deleted,omitempty"`
}

// FinalSupplyEquipment is a final supply equipment schedule line.
type FinalSupplyEquipment struct {
	FinalSupplyEquipmentID int     `json:"finalSupplyEquipmentId,omitempty"`
	ComplianceReportID     int     `json:"complianceReportId"`
	SupplyFromDate         string  `json:"supplyFromDate"`
	SupplyToDate           string  `json:"supplyToDate"`
	KWhUsage               float64 `json:"kwhUsage"`
	SerialNumber           string  `json:"serialNbr"`
	ManufacturerName       string  `json:"manufacturer"`
	LevelOfEquipment       string  `json:"levelOfEquipment"`
	StreetAddress          string  `json:"streetAddress"`
	City                   string  `json:"city"`
	PostalCode             string  `json:"postalCode"`
	Deleted                bool    `json:"deleted,omitempty"`
}

// AuditLog is one entry of the audit trail.
type AuditLog struct {
	AuditLogID    int            `json:"auditLogId"`
	TableName     string         `json:"tableName"`
	Operation     string         `json:"operation"`
	RowID         int            `json:"rowId"`
	ChangedFields []string       `json:"changedFields,omitempty"`
	OldValues     map[string]any `json:"oldValues,omitempty"`
	NewValues     map[string]any `json:"newValues,omitempty"`
	CreateUser    string         `json:"createUser"`
	CreateDate    time.Time      `json:"createDate"`
}

// FuelCode is a row of the fuel code catalogue.
type FuelCode struct {
	FuelCodeID      int     `json:"fuelCodeId"`
	Prefix          string  `json:"prefix"`
	FuelSuffix      string  `json:"fuelSuffix"`
	Status          string  `json:"status"`
	Company         string  `json:"company"`
	CarbonIntensity float64 `json:"carbonIntensity"`
	FuelType        string  `json:"fuelType"`
	EffectiveDate   string  `json:"effectiveDate"`
	ExpirationDate  string  `json:"expirationDate"`
}

// User is a portal user row.
type User struct {
	UserProfileID  int      `json:"userProfileId"`
	KeycloakUser   string   `json:"keycloakUsername"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Email          string   `json:"keycloakEmail"`
	OrganizationID *int     `json:"organizationId,omitempty"`
	Roles          []string `json:"roles"`
	IsActive       bool     `json:"isActive"`
}

// Transaction is a credit transaction row (transfers, initiative agreements,
// administrative adjustments).
type Transaction struct {
	TransactionID    int       `json:"transactionId"`
	TransactionType  string    `json:"transactionType"`
	FromOrganization string    `json:"fromOrganization,omitempty"`
	ToOrganization   string    `json:"toOrganization"`
	ComplianceUnits  int       `json:"complianceUnits"`
	Status           string    `json:"status"`
	UpdateDate       time.Time `json:"updateDate"`
}

// OrganizationName is a lookup row used by pickers.
type OrganizationName struct {
	OrganizationID int    `json:"organizationId"`
	Name           string `json:"name"`
}

// TableOptions is the option payload of an editable schedule grid.
type TableOptions map[string]any
