package models

import (
	"time"

	"github.com/lib/pq"
)

// MergeStage identifies a step of the merge sequence
type MergeStage string

const (
	StageValidate             MergeStage = "validate"
	StageLock                 MergeStage = "lock"
	StageFieldUpdate          MergeStage = "field_update"
	StageTransferPolicies     MergeStage = "transfer_policies"
	StageTransferAppointments MergeStage = "transfer_appointments"
	StageTransferClaims       MergeStage = "transfer_claims"
	StageDelete               MergeStage = "delete"
	StageComplete             MergeStage = "complete"
)

// DependentKind is a record type that references a client
type DependentKind string

const (
	DependentPolicies     DependentKind = "policies"
	DependentAppointments DependentKind = "appointments"
	DependentClaims       DependentKind = "claims"
)

// DependentKinds is the order in which dependents are transferred.
var DependentKinds = []DependentKind{DependentPolicies, DependentAppointments, DependentClaims}

// RelationshipCounts holds the dependents currently owned by one client.
type RelationshipCounts struct {
	ClientID     string `json:"client_id" db:"client_id"`
	Policies     int    `json:"policies"`
	Appointments int    `json:"appointments"`
	Claims       int    `json:"claims"`
}

// Total sums every dependent kind.
func (r RelationshipCounts) Total() int {
	return r.Policies + r.Appointments + r.Claims
}

// Set assigns the count for kind.
func (r *RelationshipCounts) Set(kind DependentKind, count int) {
	switch kind {
	case DependentPolicies:
		r.Policies = count
	case DependentAppointments:
		r.Appointments = count
	case DependentClaims:
		r.Claims = count
	}
}

// FieldDecision describes whether a survivor inherits one field from a duplicate.
type FieldDecision struct {
	Field          ClientField `json:"field" validate:"required"`
	Label          string      `json:"label"`
	SourceClientID string      `json:"source_client_id" validate:"required"`
	SurvivorValue  *string     `json:"survivor_value"`
	DuplicateValue *string     `json:"duplicate_value"`
	WillInherit    bool        `json:"will_inherit"`
}

// MergeResult reports how far a merge progressed.
type MergeResult struct {
	Success                 bool       `json:"success"`
	SurvivorID              string     `json:"survivor_id"`
	DuplicateIDs            []string   `json:"duplicate_ids"`
	InheritedFields         []string   `json:"inherited_fields"`
	TransferredPolicies     int        `json:"transferred_policies"`
	TransferredAppointments int        `json:"transferred_appointments"`
	TransferredClaims       int        `json:"transferred_claims"`
	DeletedClients          int        `json:"deleted_clients"`
	FailedStage             MergeStage `json:"failed_stage,omitempty"`
	DeletionPending         bool       `json:"deletion_pending"`
	Error                   string     `json:"error,omitempty"`
}

// AddTransferred records the rows moved for kind.
func (r *MergeResult) AddTransferred(kind DependentKind, count int) {
	switch kind {
	case DependentPolicies:
		r.TransferredPolicies += count
	case DependentAppointments:
		r.TransferredAppointments += count
	case DependentClaims:
		r.TransferredClaims += count
	}
}

// MergeAuditLog is the persisted trail of one merge attempt.
type MergeAuditLog struct {
	ID                      string         `json:"id" db:"id"`
	TenantID                string         `json:"tenant_id" db:"tenant_id"`
	SurvivorID              string         `json:"survivor_id" db:"survivor_id"`
	DuplicateIDs            pq.StringArray `json:"duplicate_ids" db:"duplicate_ids"`
	InheritedFields         pq.StringArray `json:"inherited_fields" db:"inherited_fields"`
	TransferredPolicies     int            `json:"transferred_policies" db:"transferred_policies"`
	TransferredAppointments int            `json:"transferred_appointments" db:"transferred_appointments"`
	TransferredClaims       int            `json:"transferred_claims" db:"transferred_claims"`
	DeletedClients          int            `json:"deleted_clients" db:"deleted_clients"`
	Success                 bool           `json:"success" db:"success"`
	FailedStage             string         `json:"failed_stage,omitempty" db:"failed_stage"`
	Error                   string         `json:"error,omitempty" db:"error"`
	PerformedBy             string         `json:"performed_by,omitempty" db:"performed_by"`
	CreatedAt               time.Time      `json:"created_at" db:"created_at"`
}

// NewMergeAuditLog captures result for persistence.
func NewMergeAuditLog(tenantID, performedBy string, result *MergeResult) *MergeAuditLog {
	return &MergeAuditLog{
		TenantID:                tenantID,
		SurvivorID:              result.SurvivorID,
		DuplicateIDs:            append(pq.StringArray{}, result.DuplicateIDs...),
		InheritedFields:         append(pq.StringArray{}, result.InheritedFields...),
		TransferredPolicies:     result.TransferredPolicies,
		TransferredAppointments: result.TransferredAppointments,
		TransferredClaims:       result.TransferredClaims,
		DeletedClients:          result.DeletedClients,
		Success:                 result.Success,
		FailedStage:             string(result.FailedStage),
		Error:                   result.Error,
		PerformedBy:             performedBy,
	}
}

// FieldValue is a single column write on a client record.
type FieldValue struct {
	Field ClientField `json:"field"`
	Value string      `json:"value"`
}
