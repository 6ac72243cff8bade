package models

import (
	"strings"
	"time"
)

// ClientStatus is the lifecycle state of a client record
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is a brokerage customer record. Every optional field may be nil or blank.
type Client struct {
	ID           string       `json:"id" db:"id"`
	TenantID     string       `json:"tenant_id" db:"tenant_id"`
	Name         string       `json:"name" db:"name"`
	Email        *string      `json:"email,omitempty" db:"email"`
	Phone        *string      `json:"phone,omitempty" db:"phone"`
	DocumentID   *string      `json:"document_id,omitempty" db:"document_id"`
	BirthDate    *string      `json:"birth_date,omitempty" db:"birth_date"`
	Address      *string      `json:"address,omitempty" db:"address"`
	City         *string      `json:"city,omitempty" db:"city"`
	State        *string      `json:"state,omitempty" db:"state"`
	PostalCode   *string      `json:"postal_code,omitempty" db:"postal_code"`
	Neighborhood *string      `json:"neighborhood,omitempty" db:"neighborhood"`
	Profession   *string      `json:"profession,omitempty" db:"profession"`
	Observations *string      `json:"observations,omitempty" db:"observations"`
	Status       ClientStatus `json:"status" db:"status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// ClientField names a mergeable client attribute.
type ClientField string

const (
	FieldEmail        ClientField = "email"
	FieldPhone        ClientField = "phone"
	FieldDocumentID   ClientField = "document_id"
	FieldBirthDate    ClientField = "birth_date"
	FieldAddress      ClientField = "address"
	FieldCity         ClientField = "city"
	FieldState        ClientField = "state"
	FieldPostalCode   ClientField = "postal_code"
	FieldNeighborhood ClientField = "neighborhood"
	FieldProfession   ClientField = "profession"
	FieldObservations ClientField = "observations"
)

// MergeableFields is the fixed, ordered set of fields a merge may back-fill.
var MergeableFields = []ClientField{
	FieldEmail,
	FieldPhone,
	FieldDocumentID,
	FieldBirthDate,
	FieldAddress,
	FieldCity,
	FieldState,
	FieldPostalCode,
	FieldNeighborhood,
	FieldProfession,
	FieldObservations,
}

var fieldLabels = map[ClientField]string{
	FieldEmail:        "Email",
	FieldPhone:        "Telefone",
	FieldDocumentID:   "CPF/CNPJ",
	FieldBirthDate:    "Data de Nascimento",
	FieldAddress:      "Endereço",
	FieldCity:         "Cidade",
	FieldState:        "Estado",
	FieldPostalCode:   "CEP",
	FieldNeighborhood: "Bairro",
	FieldProfession:   "Profissão",
	FieldObservations: "Observações",
}

// Label returns the display label shown to reviewers.
func (f ClientField) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// IsMergeable reports whether f belongs to MergeableFields.
func (f ClientField) IsMergeable() bool {
	_, ok := fieldLabels[f]
	return ok
}

// Field returns a pointer to the storage of a mergeable field, or nil for unknown fields.
func (c *Client) Field(f ClientField) *string {
	switch f {
	case FieldEmail:
		return c.Email
	case FieldPhone:
		return c.Phone
	case FieldDocumentID:
		return c.DocumentID
	case FieldBirthDate:
		return c.BirthDate
	case FieldAddress:
		return c.Address
	case FieldCity:
		return c.City
	case FieldState:
		return c.State
	case FieldPostalCode:
		return c.PostalCode
	case FieldNeighborhood:
		return c.Neighborhood
	case FieldProfession:
		return c.Profession
	case FieldObservations:
		return c.Observations
	}
	return nil
}

// SetField assigns a mergeable field. Unknown fields are ignored.
func (c *Client) SetField(f ClientField, value *string) {
	switch f {
	case FieldEmail:
		c.Email = value
	case FieldPhone:
		c.Phone = value
	case FieldDocumentID:
		c.DocumentID = value
	case FieldBirthDate:
		c.BirthDate = value
	case FieldAddress:
		c.Address = value
	case FieldCity:
		c.City = value
	case FieldState:
		c.State = value
	case FieldPostalCode:
		c.PostalCode = value
	case FieldNeighborhood:
		c.Neighborhood = value
	case FieldProfession:
		c.Profession = value
	case FieldObservations:
		c.Observations = value
	}
}

// IsBlank reports whether an optional value is absent or only whitespace.
func IsBlank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}

// Value dereferences an optional value, returning "" when absent.
func Value(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
