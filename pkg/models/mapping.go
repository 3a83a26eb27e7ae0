package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Canonical customer field names. Every source adapter emits raw records
// keyed by these names.
const (
	FieldCustomerID    = "customer_id"
	FieldName          = "name"
	FieldEmail         = "email"
	FieldRegion        = "region"
	FieldSegment       = "segment"
	FieldStatus        = "status"
	FieldSignupDate    = "signup_date"
	FieldAnnualRevenue = "annual_revenue"
)

// CustomerFields lists the canonical fields in their natural column order.
var CustomerFields = []string{
	FieldCustomerID,
	FieldName,
	FieldEmail,
	FieldRegion,
	FieldSegment,
	FieldStatus,
	FieldSignupDate,
	FieldAnnualRevenue,
}

// MappingSchema represents the root of the JSON mapping file.
type MappingSchema struct {
	Entity          string                 `json:"entity"`
	SQLTable        string                 `json:"sqlTable,omitempty"`
	MongoCollection string                 `json:"mongoCollection,omitempty"`
	Fields          map[string]FieldConfig `json:"fields"`
}

// FieldConfig names the source column (CSV header or document field) that
// feeds one canonical field.
type FieldConfig struct {
	Source string `json:"source"`
	Type   string `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
}

// DefaultMapping maps every canonical field to a source column of the same name.
func DefaultMapping() *MappingSchema {
	m := &MappingSchema{
		Entity:          "Customer",
		SQLTable:        "customers",
		MongoCollection: "customers",
		Fields:          make(map[string]FieldConfig, len(CustomerFields)),
	}
	for _, f := range CustomerFields {
		m.Fields[f] = FieldConfig{Source: f, Type: "string"}
	}
	m.Fields[FieldSignupDate] = FieldConfig{Source: FieldSignupDate, Type: "datetime"}
	return m
}

// SourceColumn returns the source column for a canonical field, falling back
// to the canonical name when the mapping does not mention it.
func (m *MappingSchema) SourceColumn(field string) string {
	if m == nil {
		return field
	}
	if fc, ok := m.Fields[field]; ok && fc.Source != "" {
		return fc.Source
	}
	return field
}

// Field returns the field configuration for a canonical field.
func (m *MappingSchema) Field(field string) FieldConfig {
	if m != nil {
		if fc, ok := m.Fields[field]; ok {
			if fc.Source == "" {
				fc.Source = field
			}
			return fc
		}
	}
	return FieldConfig{Source: field}
}

// Normalize rewrites a datetime value read with the field's custom Format
// into the canonical 2006-01-02 form. Values that do not parse are returned
// unchanged so that validation reports them.
func (m *MappingSchema) Normalize(field, value string) string {
	fc := m.Field(field)
	if fc.Type != "datetime" || fc.Format == "" {
		return value
	}
	t, err := time.Parse(fc.Format, strings.TrimSpace(value))
	if err != nil {
		return value
	}
	return t.Format(time.DateOnly)
}

// ColumnIndex resolves canonical fields to positions in a header row.
// Header matching is case-insensitive and ignores surrounding whitespace.
func (m *MappingSchema) ColumnIndex(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}

	idx := make(map[string]int, len(CustomerFields))
	for _, f := range CustomerFields {
		if i, ok := pos[strings.ToLower(m.SourceColumn(f))]; ok {
			idx[f] = i
		}
	}
	return idx
}

func LoadMapping(data []byte) (*MappingSchema, error) {
	m := DefaultMapping()
	var parsed MappingSchema
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if parsed.Entity != "" {
		m.Entity = parsed.Entity
	}
	if parsed.SQLTable != "" {
		m.SQLTable = parsed.SQLTable
	}
	if parsed.MongoCollection != "" {
		m.MongoCollection = parsed.MongoCollection
	}
	for k, v := range parsed.Fields {
		if !isCanonical(k) {
			return nil, fmt.Errorf("unknown customer field %q in mapping", k)
		}
		m.Fields[k] = v
	}
	return m, nil
}

func isCanonical(field string) bool {
	for _, f := range CustomerFields {
		if f == field {
			return true
		}
	}
	return false
}
