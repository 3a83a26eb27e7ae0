package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMappingIsIdentity(t *testing.T) {
	m := DefaultMapping()
	for _, f := range CustomerFields {
		assert.Equal(t, f, m.SourceColumn(f))
	}
	assert.Equal(t, "datetime", m.Field(FieldSignupDate).Type)
}

func TestLoadMappingOverlaysDefaults(t *testing.T) {
	m, err := LoadMapping([]byte(`{
		"entity": "Client",
		"fields": {
			"customer_id": {"source": "ClientID"},
			"annual_revenue": {"source": "Revenue", "type": "decimal"}
		}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "Client", m.Entity)
	assert.Equal(t, "customers", m.SQLTable)
	assert.Equal(t, "ClientID", m.SourceColumn(FieldCustomerID))
	assert.Equal(t, "Revenue", m.SourceColumn(FieldAnnualRevenue))
	assert.Equal(t, FieldEmail, m.SourceColumn(FieldEmail))
}

func TestLoadMappingRejectsUnknownField(t *testing.T) {
	_, err := LoadMapping([]byte(`{"fields": {"phone": {"source": "Phone"}}}`))
	assert.ErrorContains(t, err, `unknown customer field "phone"`)

	_, err = LoadMapping([]byte(`{`))
	assert.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	m := DefaultMapping()
	m.Fields[FieldCustomerID] = FieldConfig{Source: "ID"}

	idx := m.ColumnIndex([]string{" id ", "Email", "NAME", "extra"})

	assert.Equal(t, map[string]int{
		FieldCustomerID: 0,
		FieldEmail:      1,
		FieldName:       2,
	}, idx)
}

func TestNilMappingFallsBack(t *testing.T) {
	var m *MappingSchema
	assert.Equal(t, FieldRegion, m.SourceColumn(FieldRegion))
	assert.Equal(t, FieldConfig{Source: FieldRegion}, m.Field(FieldRegion))
}

func TestNormalizeDateFormat(t *testing.T) {
	m := DefaultMapping()
	m.Fields[FieldSignupDate] = FieldConfig{Source: "Joined", Type: "datetime", Format: "02/01/2006"}

	assert.Equal(t, "2021-03-15", m.Normalize(FieldSignupDate, " 15/03/2021 "))
	assert.Equal(t, "2021-13-45", m.Normalize(FieldSignupDate, "2021-13-45"))
	assert.Equal(t, "15/03/2021", m.Normalize(FieldName, "15/03/2021"))
	assert.Equal(t, "15/03/2021", DefaultMapping().Normalize(FieldSignupDate, "15/03/2021"))
}
