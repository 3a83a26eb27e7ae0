package source

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, stream etl.RecordStream) []etl.RawRecord {
	t.Helper()
	var out []etl.RawRecord
	for {
		rec, err := stream.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestCSVSourceReadsRows(t *testing.T) {
	path := writeFile(t, "customer_id,name,email,region,segment,status,signup_date,annual_revenue\n"+
		"1,Ada,ada@example.com,EU,Enterprise,active,2023-01-05,250000\n"+
		"2,\"Lovelace, Grace\",grace@example.com,US,SMB,active,2022-07-01,1200\n")

	stream, err := NewCSVSource(path, nil).Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	rows := drain(t, stream)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][models.FieldCustomerID])
	assert.Equal(t, "250000", rows[0][models.FieldAnnualRevenue])
	assert.Equal(t, "Lovelace, Grace", rows[1][models.FieldName])
}

func TestCSVSourceAppliesMapping(t *testing.T) {
	path := writeFile(t, "CustomerID;FullName;Mail\n7;Alan;alan@example.com\n8;Short\n")

	mapping := models.DefaultMapping()
	mapping.Fields[models.FieldCustomerID] = models.FieldConfig{Source: "CustomerID"}
	mapping.Fields[models.FieldName] = models.FieldConfig{Source: "FullName"}
	mapping.Fields[models.FieldEmail] = models.FieldConfig{Source: "Mail"}

	src := NewCSVSource(path, mapping)
	src.Delimiter = ';'

	stream, err := src.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	rows := drain(t, stream)
	require.Len(t, rows, 2)
	assert.Equal(t, etl.RawRecord{models.FieldCustomerID: "7", models.FieldName: "Alan", models.FieldEmail: "alan@example.com"}, rows[0])
	assert.Equal(t, "", rows[1][models.FieldEmail], "short rows yield empty values")
}

func TestCSVSourceMissingFileIsConnectivityError(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), nil).Open(context.Background())
	require.Error(t, err)
	assert.True(t, etl.IsConnectivity(err))
}

func TestCSVSourceRequiresIDColumn(t *testing.T) {
	path := writeFile(t, "name,email\nAda,ada@example.com\n")

	_, err := NewCSVSource(path, nil).Open(context.Background())
	require.Error(t, err)
	assert.False(t, etl.IsConnectivity(err))
	assert.Contains(t, err.Error(), "customer_id")
}

func TestCSVSourceIsRestartable(t *testing.T) {
	path := writeFile(t, "customer_id,name\n1,a\n2,b\n")
	src := NewCSVSource(path, nil)

	for i := 0; i < 2; i++ {
		stream, err := src.Open(context.Background())
		require.NoError(t, err)
		assert.Len(t, drain(t, stream), 2)
		require.NoError(t, stream.Close())
	}
}

func TestCSVSourceMalformedLineDoesNotStopStream(t *testing.T) {
	path := writeFile(t, "customer_id,name,email\n"+
		"1,Ada,ada@example.com\n"+
		"2,\"Bad\"x,bad@example.com\n"+
		"3,Grace,grace@example.com\n")

	src := NewCSVSource(path, nil)
	src.Strict = true
	stream, err := src.Open(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", first[models.FieldCustomerID])

	_, err = stream.Next(context.Background())
	var malformed *etl.MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.False(t, etl.IsConnectivity(err))
	assert.Contains(t, err.Error(), "csv line 3")

	third, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", third[models.FieldCustomerID])

	_, err = stream.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
