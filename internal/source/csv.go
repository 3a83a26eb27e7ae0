// Package source provides record sources for the pipeline: CSV exports
// (blob objects on disk) and MongoDB collections.
package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

// CSVSource reads customer rows from a CSV file with a header row.
type CSVSource struct {
	Path      string
	Mapping   *models.MappingSchema
	Delimiter rune
	// Strict rejects rows with stray quotes instead of reading them leniently.
	Strict bool
}

func NewCSVSource(path string, mapping *models.MappingSchema) *CSVSource {
	if mapping == nil {
		mapping = models.DefaultMapping()
	}
	return &CSVSource{Path: path, Mapping: mapping, Delimiter: ','}
}

// Open opens the file and reads its header. A missing or unreadable file is
// a connectivity failure.
func (s *CSVSource) Open(ctx context.Context) (etl.RecordStream, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, etl.Unreachable("csv open", err)
	}

	reader := csv.NewReader(bufio.NewReader(f))
	if s.Delimiter != 0 {
		reader.Comma = s.Delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = !s.Strict
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv %s: empty file", s.Path)
		}
		return nil, etl.Unreachable("csv header", err)
	}

	index := s.Mapping.ColumnIndex(header)
	if _, ok := index[models.FieldCustomerID]; !ok {
		f.Close()
		return nil, fmt.Errorf("csv %s: no column for %s (expected %q)",
			s.Path, models.FieldCustomerID, s.Mapping.SourceColumn(models.FieldCustomerID))
	}

	return &csvStream{file: f, reader: reader, index: index, mapping: s.Mapping}, nil
}

type csvStream struct {
	file    *os.File
	reader  *csv.Reader
	index   map[string]int
	mapping *models.MappingSchema
}

func (s *csvStream) Next(ctx context.Context) (etl.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	row, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, etl.Malformed(nil, fmt.Errorf("csv line %d: %w", perr.StartLine, perr.Err))
		}
		return nil, etl.Unreachable("csv read", err)
	}

	rec := make(etl.RawRecord, len(s.index))
	for field, i := range s.index {
		if i < len(row) {
			rec[field] = s.mapping.Normalize(field, row[i])
		} else {
			rec[field] = ""
		}
	}
	return rec, nil
}

func (s *csvStream) Close() error {
	return s.file.Close()
}
