// Package store persists run reports and quarantined batches so they can be
// inspected after the process exits.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

// ReportStore saves the report of a finished run.
type ReportStore interface {
	Save(ctx context.Context, report *etl.Report) error
}

// FileStore writes each report as an indented JSON file named after the run.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(runID string) string {
	return filepath.Join(f.Dir, fmt.Sprintf("run-%s.json", runID))
}

func (f *FileStore) Save(_ context.Context, report *etl.Report) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	// Write then rename so readers never see a partial report.
	path := f.path(report.RunID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Infof("Report for run %s saved to %s", report.RunID, path)
	return nil
}

// Load reads a report previously saved for runID.
func (f *FileStore) Load(runID string) (*etl.Report, error) {
	data, err := os.ReadFile(f.path(runID))
	if err != nil {
		return nil, err
	}
	var report etl.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &report, nil
}

// Multi saves to every store and returns the first error after trying all.
type Multi []ReportStore

func (m Multi) Save(ctx context.Context, report *etl.Report) error {
	var first error
	for _, s := range m {
		if err := s.Save(ctx, report); err != nil {
			logger.Errorf("Saving report %s failed: %v", report.RunID, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
