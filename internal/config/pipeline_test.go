package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPipelineIsValid(t *testing.T) {
	p := DefaultPipeline()
	require.NoError(t, p.Validate())

	assert.Equal(t, 100, p.BatchSize)
	assert.Equal(t, 3, p.RetryAttempts)
	assert.Equal(t, 60, p.MinQualityScore)
	assert.Equal(t, p.Concurrency, p.Workers())
	assert.Equal(t, time.Duration(0), p.RunTimeout())
}

func TestLoadPipelineOverlaysFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"batch_size": 250, "retry_attempts": 0, "segment_weights": {"SMB": 0.5}}`), 0o644))

	t.Setenv("ETL_CONCURRENCY", "8")

	p, err := LoadPipeline(path)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Equal(t, 250, p.BatchSize)
	assert.Equal(t, 0, p.RetryAttempts)
	assert.Equal(t, 8, p.Concurrency)
	assert.Equal(t, 60, p.MinQualityScore, "keys absent from the file keep their defaults")
	assert.Equal(t, 0.5, p.SegmentWeight("smb"))
	assert.Equal(t, 1.0, p.SegmentWeight("Consumer"))
}

func TestLoadPipelineRejectsBadEnv(t *testing.T) {
	t.Setenv("ETL_BATCH_SIZE", "lots")

	_, err := LoadPipeline("")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ETL_BATCH_SIZE", verr.Field)
}

func TestValidateReportsEveryViolation(t *testing.T) {
	p := DefaultPipeline()
	p.BatchSize = 0
	p.RetryAttempts = -1
	p.MinQualityScore = 101
	p.BackoffBaseMs = 500
	p.BackoffMaxMs = 100

	err := p.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "batch_size", verr.Field)
	assert.Contains(t, err.Error(), "retry_attempts")
	assert.Contains(t, err.Error(), "min_quality_score")
	assert.Contains(t, err.Error(), "backoff_max_ms")
}

func TestSegmentWeightDefaults(t *testing.T) {
	p := DefaultPipeline()
	assert.Equal(t, 1.5, p.SegmentWeight("Enterprise"))
	assert.Equal(t, 1.5, p.SegmentWeight(" enterprise "))
	assert.Equal(t, 1.0, p.SegmentWeight(""))
}
