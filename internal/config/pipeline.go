package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Pipeline holds the tuning options of a single pipeline run.
// Zero values are meaningful for several fields, so start from DefaultPipeline
// and overlay file and environment settings on top of it.
type Pipeline struct {
	BatchSize           int                `json:"batch_size"`
	RetryAttempts       int                `json:"retry_attempts"`
	BackoffBaseMs       int                `json:"backoff_base_ms"`
	BackoffMaxMs        int                `json:"backoff_max_ms"`
	MinQualityScore     int                `json:"min_quality_score"`
	Concurrency         int                `json:"concurrency"`
	TransformWorkers    int                `json:"transform_workers"`
	RunTimeoutSeconds   int                `json:"run_timeout_seconds"`
	SinkTimeoutMs       int                `json:"sink_timeout_ms"`
	MaxReportRejections int                `json:"max_report_rejections"`
	SegmentWeights      map[string]float64 `json:"segment_weights"`
}

// DefaultPipeline returns the documented defaults.
func DefaultPipeline() *Pipeline {
	return &Pipeline{
		BatchSize:           100,
		RetryAttempts:       3,
		BackoffBaseMs:       100,
		BackoffMaxMs:        5000,
		MinQualityScore:     60,
		Concurrency:         4,
		TransformWorkers:    0,
		RunTimeoutSeconds:   0,
		SinkTimeoutMs:       30000,
		MaxReportRejections: 1000,
		SegmentWeights:      map[string]float64{"Enterprise": 1.5},
	}
}

// ValidationError describes one invalid configuration option.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// LoadPipeline builds a pipeline configuration from defaults, an optional JSON
// file and ETL_* environment overrides, in that order.
func LoadPipeline(filePath string) (*Pipeline, error) {
	p := DefaultPipeline()

	if filePath != "" {
		bytes, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline config '%s': %w", filePath, err)
		}
		if err := json.Unmarshal(bytes, p); err != nil {
			return nil, fmt.Errorf("failed to parse pipeline config '%s': %w", filePath, err)
		}
	}

	if err := p.applyEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) applyEnv() error {
	ints := []struct {
		env string
		dst *int
	}{
		{"ETL_BATCH_SIZE", &p.BatchSize},
		{"ETL_RETRY_ATTEMPTS", &p.RetryAttempts},
		{"ETL_BACKOFF_BASE_MS", &p.BackoffBaseMs},
		{"ETL_BACKOFF_MAX_MS", &p.BackoffMaxMs},
		{"ETL_MIN_QUALITY_SCORE", &p.MinQualityScore},
		{"ETL_CONCURRENCY", &p.Concurrency},
		{"ETL_TRANSFORM_WORKERS", &p.TransformWorkers},
		{"ETL_RUN_TIMEOUT_SECONDS", &p.RunTimeoutSeconds},
		{"ETL_SINK_TIMEOUT_MS", &p.SinkTimeoutMs},
		{"ETL_MAX_REPORT_REJECTIONS", &p.MaxReportRejections},
	}
	for _, o := range ints {
		raw := strings.TrimSpace(os.Getenv(o.env))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return &ValidationError{Field: o.env, Value: raw, Reason: "not an integer"}
		}
		*o.dst = n
	}
	return nil
}

// Validate checks every option and returns all violations joined together.
func (p *Pipeline) Validate() error {
	var errs []error
	check := func(ok bool, field string, value any, reason string) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Value: value, Reason: reason})
		}
	}

	check(p.BatchSize > 0, "batch_size", p.BatchSize, "must be a positive integer")
	check(p.RetryAttempts >= 0, "retry_attempts", p.RetryAttempts, "must not be negative")
	check(p.BackoffBaseMs > 0, "backoff_base_ms", p.BackoffBaseMs, "must be a positive integer")
	check(p.BackoffMaxMs > 0, "backoff_max_ms", p.BackoffMaxMs, "must be a positive integer")
	check(p.BackoffMaxMs >= p.BackoffBaseMs, "backoff_max_ms", p.BackoffMaxMs, "must not be below backoff_base_ms")
	check(p.MinQualityScore >= 0 && p.MinQualityScore <= 100, "min_quality_score", p.MinQualityScore, "must be within 0-100")
	check(p.Concurrency > 0, "concurrency", p.Concurrency, "must be a positive integer")
	check(p.TransformWorkers >= 0, "transform_workers", p.TransformWorkers, "must not be negative")
	check(p.RunTimeoutSeconds >= 0, "run_timeout_seconds", p.RunTimeoutSeconds, "must not be negative")
	check(p.SinkTimeoutMs > 0, "sink_timeout_ms", p.SinkTimeoutMs, "must be a positive integer")
	check(p.MaxReportRejections >= 0, "max_report_rejections", p.MaxReportRejections, "must not be negative")
	for segment, w := range p.SegmentWeights {
		check(w >= 0, "segment_weights."+segment, w, "must not be negative")
	}

	return errors.Join(errs...)
}

func (p *Pipeline) BackoffBase() time.Duration {
	return time.Duration(p.BackoffBaseMs) * time.Millisecond
}

func (p *Pipeline) BackoffMax() time.Duration {
	return time.Duration(p.BackoffMaxMs) * time.Millisecond
}

func (p *Pipeline) SinkTimeout() time.Duration {
	return time.Duration(p.SinkTimeoutMs) * time.Millisecond
}

// RunTimeout returns the run deadline, zero meaning no timeout.
func (p *Pipeline) RunTimeout() time.Duration {
	return time.Duration(p.RunTimeoutSeconds) * time.Second
}

// Workers returns the number of transform workers; zero falls back to Concurrency.
func (p *Pipeline) Workers() int {
	if p.TransformWorkers > 0 {
		return p.TransformWorkers
	}
	return p.Concurrency
}

// SegmentWeight looks up the tenure weight of a customer segment.
// Matching is case-insensitive; unknown segments weigh 1.0.
func (p *Pipeline) SegmentWeight(segment string) float64 {
	segment = strings.TrimSpace(segment)
	if w, ok := p.SegmentWeights[segment]; ok {
		return w
	}
	for name, w := range p.SegmentWeights {
		if strings.EqualFold(name, segment) {
			return w
		}
	}
	return 1.0
}
