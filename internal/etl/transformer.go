package etl

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/utils"
)

var (
	daysPerYear     = decimal.NewFromInt(365)
	maxTenureFactor = decimal.NewFromInt(5)
)

// Result is the outcome of transforming one raw record: exactly one of
// Record and Rejected is set.
type Result struct {
	Record   *TransformedRecord
	Rejected *RejectedRecord
}

// Accepted reports whether the record passed validation.
func (r Result) Accepted() bool { return r.Record != nil }

// Transformer validates raw customer records, scores their quality and
// computes derived fields relative to a fixed run timestamp.
type Transformer struct {
	cfg       *config.Pipeline
	runDate   time.Time
	validator *Validator
	now       func() time.Time
}

// NewTransformer creates a transformer for one run. seen carries the ids
// already observed in the run and must be shared by all transformers of it.
func NewTransformer(cfg *config.Pipeline, runAt time.Time, seen *IDSet) *Transformer {
	return &Transformer{
		cfg:       cfg,
		runDate:   utils.DateOf(runAt),
		validator: NewValidator(runAt, seen),
		now:       time.Now,
	}
}

// WithClock replaces the clock used for processed_at.
func (t *Transformer) WithClock(now func() time.Time) *Transformer {
	t.now = now
	return t
}

// Transform maps raw to a transformed record or a rejection.
func (t *Transformer) Transform(raw RawRecord) Result {
	f, violations := t.validator.Validate(raw)
	score := Score(violations)

	if reason, rejected := t.rejection(score, violations); rejected {
		names := make([]string, len(violations))
		for i, v := range violations {
			names[i] = v.Rule.Name
		}
		return Result{Rejected: &RejectedRecord{
			Raw:          raw.Clone(),
			Violations:   names,
			Reason:       reason,
			QualityScore: score,
		}}
	}

	rec := &TransformedRecord{
		CustomerID:       f.id,
		Name:             f.name,
		Email:            f.email,
		Region:           strings.TrimSpace(raw[models.FieldRegion]),
		Segment:          strings.TrimSpace(raw[models.FieldSegment]),
		Status:           strings.TrimSpace(raw[models.FieldStatus]),
		SignupDate:       f.signup,
		AnnualRevenue:    f.revenue,
		DataQualityScore: score,
		ProcessedAt:      t.now().UTC(),
	}
	for _, v := range violations {
		rec.Warnings = append(rec.Warnings, v.String())
	}

	rec.DaysSinceSignup = int(t.runDate.Sub(f.signup).Hours() / 24)
	rec.RevenueTier = TierFor(f.revenue)
	rec.CustomerLifetimeValue = f.revenue.Mul(t.tenureFactor(rec.DaysSinceSignup, rec.Segment)).Round(2)

	return Result{Record: rec}
}

// rejection decides whether a scored record is rejected and why. A hard
// failure only decides that the record is rejected; the first failing rule
// names the reason.
func (t *Transformer) rejection(score int, violations []Violation) (string, bool) {
	for _, v := range violations {
		if v.Rule.Hard {
			return violations[0].String(), true
		}
	}
	if score < t.cfg.MinQualityScore {
		return fmt.Sprintf("quality score %d below minimum %d (%s)", score, t.cfg.MinQualityScore, violations[0]), true
	}
	return "", false
}

// tenureFactor is min(5, 1 + days/365 * segment weight).
func (t *Transformer) tenureFactor(days int, segment string) decimal.Decimal {
	weight := decimal.NewFromFloat(t.cfg.SegmentWeight(segment))
	factor := decimal.NewFromInt(int64(days)).Div(daysPerYear).Mul(weight).Add(decimal.NewFromInt(1))
	return decimal.Min(factor, maxTenureFactor)
}
