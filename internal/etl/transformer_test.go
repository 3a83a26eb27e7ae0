package etl

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

func newTestTransformer(cfg *config.Pipeline) *Transformer {
	return NewTransformer(cfg, runAt, NewIDSet()).WithClock(fixedClock)
}

func TestTransformDuplicateAfterRejectedRecord(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	first := tr.Transform(customerRaw(7, "Ann", "ann@example.com", "2023-01-01", "-500", "SMB"))
	second := tr.Transform(customerRaw(7, "Ann", "ann@example.com", "2023-01-01", "500", "SMB"))
	signup := runAt.AddDate(0, 0, -400).Format(time.DateOnly)
	third := tr.Transform(customerRaw(8, "Bob", "bob@example.com", signup, "200000", "Enterprise"))

	require.False(t, first.Accepted())
	assert.Equal(t, "revenue: -500 is negative", first.Rejected.Reason)

	require.False(t, second.Accepted())
	assert.Equal(t, []string{"customer_id"}, second.Rejected.Violations)
	assert.Contains(t, second.Rejected.Reason, "duplicate id 7")

	require.True(t, third.Accepted())
	assert.Equal(t, int64(8), third.Record.CustomerID)
	assert.Equal(t, TierHigh, third.Record.RevenueTier)
	assert.Equal(t, 100, third.Record.DataQualityScore)
	assert.Equal(t, 400, third.Record.DaysSinceSignup)
}

func TestTransformDerivedFields(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(customerRaw(1, "  Acme Corp ", " Sales@ACME.com", "2022-06-15", "600000", "Enterprise"))
	require.True(t, res.Accepted())
	rec := res.Record

	assert.Equal(t, "Acme Corp", rec.Name)
	assert.Equal(t, "sales@acme.com", rec.Email)
	assert.Equal(t, 731, rec.DaysSinceSignup)
	assert.Equal(t, TierEnterprise, rec.RevenueTier)
	assert.Equal(t, "2402465.75", rec.CustomerLifetimeValue.StringFixed(2))
	assert.Equal(t, 100, rec.DataQualityScore)
	assert.Equal(t, runAt, rec.ProcessedAt)
	assert.Empty(t, rec.Warnings)
}

func TestTransformTenureFactorIsCapped(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(customerRaw(1, "Old", "old@example.com", "2010-01-01", "1000", "SMB"))
	require.True(t, res.Accepted())
	assert.True(t, res.Record.CustomerLifetimeValue.Equal(decimal.NewFromInt(5000)),
		"got %s", res.Record.CustomerLifetimeValue)
}

func TestTransformSignupTodayHasNoTenure(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(customerRaw(1, "New", "new@example.com", "2024-06-15", "1234.567", "SMB"))
	require.True(t, res.Accepted())
	assert.Zero(t, res.Record.DaysSinceSignup)
	assert.Equal(t, "1234.57", res.Record.CustomerLifetimeValue.String())
}

func TestTransformSoftViolations(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(customerRaw(1, "Ann", "not-an-email", "2023-01-01", "100", "SMB"))
	require.True(t, res.Accepted(), "one soft violation keeps the score at 75")
	assert.Equal(t, 75, res.Record.DataQualityScore)
	require.Len(t, res.Record.Warnings, 1)
	assert.True(t, strings.HasPrefix(res.Record.Warnings[0], "email: "))

	res = tr.Transform(customerRaw(2, "", "not-an-email", "2023-01-01", "100", "SMB"))
	require.False(t, res.Accepted())
	assert.Equal(t, 55, res.Rejected.QualityScore)
	assert.Equal(t, []string{"email", "name"}, res.Rejected.Violations)
	assert.True(t, strings.HasPrefix(res.Rejected.Reason, "quality score 55 below minimum 60"))
}

func TestTransformHardRuleRejectsWhateverTheScore(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.MinQualityScore = 0
	tr := newTestTransformer(cfg)

	tests := []struct {
		name string
		raw  RawRecord
		rule string
	}{
		{"future signup", customerRaw(1, "A", "a@example.com", "2024-06-16", "1", "SMB"), "signup_date"},
		{"bad date", customerRaw(2, "A", "a@example.com", "15/06/2020", "1", "SMB"), "signup_date"},
		{"bad revenue", customerRaw(3, "A", "a@example.com", "2020-01-01", "abc", "SMB"), "revenue"},
		{"bad id", RawRecord{models.FieldCustomerID: "-4", models.FieldName: "A", models.FieldEmail: "a@example.com",
			models.FieldSignupDate: "2020-01-01", models.FieldAnnualRevenue: "1"}, "customer_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tr.Transform(tt.raw)
			require.False(t, res.Accepted())
			assert.Equal(t, []string{tt.rule}, res.Rejected.Violations)
			assert.True(t, strings.HasPrefix(res.Rejected.Reason, tt.rule+": "))
		})
	}
}

func TestTransformScoreIsBounded(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(RawRecord{models.FieldCustomerID: "x", models.FieldSignupDate: "soon", models.FieldAnnualRevenue: "?"})
	require.False(t, res.Accepted())
	assert.Equal(t, 0, res.Rejected.QualityScore)
	assert.Len(t, res.Rejected.Violations, 5)
}

func TestTransformRejectionKeepsRawValues(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())
	raw := customerRaw(1, "  Ann ", "ANN@Example.com", "2023-01-01", " -1 ", "SMB")

	res := tr.Transform(raw)
	require.False(t, res.Accepted())

	raw[models.FieldName] = "changed"
	assert.Equal(t, "  Ann ", res.Rejected.Raw[models.FieldName])
	assert.Equal(t, "ANN@Example.com", res.Rejected.Raw[models.FieldEmail])
	assert.Equal(t, " -1 ", res.Rejected.Raw[models.FieldAnnualRevenue])
}

func TestTransformIsDeterministicForFreshRunState(t *testing.T) {
	input := []RawRecord{
		validRaw(1),
		customerRaw(2, "", "b@example.com", "2021-03-04", "75000.10", "Enterprise"),
		validRaw(1),
		customerRaw(3, "C", "c@", "2019-12-31", "200000", "Mid-Market"),
	}

	run := func() []Result {
		tr := newTestTransformer(config.DefaultPipeline())
		out := make([]Result, len(input))
		for i, raw := range input {
			out[i] = tr.Transform(raw)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		revenue string
		want    RevenueTier
	}{
		{"0", TierLow},
		{"49999.99", TierLow},
		{"50000", TierMid},
		{"149999.99", TierMid},
		{"150000", TierHigh},
		{"499999.99", TierHigh},
		{"500000", TierEnterprise},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(decimal.RequireFromString(tt.revenue)), tt.revenue)
	}
}

func TestSegmentWeightConfig(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.SegmentWeights = map[string]float64{"smb": 2}
	tr := newTestTransformer(cfg)

	res := tr.Transform(customerRaw(1, "A", "a@example.com", "2023-06-16", "1000", "SMB"))
	require.True(t, res.Accepted())
	assert.Equal(t, 365, res.Record.DaysSinceSignup)
	assert.Equal(t, "3000.00", res.Record.CustomerLifetimeValue.StringFixed(2))
}

func TestTransformReasonNamesFirstFailingRule(t *testing.T) {
	tr := newTestTransformer(config.DefaultPipeline())

	res := tr.Transform(customerRaw(1, "Ann", "bad-email", "2023-01-01", "-5", "SMB"))
	require.False(t, res.Accepted())
	assert.Equal(t, []string{"email", "revenue"}, res.Rejected.Violations)
	assert.True(t, strings.HasPrefix(res.Rejected.Reason, "email: "), res.Rejected.Reason)
}
