package etl

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// RawRecord is one untyped row as read from a source, keyed by canonical
// field name (see models.CustomerFields).
type RawRecord map[string]string

// Clone returns an independent copy of the record.
func (r RawRecord) Clone() RawRecord {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// RevenueTier classifies a customer by annual revenue.
type RevenueTier string

const (
	TierLow        RevenueTier = "Low"
	TierMid        RevenueTier = "Mid"
	TierHigh       RevenueTier = "High"
	TierEnterprise RevenueTier = "Enterprise"
)

var (
	tierMidFloor        = decimal.NewFromInt(50_000)
	tierHighFloor       = decimal.NewFromInt(150_000)
	tierEnterpriseFloor = decimal.NewFromInt(500_000)
)

// TierFor returns the revenue tier of a non-negative annual revenue.
func TierFor(revenue decimal.Decimal) RevenueTier {
	switch {
	case revenue.LessThan(tierMidFloor):
		return TierLow
	case revenue.LessThan(tierHighFloor):
		return TierMid
	case revenue.LessThan(tierEnterpriseFloor):
		return TierHigh
	default:
		return TierEnterprise
	}
}

// TransformedRecord is a validated customer with derived fields.
type TransformedRecord struct {
	CustomerID            int64           `json:"customer_id"`
	Name                  string          `json:"name"`
	Email                 string          `json:"email"`
	Region                string          `json:"region"`
	Segment               string          `json:"segment"`
	Status                string          `json:"status"`
	SignupDate            time.Time       `json:"signup_date"`
	AnnualRevenue         decimal.Decimal `json:"annual_revenue"`
	RevenueTier           RevenueTier     `json:"revenue_tier"`
	CustomerLifetimeValue decimal.Decimal `json:"customer_lifetime_value"`
	DaysSinceSignup       int             `json:"days_since_signup"`
	DataQualityScore      int             `json:"data_quality_score"`
	ProcessedAt           time.Time       `json:"processed_at"`

	// Warnings lists soft rules the record violated while still being accepted.
	Warnings []string `json:"warnings,omitempty"`
}

// RejectedRecord keeps the untouched raw values of a record that failed
// validation together with the rules it violated.
type RejectedRecord struct {
	Raw          RawRecord `json:"raw"`
	Violations   []string  `json:"violations"`
	Reason       string    `json:"reason"`
	QualityScore int       `json:"quality_score"`
}

// Batch is a sealed, ordered group of records written in one transaction.
type Batch struct {
	Seq     int64                `json:"seq"`
	Records []*TransformedRecord `json:"records"`
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
