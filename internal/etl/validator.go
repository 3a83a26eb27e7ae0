package etl

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/utils"
)

// Rule is one validation rule with its quality-score penalty. A failing hard
// rule rejects the record whatever its score.
type Rule struct {
	Name    string
	Penalty int
	Hard    bool
}

// Validation rules in evaluation order.
var (
	RuleEmail      = Rule{Name: "email", Penalty: 25}
	RuleRevenue    = Rule{Name: "revenue", Penalty: 25, Hard: true}
	RuleName       = Rule{Name: "name", Penalty: 20}
	RuleSignupDate = Rule{Name: "signup_date", Penalty: 20, Hard: true}
	RuleCustomerID = Rule{Name: "customer_id", Penalty: 10, Hard: true}
)

// Violation is a failed rule plus a description of what was wrong.
type Violation struct {
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	return v.Rule.Name + ": " + v.Detail
}

// fields holds the values parsed while validating, so the transformer does
// not parse twice.
type fields struct {
	id      int64
	name    string
	email   string
	revenue decimal.Decimal
	signup  time.Time
}

// Validator applies the rule set to raw records. The seen set is shared by
// every worker of a run.
type Validator struct {
	runDate time.Time
	seen    *IDSet
}

func NewValidator(runDate time.Time, seen *IDSet) *Validator {
	return &Validator{runDate: utils.DateOf(runDate), seen: seen}
}

// Validate evaluates every rule against raw, in order, and returns the
// parsed values together with the violations found.
func (v *Validator) Validate(raw RawRecord) (fields, []Violation) {
	var (
		f    fields
		errs []Violation
	)
	fail := func(r Rule, format string, args ...any) {
		errs = append(errs, Violation{Rule: r, Detail: fmt.Sprintf(format, args...)})
	}

	f.email = strings.ToLower(strings.TrimSpace(raw[models.FieldEmail]))
	if err := checkEmail(f.email); err != nil {
		fail(RuleEmail, "%v", err)
	}

	revenue := strings.TrimSpace(raw[models.FieldAnnualRevenue])
	if d, err := decimal.NewFromString(revenue); err != nil {
		fail(RuleRevenue, "%q is not a decimal", revenue)
	} else if d.IsNegative() {
		fail(RuleRevenue, "%s is negative", d.String())
	} else {
		f.revenue = d
	}

	f.name = strings.TrimSpace(raw[models.FieldName])
	if f.name == "" {
		fail(RuleName, "name is empty")
	}

	signup := raw[models.FieldSignupDate]
	if d, err := utils.ParseDate(signup); err != nil {
		fail(RuleSignupDate, "%q is not a valid date", strings.TrimSpace(signup))
	} else if d.After(v.runDate) {
		fail(RuleSignupDate, "%s is in the future", d.Format(time.DateOnly))
	} else {
		f.signup = d
	}

	rawID := strings.TrimSpace(raw[models.FieldCustomerID])
	if id, err := utils.ParsePositiveInt(rawID); err != nil {
		fail(RuleCustomerID, "%q is not a positive integer", rawID)
	} else if !v.seen.Add(id) {
		fail(RuleCustomerID, "duplicate id %d", id)
	} else {
		f.id = id
	}

	return f, errs
}

func checkEmail(email string) error {
	if strings.Count(email, "@") != 1 {
		return fmt.Errorf("%q must contain exactly one @", email)
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || domain == "" {
		return fmt.Errorf("%q has an empty local or domain part", email)
	}
	return nil
}

// Score returns the quality score left after subtracting the penalties of
// the given violations, floored at zero.
func Score(violations []Violation) int {
	score := 100
	for _, v := range violations {
		score -= v.Rule.Penalty
	}
	return max(score, 0)
}
