package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Plan is the investment tier that governs daily profit accrual.
type Plan string

const (
	PlanNone   Plan = ""
	PlanCore   Plan = "core"
	PlanGrowth Plan = "growth"
	PlanAlpha  Plan = "alpha"
)

// PlanTerms holds the bounds and daily return of a plan. MaxAmount is invalid for
// plans without an upper bound.
type PlanTerms struct {
	Plan        Plan
	Name        string
	MinAmount   decimal.Decimal
	MaxAmount   decimal.NullDecimal
	DailyReturn decimal.Decimal
}

var planTable = []PlanTerms{
	{
		Plan:        PlanCore,
		Name:        "Core",
		MinAmount:   decimal.NewFromInt(1_000),
		MaxAmount:   decimal.NewNullDecimal(decimal.NewFromInt(15_000)),
		DailyReturn: decimal.RequireFromString("0.0143"),
	},
	{
		Plan:        PlanGrowth,
		Name:        "Growth",
		MinAmount:   decimal.NewFromInt(20_000),
		MaxAmount:   decimal.NewNullDecimal(decimal.NewFromInt(80_000)),
		DailyReturn: decimal.RequireFromString("0.0214"),
	},
	{
		Plan:        PlanAlpha,
		Name:        "Alpha",
		MinAmount:   decimal.NewFromInt(100_000),
		DailyReturn: decimal.RequireFromString("0.0286"),
	},
}

// Plans returns the plan table in ascending order of minimum amount.
func Plans() []PlanTerms {
	out := make([]PlanTerms, len(planTable))
	copy(out, planTable)
	return out
}

// Terms returns the terms for p; ok is false for PlanNone and unknown plans.
func (p Plan) Terms() (PlanTerms, bool) {
	for _, t := range planTable {
		if t.Plan == p {
			return t, true
		}
	}
	return PlanTerms{}, false
}

func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := p.Terms(); !ok {
		return PlanNone, fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// Qualifies reports whether amount reaches the plan minimum. The minimum is inclusive.
func (t PlanTerms) Qualifies(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(t.MinAmount)
}

// Label renders the plan bounds for display, e.g. "Core ($1000 - $15000, 1.43%/day)".
func (t PlanTerms) Label() string {
	upper := "∞"
	if t.MaxAmount.Valid {
		upper = "$" + t.MaxAmount.Decimal.String()
	}
	return fmt.Sprintf("%s ($%s - %s, %s%%/day)", t.Name, t.MinAmount.String(), upper,
		t.DailyReturn.Mul(decimal.NewFromInt(100)).String())
}
