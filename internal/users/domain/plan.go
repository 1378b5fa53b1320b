package domain

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// DefaultPaidPlan is used when a purchased price carries no plan metadata.
const DefaultPaidPlan = PlanPro

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanBusiness:
		return true
	}
	return false
}

// ParsePlan maps a metadata value to a paid plan, falling back to DefaultPaidPlan.
func ParsePlan(s string) Plan {
	p := Plan(s)
	if p.Valid() && p != PlanFree {
		return p
	}
	return DefaultPaidPlan
}
