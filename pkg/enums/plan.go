package enums

// PlanName maps to the plan_name enum in Postgres. The plan is a label on the
// account and never changes the balance by itself.
type PlanName string

const (
	PlanFree       PlanName = "free"
	PlanBasic      PlanName = "basic"
	PlanPro        PlanName = "pro"
	PlanEnterprise PlanName = "enterprise"
)

var planNames = []PlanName{PlanFree, PlanBasic, PlanPro, PlanEnterprise}

func (p PlanName) IsValid() bool { return member(planNames, p) }

// IsPaid reports whether the plan can be bought through checkout.
func (p PlanName) IsPaid() bool { return p.IsValid() && p != PlanFree }

func ParsePlanName(value string) (PlanName, error) {
	return parse(planNames, value, "plan")
}
