package domain

import (
	"math"
	"time"
)

// Plan is a membership plan. The catalog is static: plans are enumerated
// in code, never persisted.
type Plan struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`  // decimal currency units, per period
	Period      string  `json:"period"` // billing period label, e.g. "mês"
	Discount    string  `json:"discount,omitempty"`
}

// Plan identifiers.
const (
	PlanMonthly    = "monthly"
	PlanSemiannual = "semiannual"
	PlanAnnual     = "annual"
)

var planCatalog = []Plan{
	{
		ID:          PlanMonthly,
		Name:        "Plano Mensal",
		Description: "Assinatura mensal com flexibilidade.",
		Price:       89.90,
		Period:      "mês",
	},
	{
		ID:          PlanSemiannual,
		Name:        "Plano Semestral",
		Description: "Assinatura semestral com desconto.",
		Price:       69.90,
		Period:      "mês",
		Discount:    "Economize R$ 20,00/mês",
	},
	{
		ID:          PlanAnnual,
		Name:        "Plano Anual",
		Description: "Assinatura anual com o melhor preço.",
		Price:       49.90,
		Period:      "mês",
		Discount:    "Economize R$ 40,00/mês",
	},
}

// Plans returns the full plan catalog.
func Plans() []Plan {
	out := make([]Plan, len(planCatalog))
	copy(out, planCatalog)
	return out
}

// PlanByID looks up a plan in the catalog.
func PlanByID(id string) (Plan, bool) {
	for _, p := range planCatalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PriceMinorUnits converts the plan price to integer minor-currency units
// (centavos). A PaymentOrder built for this plan must carry exactly this
// amount.
func (p Plan) PriceMinorUnits() int64 {
	return int64(math.Round(p.Price * 100))
}

// ExpirationFrom returns the membership expiration date for a purchase made
// at the given time: +1 month, +6 months or +1 year depending on the plan.
func (p Plan) ExpirationFrom(t time.Time) time.Time {
	switch p.ID {
	case PlanSemiannual:
		return t.AddDate(0, 6, 0)
	case PlanAnnual:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 1, 0)
	}
}
