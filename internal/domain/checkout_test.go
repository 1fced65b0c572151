package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusPaid, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusPaid, StatusPending, false},
		{StatusPaid, StatusExpired, false},
		{StatusExpired, StatusPaid, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPlanPriceMinorUnits(t *testing.T) {
	tests := []struct {
		planID string
		want   int64
	}{
		{PlanMonthly, 8990},
		{PlanSemiannual, 6990},
		{PlanAnnual, 4990},
	}

	for _, tt := range tests {
		plan, ok := PlanByID(tt.planID)
		if !ok {
			t.Fatalf("plan %q not in catalog", tt.planID)
		}
		if got := plan.PriceMinorUnits(); got != tt.want {
			t.Errorf("%s: PriceMinorUnits() = %d, want %d", tt.planID, got, tt.want)
		}
	}
}

func TestPlanExpirationFrom(t *testing.T) {
	base := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		planID string
		want   time.Time
	}{
		{PlanMonthly, time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)},
		{PlanSemiannual, time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)},
		{PlanAnnual, time.Date(2027, 3, 15, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		plan, _ := PlanByID(tt.planID)
		if got := plan.ExpirationFrom(base); !got.Equal(tt.want) {
			t.Errorf("%s: ExpirationFrom = %v, want %v", tt.planID, got, tt.want)
		}
	}
}

func TestPaymentOrderTotal(t *testing.T) {
	order := PaymentOrder{
		Items: []OrderItem{
			{Amount: 8990, Quantity: 1},
			{Amount: 500, Quantity: 2},
		},
	}
	if got := order.Total(); got != 9990 {
		t.Errorf("Total() = %d, want 9990", got)
	}
}
