package domain

import "time"

// ============================================================
// Checkout & Payment Sessions
// ============================================================

// CustomerData is the identity/contact data collected by the checkout form.
// Phone and Document may arrive display-formatted; they are normalized to
// digit-only form before being handed to a payment provider.
type CustomerData struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"` // CPF, 11 digits when normalized
}

// OrderItem is one line item of a PaymentOrder. Amount is in integer
// minor-currency units (centavos).
type OrderItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Amount      int64  `json:"amount"`
}

// PaymentOrder is the normalized payload handed to a payment provider at
// submit time. It is constructed per request and not retained once the
// provider session is obtained.
type PaymentOrder struct {
	Customer   CustomerData `json:"customer"`
	Items      []OrderItem  `json:"items"`
	Currency   string       `json:"currency"`
	ReturnURL  string       `json:"return_url"`
	SuccessURL string       `json:"success_url"`
	CancelURL  string       `json:"cancel_url"`
}

// Total returns the order total in minor units.
func (o *PaymentOrder) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Amount * int64(it.Quantity)
	}
	return total
}

// Billing session statuses. Transitions are one-way:
// pending -> {paid | expired | failed}. Terminal states are sticky.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusExpired = "expired"
	StatusFailed  = "failed"
)

// IsTerminalStatus reports whether a session status is final.
func IsTerminalStatus(status string) bool {
	return status == StatusPaid || status == StatusExpired || status == StatusFailed
}

// CanTransition reports whether a session may move from one status to
// another. Only pending -> terminal is allowed; a session never leaves a
// terminal state and never returns to pending.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	return from == StatusPending && IsTerminalStatus(to)
}

// BillingSession is the provider-side record of a requested payment
// (checkout session or PIX billing), or a locally-synthesized fallback
// when the provider call failed. It lives only for the duration of the
// payment flow.
type BillingSession struct {
	ID          string    `json:"id"`
	PlanID      string    `json:"plan_id"`
	URL         string    `json:"url,omitempty"`
	PaymentCode string    `json:"payment_code,omitempty"` // PIX copy-paste payload
	Status      string    `json:"status"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`

	// ProviderBacked is false for fallback sessions synthesized after a
	// provider failure; status checks for those never hit the network.
	ProviderBacked bool `json:"provider_backed"`
}

// Receipt is the confirmed-order summary rendered after a session is paid.
type Receipt struct {
	Plan          Plan      `json:"plan"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Method        string    `json:"method"`
	ExpiresOn     time.Time `json:"expires_on"`
}
