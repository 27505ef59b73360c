package ledger

import (
	"errors"
	"strings"
)

// Plan is a subscription tier. It determines the allotment granted at each reset.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanFirm Plan = "firm"
)

var (
	// ErrNotFound is returned when the account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrInsufficientCredits is returned when a debit would take credits below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrUnknownPlan is returned for a tier that is not free, pro or firm.
	ErrUnknownPlan = errors.New("unknown plan")
)

var allotments = map[Plan]int{
	PlanFree: 5,
	PlanPro:  100,
	PlanFirm: 500,
}

// Plans lists the tiers in ascending order.
func Plans() []Plan {
	return []Plan{PlanFree, PlanPro, PlanFirm}
}

// ParsePlan accepts a tier name in any case.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", ErrUnknownPlan
	}
	return p, nil
}

func (p Plan) Valid() bool {
	_, ok := allotments[p]
	return ok
}

// Allotment returns the number of credits a cycle of plan p grants.
func Allotment(p Plan) (int, error) {
	n, ok := allotments[p]
	if !ok {
		return 0, ErrUnknownPlan
	}
	return n, nil
}
