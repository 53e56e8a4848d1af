// Package history evaluates each customer's month-by-month activation history per product.
package history

import (
	"fmt"

	apperrors "github.com/easymoney/easymoney-bi/internal/errors"
)

// Case is the shape of an activation history.
type Case string

const (
	CaseAlwaysActive Case = "always_active"
	CaseNeverActive  Case = "never_active"
	CaseMixed        Case = "mixed"
)

// Record is the evaluation of one (customer, product) history.
type Record struct {
	CustomerID         string
	Product            string
	MonthsObserved     int
	MonthsActive       int
	LongestStreakRatio float64
	ActiveRatio        float64
	InactiveRatio      float64
	Case               Case
}

// Contracted reports whether the product was active at least one month.
func (r Record) Contracted() bool {
	return r.MonthsActive >= 1
}

// Evaluate scores a chronologically ordered 0/1 activation sequence.
//
// A never-active history reports an inactive ratio of 0, not 1.
func Evaluate(flags []int8) (Record, error) {
	t := len(flags)
	if t == 0 {
		return Record{}, apperrors.NewValidationError(apperrors.CodeEmptyHistory, "activation history is empty")
	}

	ones, run, best := 0, 0, 0
	for i, f := range flags {
		switch f {
		case 1:
			ones++
			run++
			if run > best {
				best = run
			}
		case 0:
			run = 0
		default:
			return Record{}, apperrors.NewValidationError(apperrors.CodeMalformedHistory,
				fmt.Sprintf("flag %d at position %d is not binary", f, i)).
				WithDetails(map[string]interface{}{"position": i, "value": int(f)})
		}
	}

	rec := Record{MonthsObserved: t, MonthsActive: ones}
	switch ones {
	case t:
		rec.Case = CaseAlwaysActive
		rec.LongestStreakRatio = 1
		rec.ActiveRatio = 1
		rec.InactiveRatio = 0
	case 0:
		rec.Case = CaseNeverActive
	default:
		rec.Case = CaseMixed
		rec.LongestStreakRatio = float64(best) / float64(t)
		rec.InactiveRatio = float64(t-ones) / float64(t)
		rec.ActiveRatio = 1 - rec.InactiveRatio
	}
	return rec, nil
}

// Split partitions records into contracted (active at least one month) and not contracted.
func Split(records []Record) (contracted, notContracted []Record) {
	for _, r := range records {
		if r.Contracted() {
			contracted = append(contracted, r)
		} else {
			notContracted = append(notContracted, r)
		}
	}
	return contracted, notContracted
}

// CustomersWithProducts returns, in first-seen order, the customers that
// contracted at least one product.
func CustomersWithProducts(records []Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if r.Contracted() && !seen[r.CustomerID] {
			seen[r.CustomerID] = true
			out = append(out, r.CustomerID)
		}
	}
	return out
}
