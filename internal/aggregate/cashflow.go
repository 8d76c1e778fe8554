// Package aggregate computes the per-day derived aggregates that are
// the only transaction-shaped data allowed to persist: cashflow totals
// and CCT control buckets. Grouping by day is commutative, so input
// order never affects the output.
package aggregate

import (
	"cashflowd/cashflow-ingest/internal/models"
)

// ComputeDailyCashflow sums credit amounts into inflow and debit
// amounts into outflow per calendar day. Totals are rounded to two
// decimal places.
func ComputeDailyCashflow(events []models.CanonicalTxn) map[string]models.DailyCashflow {
	daily := map[string]models.DailyCashflow{}

	for _, event := range events {
		day := event.Day()
		bucket := daily[day]
		if event.Direction == models.DirectionCredit {
			bucket.Inflow = bucket.Inflow.Add(event.Amount)
		} else {
			bucket.Outflow = bucket.Outflow.Add(event.Amount)
		}
		daily[day] = bucket
	}

	for day, bucket := range daily {
		bucket.Inflow = bucket.Inflow.Round(2)
		bucket.Outflow = bucket.Outflow.Round(2)
		daily[day] = bucket
	}
	return daily
}
