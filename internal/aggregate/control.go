package aggregate

import (
	"math"
	"strings"

	"cashflowd/cashflow-ingest/internal/cct"
	"cashflowd/cashflow-ingest/internal/models"
	"cashflowd/cashflow-ingest/internal/semantic"

	"github.com/shopspring/decimal"
)

// epsilon floors near-zero denominators so a day without flow yields
// ratios of approximately zero rather than a division by zero.
const epsilon = 1e-9

type controlDay struct {
	counts   map[string]int
	sums     map[string]decimal.Decimal
	tokens   map[string]struct{}
	partial  int
	unknowns int
}

// ComputeDailyControl classifies every event through the semantic
// classifier and the CCT engine, buckets it by {CCT}_{IN,OUT} per day
// and derives the per-day control scalars. Every one of the 12 bucket
// keys is present in each day's output, zero-valued where unused.
func ComputeDailyControl(events []models.CanonicalTxn, engine *cct.Engine) map[string]models.DailyControl {
	days := map[string]*controlDay{}

	for _, event := range events {
		day := event.Day()
		state, ok := days[day]
		if !ok {
			state = &controlDay{
				counts: map[string]int{},
				sums:   map[string]decimal.Decimal{},
				tokens: map[string]struct{}{},
			}
			days[day] = state
		}

		sem := semantic.Classify(event)
		result := engine.Classify(sem)
		if result.CCT == models.CCTUnknown {
			state.unknowns++
		}

		bucket := models.BucketKey(result.CCT, event.Direction)
		state.counts[bucket]++
		state.sums[bucket] = state.sums[bucket].Add(event.Amount)

		if event.RawCounterpartyToken != "" {
			state.tokens[event.RawCounterpartyToken] = struct{}{}
		}
		if event.PartialRecord {
			state.partial++
		}
	}

	result := map[string]models.DailyControl{}
	for day, state := range days {
		result[day] = finalizeDay(day, state)
	}
	return result
}

func finalizeDay(day string, state *controlDay) models.DailyControl {
	counts := map[string]int{}
	sums := map[string]decimal.Decimal{}
	for _, key := range models.ControlBucketKeys() {
		counts[key] = state.counts[key]
		sums[key] = state.sums[key].Round(2)
	}

	totalIn := decimal.Zero
	totalOut := decimal.Zero
	for key, sum := range state.sums {
		if strings.HasSuffix(key, "_IN") {
			totalIn = totalIn.Add(sum)
		} else {
			totalOut = totalOut.Add(sum)
		}
	}
	totalFlow := totalIn.Add(totalOut)

	freeNet := state.sums[models.BucketKey(models.CCTFree, models.DirectionCredit)].
		Sub(state.sums[models.BucketKey(models.CCTFree, models.DirectionDebit)])

	artificialIn := state.sums[models.BucketKey(models.CCTArtificial, models.DirectionCredit)]
	passThrough := state.sums[models.BucketKey(models.CCTPassThrough, models.DirectionCredit)].
		Add(state.sums[models.BucketKey(models.CCTPassThrough, models.DirectionDebit)])
	unknownFlow := state.sums[models.BucketKey(models.CCTUnknown, models.DirectionCredit)].
		Add(state.sums[models.BucketKey(models.CCTUnknown, models.DirectionDebit)])

	return models.DailyControl{
		Day:    day,
		Counts: counts,
		Sums:   sums,
		Derived: models.ControlDerived{
			FreeCashNet:          freeNet.Round(2),
			OwnerDependencyRatio: ratio(artificialIn, totalIn),
			PassThroughRatio:     ratio(passThrough, totalFlow),
			UnknownFlowRatio:     ratio(unknownFlow, totalFlow),
			UniquePayersCount:    len(state.tokens),
			AcceptedPartialRows:  state.partial,
			UnknownCCTCount:      state.unknowns,
		},
	}
}

// ratio divides with an epsilon floor on the denominator and rounds to
// six decimal places.
func ratio(numerator, denominator decimal.Decimal) float64 {
	den := math.Max(epsilon, denominator.InexactFloat64())
	return math.Round(numerator.InexactFloat64()/den*1e6) / 1e6
}
