// Package detect decides whether a freshly canonicalized snapshot warrants
// an archive write. The previous snapshot is passed in explicitly; the
// detector never reads storage itself.
package detect

import (
	"math"

	"github.com/epeers/etfarchive/internal/models"
)

// Decision is the verdict for one fund's fresh snapshot.
type Decision int

const (
	// Skip: same date, same holdings, nothing written.
	Skip Decision = iota
	// WriteSameDate: the issuer republished corrected data for the same
	// date. Latest and dated surfaces are replaced; the ledger's rows for
	// that date are superseded, never stacked.
	WriteSameDate
	// WriteNewDate: the as-of date advanced; full write across all surfaces.
	WriteNewDate
	// Regression: the resolved date precedes the archived one. Written off
	// as a resolver anomaly: nothing is touched until a later run shows
	// forward progress.
	Regression
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "SKIP"
	case WriteSameDate:
		return "WRITE_SAME_DATE"
	case WriteNewDate:
		return "WRITE_NEW_DATE"
	case Regression:
		return "REGRESSION"
	default:
		return "UNKNOWN"
	}
}

// WeightTolerance absorbs float formatting noise when comparing weights
// (0.0005 of a percentage point, well under any issuer's precision).
const WeightTolerance = 0.0005

// Decide compares a new snapshot against the previous latest for the same
// fund. prev may be empty (fund never archived), which is a WriteNewDate.
func Decide(newRecs, prev []models.HoldingRecord) Decision {
	if len(newRecs) == 0 {
		return Skip
	}
	if len(prev) == 0 {
		return WriteNewDate
	}

	newDate := newRecs[0].AsOfDate
	prevDate := prev[0].AsOfDate

	switch {
	case newDate.Before(prevDate):
		return Regression
	case newDate.After(prevDate):
		return WriteNewDate
	}

	if sameHoldings(newRecs, prev) {
		return Skip
	}
	return WriteSameDate
}

// Tag stamps NEW/EXISTING on the new records by diffing tickers against the
// previous snapshot, and synthesizes REMOVED rows (ledger only) for tickers
// that dropped out. Removed rows carry the new snapshot's date with zero
// weight and rank.
func Tag(newRecs, prev []models.HoldingRecord) (tagged, removed []models.HoldingRecord) {
	prevByKey := make(map[string]models.HoldingRecord, len(prev))
	for _, r := range prev {
		prevByKey[holdingKey(r)] = r
	}

	tagged = make([]models.HoldingRecord, len(newRecs))
	newKeys := make(map[string]bool, len(newRecs))
	for i, r := range newRecs {
		key := holdingKey(r)
		newKeys[key] = true
		if _, ok := prevByKey[key]; ok {
			r.Status = models.StatusExisting
		} else {
			r.Status = models.StatusNew
		}
		tagged[i] = r
	}

	if len(newRecs) == 0 {
		return tagged, nil
	}
	newDate := newRecs[0].AsOfDate
	confidence := newRecs[0].DateConfidence

	for _, r := range prev {
		if newKeys[holdingKey(r)] {
			continue
		}
		removed = append(removed, models.HoldingRecord{
			FundTicker:     r.FundTicker,
			Ticker:         r.Ticker,
			Name:           r.Name,
			WeightPct:      0,
			Rank:           0,
			AsOfDate:       newDate,
			Status:         models.StatusRemoved,
			DateConfidence: confidence,
		})
	}

	return tagged, removed
}

// sameHoldings compares the full multiset of (ticker, weight) pairs.
func sameHoldings(a, b []models.HoldingRecord) bool {
	if len(a) != len(b) {
		return false
	}

	weights := make(map[string]float64, len(b))
	for _, r := range b {
		weights[holdingKey(r)] = r.WeightPct
	}

	for _, r := range a {
		w, ok := weights[holdingKey(r)]
		if !ok {
			return false
		}
		if math.Abs(w-r.WeightPct) > WeightTolerance {
			return false
		}
	}
	return true
}

// holdingKey identifies a holding within one fund snapshot. Tickers are
// unique per snapshot; cash rows without a ticker fall back to the name.
func holdingKey(r models.HoldingRecord) string {
	if r.Ticker != "" {
		return r.Ticker
	}
	return "name:" + r.Name
}
