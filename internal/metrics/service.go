package metrics

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/AngelCh415/nbd-kiosk/internal/datewin"
	"github.com/AngelCh415/nbd-kiosk/internal/models"
)

// ComputeRates converts the four funnel counts into the three phase
// percentages. A zero denominator yields 0 for that phase only.
func ComputeRates(total, connected, interested, converted float64) models.ConversionRates {
	return models.ConversionRates{
		FirstPhase:  pct(connected, total),
		SecondPhase: pct(interested, connected),
		ThirdPhase:  pct(converted, interested),
	}
}

func pct(num, den float64) float64 {
	num, den = clean(num), clean(den)
	if den == 0 {
		return 0
	}
	v := num / den * 100
	if v > 100 {
		v = 100
	}
	return round2(v)
}

// NaN, Inf y negativos cuentan como 0
func clean(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func round2(f float64) float64 { return decimal.NewFromFloat(f).Round(2).InexactFloat64() }

func Header(f models.FunnelSnapshot, r models.RosterSnapshot, now time.Time) models.HeaderStats {
	h := models.HeaderStats{
		OverallConversionRatio: f.OverallConversionRatio,
		RemainingTarget:        f.RemainingTarget,
		TotalClosedDealers:     len(r.ClosedDealers),
	}
	for _, it := range r.Inventory {
		h.TotalStock += it.AvailableStock
		h.TotalSold += it.Sold
	}
	for _, d := range r.ClosedDealers {
		if datewin.Classify(d.DateValue, now) == datewin.Today {
			h.TodaysClosedDealers++
		}
	}
	return h
}

// TickerLines returns one celebratory line per dealer closed today, in
// collection order. An empty result means the ticker is hidden.
func TickerLines(dealers []models.ClosedDealer, now time.Time) []string {
	out := []string{}
	for _, d := range dealers {
		if datewin.Classify(d.DateValue, now) != datewin.Today {
			continue
		}
		out = append(out, d.BusinessName+" has joined us as New Dealer in "+strings.ToUpper(d.State))
	}
	return out
}

func Paginate[T any](rows []T, limit, offset int) []T {
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func AtoiDef(s string, d int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = n
	}
	if limit > 1000 {
		limit = 1000
	} // tope sano
	if offset > n {
		offset = n
	}
	return limit, offset
}
