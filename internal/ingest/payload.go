package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/nbd-kiosk/internal/datewin"
	"github.com/AngelCh415/nbd-kiosk/internal/metrics"
	"github.com/AngelCh415/nbd-kiosk/internal/models"
)

var ErrMalformedPayload = errors.New("malformed payload")

// FunnelValueCount is the number of positional values a funnel update needs:
// three windows of four counts plus the two summary scalars.
const FunnelValueCount = 14

// flexNumber sigue la coerción numérica de las hojas de cálculo:
// números tal cual, strings numéricos parseados, true=1, el resto 0.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	*n = 0
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*n = flexNumber(finite(f))
		}
	case 't':
		*n = 1
	case 'f', 'n', '{', '[':
	default:
		var f float64
		if err := json.Unmarshal(b, &f); err == nil {
			*n = flexNumber(finite(f))
		}
	}
	return nil
}

// flexString acepta strings, números y booleanos; null queda vacío.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*s = flexString(strings.TrimSpace(v))
		}
	case 't':
		*s = "true"
	case 'f', 'n', '{', '[':
	default:
		*s = flexString(string(b))
	}
	return nil
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// funnelRow lee {"Value": ...}; cualquier otra forma vale 0.
type funnelRow struct{ Value flexNumber }

func (r *funnelRow) UnmarshalJSON(b []byte) error {
	r.Value = 0
	var obj struct {
		Value flexNumber `json:"Value"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		r.Value = obj.Value
	}
	return nil
}

type funnelEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// decodeRows requires a JSON array of rows.
func decodeRows(raw json.RawMessage) ([]funnelRow, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: rows are not an array", ErrMalformedPayload)
	}
	var rows []funnelRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return rows, nil
}

// DecodePushMessage accepts {"type":..., "data":[...]} or a bare array.
func DecodePushMessage(b []byte) ([]float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		return rowValues(decodeRows(b))
	}
	var env funnelEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return rowValues(decodeRows(env.Data))
}

func rowValues(rows []funnelRow, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = float64(r.Value)
	}
	return out, nil
}

// NormalizeFunnel is all-or-nothing: fewer than FunnelValueCount values is
// rejected and nothing is produced. Extra trailing values are ignored.
func NormalizeFunnel(values []float64, now time.Time) (models.FunnelUpdate, error) {
	if len(values) < FunnelValueCount {
		return models.FunnelUpdate{}, fmt.Errorf("%w: got %d values, need %d", ErrMalformedPayload, len(values), FunnelValueCount)
	}
	return models.FunnelUpdate{
		Data: models.DashboardData{
			// el primer reporte se muestra como "Today's Report"
			Yesterday: report(values[0:4], datewin.DayWindow(now)),
			Week:      report(values[4:8], datewin.WeekWindow(now)),
			Month:     report(values[8:12], datewin.MonthWindow(now)),
		},
		OverallConversionRatio: finite(values[12]),
		RemainingTarget:        finite(values[13]),
	}, nil
}

func report(v []float64, w models.Window) models.FunnelReport {
	c := models.FunnelCounts{
		TotalLeads:      toCount(v[0]),
		ConnectedLeads:  toCount(v[1]),
		InterestedLeads: toCount(v[2]),
		ClientConverted: toCount(v[3]),
	}
	return models.FunnelReport{
		FunnelCounts: c,
		ConversionRates: metrics.ComputeRates(
			float64(c.TotalLeads), float64(c.ConnectedLeads),
			float64(c.InterestedLeads), float64(c.ClientConverted)),
		Window: w,
	}
}

func toCount(f float64) int {
	f = finite(f)
	if f <= 0 {
		return 0
	}
	return int(math.Round(f))
}
