// Package metrics implements the performance tracking engine of a
// simulation: a set of stateful metric units driven through a fixed
// lifecycle by a tracker, emitting one structured packet per tick boundary.
package metrics

import (
	"encoding/json"
	"math"
	"time"
)

// FieldMap holds named scalar fields inside a packet. Values JSON cannot
// represent (NaN, infinities) marshal as null.
type FieldMap map[string]float64

// MarshalJSON implements json.Marshaler.
func (m FieldMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonNumber(v)
	}
	return json.Marshal(out)
}

// PeriodPerf is one period-scoped section of a packet: the period's open and
// close instants plus the fields written by metric units.
type PeriodPerf struct {
	PeriodOpen  time.Time
	PeriodClose time.Time
	Fields      FieldMap
}

// NewPeriodPerf creates a period section with an empty field map.
func NewPeriodPerf(open, close time.Time) *PeriodPerf {
	return &PeriodPerf{
		PeriodOpen:  open,
		PeriodClose: close,
		Fields:      make(FieldMap),
	}
}

// MarshalJSON flattens the period window and the metric fields into a single
// object, which is the wire layout reporting layers consume.
func (p *PeriodPerf) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+2)
	for k, v := range p.Fields {
		out[k] = jsonNumber(v)
	}
	out["period_open"] = p.PeriodOpen
	out["period_close"] = p.PeriodClose
	return json.Marshal(out)
}

// Packet is the structured output of one tick-boundary call. MinutePerf is
// set by bar closes and DailyPerf by session closes; exactly one of the two
// is non-nil.
type Packet struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	CapitalBase float64   `json:"capital_base"`
	Progress    float64   `json:"progress"`

	MinutePerf *PeriodPerf `json:"minute_perf,omitempty"`
	DailyPerf  *PeriodPerf `json:"daily_perf,omitempty"`

	CumulativePerf FieldMap `json:"cumulative_perf"`

	// CumulativeRiskMetrics is reserved for downstream risk layers and is
	// always empty at this layer.
	CumulativeRiskMetrics FieldMap `json:"cumulative_risk_metrics"`
}

// SummaryPacket is the flat simulation-end packet. Each metric unit appends
// its finalized whole-history fields directly; values are scalars or
// per-session series.
type SummaryPacket map[string]any

func jsonNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
