package models

import (
	"encoding/json"
	"math"
)

// Metric is a numeric indicator value with an explicit unavailable state.
// The zero value is unavailable. "Not computed" and "computed as zero" must
// never be conflated: a Metric is only valid when its value was actually
// derived from sufficient data.
type Metric struct {
	Val   float64
	Valid bool
}

// MetricOf returns a valid Metric. Non-finite inputs yield an invalid Metric
// so NaN/Inf can never leak into serialized output or boolean composites.
func MetricOf(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{Val: v, Valid: true}
}

// Round returns the metric rounded to the given number of decimal places.
// Invalid metrics stay invalid.
func (m Metric) Round(places int) Metric {
	if !m.Valid {
		return m
	}
	pow := math.Pow(10, float64(places))
	return Metric{Val: math.Round(m.Val*pow) / pow, Valid: true}
}

// Or returns the metric's value, or def when unavailable.
func (m Metric) Or(def float64) float64 {
	if !m.Valid {
		return def
	}
	return m.Val
}

// MarshalJSON encodes a valid Metric as its number and an invalid one as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Val)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MetricOf(v)
	return nil
}
