// Package signals implements the indicator engine and signal composer
package signals

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jlchn/tide/internal/models"
)

// MinBars is the default minimum series length for the standard indicator set
const MinBars = 60

// ErrInsufficientHistory is returned when a series is too short to compute
// the standard indicator set
var ErrInsufficientHistory = errors.New("insufficient history")

// Series is a cleaned, date-ascending view over one instrument's daily bars
// with the column arrays the indicator engine reads pre-extracted. Bars with
// a non-positive close are dropped; duplicate dates keep the later bar.
type Series struct {
	bars    []models.Bar
	closes  []float64
	highs   []float64
	lows    []float64
	volumes []float64
}

// NewSeries builds a Series from raw provider bars. minBars <= 0 selects the
// default minimum. Returns ErrInsufficientHistory when fewer than minBars
// usable bars remain after cleaning.
func NewSeries(bars []models.Bar, minBars int) (*Series, error) {
	if minBars <= 0 {
		minBars = MinBars
	}

	sorted := make([]models.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	cleaned := make([]models.Bar, 0, len(sorted))
	for _, b := range sorted {
		if b.Close <= 0 {
			continue
		}
		if n := len(cleaned); n > 0 && sameDay(cleaned[n-1].Date, b.Date) {
			cleaned[n-1] = b
			continue
		}
		cleaned = append(cleaned, b)
	}

	if len(cleaned) < minBars {
		return nil, fmt.Errorf("%w: %d bars, need %d", ErrInsufficientHistory, len(cleaned), minBars)
	}

	s := &Series{
		bars:    cleaned,
		closes:  make([]float64, len(cleaned)),
		highs:   make([]float64, len(cleaned)),
		lows:    make([]float64, len(cleaned)),
		volumes: make([]float64, len(cleaned)),
	}
	for i, b := range cleaned {
		s.closes[i] = b.Close
		s.highs[i] = b.High
		s.lows[i] = b.Low
		s.volumes[i] = float64(b.Volume)
	}
	return s, nil
}

// Len returns the number of bars in the series
func (s *Series) Len() int {
	return len(s.bars)
}

// Bars returns the cleaned bars, oldest first
func (s *Series) Bars() []models.Bar {
	return s.bars
}

// LastBar returns the most recent bar
func (s *Series) LastBar() models.Bar {
	return s.bars[len(s.bars)-1]
}

// Closes returns the closing prices, oldest first
func (s *Series) Closes() []float64 {
	return s.closes
}

// Highs returns the high prices, oldest first
func (s *Series) Highs() []float64 {
	return s.highs
}

// Lows returns the low prices, oldest first
func (s *Series) Lows() []float64 {
	return s.lows
}

// Volumes returns the volumes as floats, oldest first
func (s *Series) Volumes() []float64 {
	return s.volumes
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
