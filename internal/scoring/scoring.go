// Package scoring turns a threshold map into per-ear averages, scores,
// condition labels and advice.
package scoring

import (
	"math"

	"github.com/RMahshie/hearcheck/pkg/models"
)

// AsymmetryThresholdDB is the inter-ear difference that raises the asymmetry flag
const AsymmetryThresholdDB = 15.0

// AsymmetryWarning is shown alongside a flagged summary
const AsymmetryWarning = "Significant asymmetry between ears (15 dB or more). Professional evaluation strongly recommended."

// band is one row of the classification table. Rows are ordered by ceiling.
type band struct {
	ceiling   float64
	score     int
	condition string
	advice    string
}

var bands = []band{
	{20, 10, "Normal hearing", "No action needed. Just monitor over time."},
	{40, 8, "Mild hearing loss", "Monitor hearing; consider a checkup if issues persist."},
	{55, 6, "Moderate hearing loss", "Full evaluation recommended; hearing aids may help."},
	{70, 4, "Moderately-severe hearing loss", "Strongly consider hearing aids and an audiologist visit."},
	{90, 2, "Severe hearing loss", "Hearing aids likely beneficial; consult a specialist soon."},
	{math.Inf(1), 1, "Profound hearing loss", "Urgent: specialist evaluation required."},
}

func classify(avg float64) band {
	for _, b := range bands {
		if avg <= b.ceiling {
			return b
		}
	}
	// NaN compares false against every ceiling
	return bands[len(bands)-1]
}

// Normalize maps a recorded threshold onto the 0-100 scale.
// NoResponse is the worst case; anything else is |raw| clamped to [0, 100].
func Normalize(t models.Threshold) float64 {
	if t.NoResponse {
		return models.NoResponseDB
	}
	v := math.Abs(float64(t.DB))
	if v > 100 {
		return 100
	}
	return v
}

// EarAverage is the mean normalized threshold over all test frequencies,
// rounded to one decimal. Untested frequencies count as NoResponse.
func EarAverage(m models.ThresholdMap, ear models.Ear) float64 {
	sum := 0.0
	for _, f := range models.Frequencies {
		t, ok := m.Get(ear, f)
		if !ok {
			t = models.NoResponse
		}
		sum += Normalize(t)
	}
	return round1(sum / float64(len(models.Frequencies)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Score maps an average to 1..10; higher loss gives a lower score
func Score(avg float64) int {
	return classify(avg).score
}

// Condition returns the qualitative label for an average
func Condition(avg float64) string {
	return classify(avg).condition
}

// Advice returns the advice text for an average
func Advice(avg float64) string {
	return classify(avg).advice
}

// Asymmetry reports whether the two ear averages differ by at least 15 dB HL.
// The tolerance only absorbs float error from subtracting one-decimal averages.
func Asymmetry(leftAvg, rightAvg float64) bool {
	return math.Abs(leftAvg-rightAvg) >= AsymmetryThresholdDB-asymmetryTolerance
}

const asymmetryTolerance = 1e-9

// Ear scores a single ear
func Ear(m models.ThresholdMap, ear models.Ear) models.EarSummary {
	avg := EarAverage(m, ear)
	b := classify(avg)
	return models.EarSummary{
		Ear:       ear,
		Average:   avg,
		Score:     b.score,
		Condition: b.condition,
		Advice:    b.advice,
	}
}

// Audiogram returns chart points in frequency order. Untested pairs are nil.
func Audiogram(m models.ThresholdMap) []models.AudiogramPoint {
	points := make([]models.AudiogramPoint, 0, len(models.Frequencies))
	for _, f := range models.Frequencies {
		p := models.AudiogramPoint{FrequencyHz: f}
		if t, ok := m.Get(models.EarLeft, f); ok {
			v := Normalize(t)
			p.Left = &v
		}
		if t, ok := m.Get(models.EarRight, f); ok {
			v := Normalize(t)
			p.Right = &v
		}
		points = append(points, p)
	}
	return points
}

// Summarize scores both ears and flags asymmetry
func Summarize(m models.ThresholdMap) models.Summary {
	s := models.Summary{
		Left:      Ear(m, models.EarLeft),
		Right:     Ear(m, models.EarRight),
		Audiogram: Audiogram(m),
	}
	s.Asymmetry = Asymmetry(s.Left.Average, s.Right.Average)
	if s.Asymmetry {
		s.AsymmetryWarning = AsymmetryWarning
	}
	return s
}
