package scoring

import (
	"testing"

	"github.com/RMahshie/hearcheck/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func uniformMap(db int) models.ThresholdMap {
	m := models.ThresholdMap{}
	for _, ear := range models.Ears {
		for _, f := range models.Frequencies {
			m = m.With(ear, f, models.HeardAt(db))
		}
	}
	return m
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   models.Threshold
		want float64
	}{
		{"no response", models.NoResponse, 100},
		{"zero", models.HeardAt(0), 0},
		{"in range", models.HeardAt(35), 35},
		{"negative gain", models.HeardAt(-45), 45},
		{"above scale", models.HeardAt(120), 100},
		{"far below scale", models.HeardAt(-130), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestEarAverage(t *testing.T) {
	t.Run("all twenty", func(t *testing.T) {
		assert.Equal(t, 20.0, EarAverage(uniformMap(20), models.EarLeft))
	})

	t.Run("rounded to one decimal", func(t *testing.T) {
		m := uniformMap(0).With(models.EarLeft, 250, models.HeardAt(5))
		// 5 / 6 = 0.8333
		assert.Equal(t, 0.8, EarAverage(m, models.EarLeft))
	})

	t.Run("no response contributes the maximum", func(t *testing.T) {
		m := uniformMap(10).With(models.EarRight, 8000, models.NoResponse)
		// (5*10 + 100) / 6 = 25
		assert.Equal(t, 25.0, EarAverage(m, models.EarRight))
		assert.Equal(t, 10.0, EarAverage(m, models.EarLeft))
	})

	t.Run("missing frequencies count as no response", func(t *testing.T) {
		assert.Equal(t, 100.0, EarAverage(models.ThresholdMap{}, models.EarLeft))
	})
}

func TestClassification(t *testing.T) {
	tests := []struct {
		avg       float64
		score     int
		condition string
	}{
		{0, 10, "Normal hearing"},
		{20, 10, "Normal hearing"},
		{20.1, 8, "Mild hearing loss"},
		{40, 8, "Mild hearing loss"},
		{55, 6, "Moderate hearing loss"},
		{55.1, 4, "Moderately-severe hearing loss"},
		{70, 4, "Moderately-severe hearing loss"},
		{90, 2, "Severe hearing loss"},
		{90.1, 1, "Profound hearing loss"},
		{100, 1, "Profound hearing loss"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.score, Score(tt.avg), "score for %.1f", tt.avg)
		assert.Equal(t, tt.condition, Condition(tt.avg), "condition for %.1f", tt.avg)
		assert.NotEmpty(t, Advice(tt.avg))
	}

	assert.Contains(t, Advice(100), "Urgent")
	assert.Contains(t, Advice(10), "monitor")
}

func TestAsymmetry(t *testing.T) {
	assert.True(t, Asymmetry(50, 35))
	assert.True(t, Asymmetry(35, 50))
	assert.False(t, Asymmetry(50, 35.1))
	assert.False(t, Asymmetry(50, 35.04))
	assert.True(t, Asymmetry(35.1, 20.1))
	assert.True(t, Asymmetry(65.04, 50))
	assert.False(t, Asymmetry(20, 20))
}

func TestSummarize(t *testing.T) {
	s := Summarize(uniformMap(20))

	assert.Equal(t, 20.0, s.Left.Average)
	assert.Equal(t, 10, s.Left.Score)
	assert.Equal(t, "Normal hearing", s.Left.Condition)
	assert.Equal(t, s.Left.Average, s.Right.Average)
	assert.False(t, s.Asymmetry)
	assert.Empty(t, s.AsymmetryWarning)

	require.Len(t, s.Audiogram, len(models.Frequencies))
	for i, p := range s.Audiogram {
		assert.Equal(t, models.Frequencies[i], p.FrequencyHz)
		require.NotNil(t, p.Left)
		assert.Equal(t, 20.0, *p.Left)
	}
}

func TestSummarize_FlagsAsymmetry(t *testing.T) {
	m := uniformMap(10)
	for _, f := range models.Frequencies {
		m = m.With(models.EarRight, f, models.HeardAt(50))
	}

	s := Summarize(m)

	assert.True(t, s.Asymmetry)
	assert.Equal(t, AsymmetryWarning, s.AsymmetryWarning)
	assert.Equal(t, "Moderate hearing loss", s.Right.Condition)
}

func TestAudiogram_Partial(t *testing.T) {
	m := models.ThresholdMap{}.With(models.EarLeft, 250, models.NoResponse)

	points := Audiogram(m)

	require.NotNil(t, points[0].Left)
	assert.Equal(t, 100.0, *points[0].Left)
	assert.Nil(t, points[0].Right)
	assert.Nil(t, points[1].Left)
}

func TestProperty_EarAverageMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		levels := rapid.SliceOfN(rapid.IntRange(0, 20), len(models.Frequencies), len(models.Frequencies)).Draw(t, "levels")
		m := models.ThresholdMap{}
		for i, f := range models.Frequencies {
			m = m.With(models.EarLeft, f, models.HeardAt(levels[i]*5))
		}
		before := EarAverage(m, models.EarLeft)

		idx := rapid.IntRange(0, len(models.Frequencies)-1).Draw(t, "idx")
		bump := rapid.IntRange(1, 20).Draw(t, "bump")
		var raised models.Threshold
		if rapid.Bool().Draw(t, "toNoResponse") {
			raised = models.NoResponse
		} else {
			raised = models.HeardAt(levels[idx]*5 + bump*5)
		}
		after := EarAverage(m.With(models.EarLeft, models.Frequencies[idx], raised), models.EarLeft)

		if after < before {
			t.Fatalf("average decreased from %.1f to %.1f", before, after)
		}
	})
}

func TestProperty_ScoreNonIncreasing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(0, 100).Draw(t, "a")
		b := rapid.Float64Range(0, 100).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		if Score(b) > Score(a) {
			t.Fatalf("score(%.2f)=%d above score(%.2f)=%d", b, Score(b), a, Score(a))
		}
	})
}
