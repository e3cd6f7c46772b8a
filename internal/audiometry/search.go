// Package audiometry walks the ear x frequency x intensity grid of a
// pure-tone screening and records the quietest level heard for each pair.
package audiometry

import (
	"fmt"

	"github.com/RMahshie/hearcheck/pkg/models"
)

// State is one immutable step of the ascending threshold search. Every
// transition returns a new State and leaves the receiver untouched.
type State struct {
	ladder     models.Ladder
	earIdx     int
	freqIdx    int
	levelIdx   int
	thresholds models.ThresholdMap
	complete   bool
}

// NewState starts at the left ear, first frequency, quietest level
func NewState(ladder models.Ladder) State {
	return State{ladder: ladder, thresholds: models.ThresholdMap{}}
}

// Complete reports whether every (ear, frequency) pair has a threshold
func (s State) Complete() bool {
	return s.complete
}

// Ladder returns the intensity ladder the search runs on
func (s State) Ladder() models.Ladder {
	return s.ladder
}

// EarIndex, FrequencyIndex and IntensityIndex expose the traversal position
func (s State) EarIndex() int       { return s.earIdx }
func (s State) FrequencyIndex() int { return s.freqIdx }
func (s State) IntensityIndex() int { return s.levelIdx }

// Tone returns the presentation at the current position. ok is false once complete.
func (s State) Tone() (spec models.ToneSpec, ok bool) {
	if s.complete {
		return models.ToneSpec{}, false
	}
	s.checkBounds()
	return models.ToneSpec{
		FrequencyHz: models.Frequencies[s.freqIdx],
		IntensityDB: s.ladder.Level(s.levelIdx),
		Ear:         models.Ears[s.earIdx],
	}, true
}

// Thresholds returns a copy of the thresholds recorded so far
func (s State) Thresholds() models.ThresholdMap {
	return s.thresholds.Clone()
}

// MarkHeard records the current level as the threshold and advances
func (s State) MarkHeard() State {
	spec, ok := s.Tone()
	if !ok {
		return s
	}
	return s.record(spec, models.HeardAt(spec.IntensityDB)).advance()
}

// MarkNotHeard steps one rung louder, or records NoResponse and advances
// when the ladder is exhausted
func (s State) MarkNotHeard() State {
	spec, ok := s.Tone()
	if !ok {
		return s
	}
	if s.levelIdx < s.ladder.Len()-1 {
		s.levelIdx++
		return s
	}
	return s.record(spec, models.NoResponse).advance()
}

func (s State) record(spec models.ToneSpec, t models.Threshold) State {
	if _, exists := s.thresholds.Get(spec.Ear, spec.FrequencyHz); exists {
		panic(fmt.Sprintf("threshold for %s/%d Hz recorded twice", spec.Ear, spec.FrequencyHz))
	}
	s.thresholds = s.thresholds.With(spec.Ear, spec.FrequencyHz, t)
	return s
}

func (s State) advance() State {
	s.levelIdx = 0
	switch {
	case s.freqIdx < len(models.Frequencies)-1:
		s.freqIdx++
	case s.earIdx < len(models.Ears)-1:
		s.earIdx++
		s.freqIdx = 0
	default:
		s.complete = true
	}
	return s
}

func (s State) checkBounds() {
	if s.earIdx < 0 || s.earIdx >= len(models.Ears) ||
		s.freqIdx < 0 || s.freqIdx >= len(models.Frequencies) ||
		s.levelIdx < 0 || s.levelIdx >= s.ladder.Len() {
		panic(fmt.Sprintf("search position out of range: ear=%d freq=%d level=%d", s.earIdx, s.freqIdx, s.levelIdx))
	}
}

// TotalPairs is the number of (ear, frequency) pairs in a full test
func TotalPairs() int {
	return len(models.Ears) * len(models.Frequencies)
}
