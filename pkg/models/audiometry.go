package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Ear identifies which ear a tone is presented to
type Ear string

const (
	EarLeft  Ear = "left"
	EarRight Ear = "right"
)

// Ears is the traversal order: the left ear is tested fully before the right
var Ears = []Ear{EarLeft, EarRight}

// Frequencies is the fixed test order in Hz, also the audiogram axis order
var Frequencies = []int{250, 500, 1000, 2000, 4000, 8000}

// IntensityStepDB is the distance between two adjacent ladder rungs
const IntensityStepDB = 5

// NoResponseDB is the value a NoResponse threshold takes on the 0-100 scale
const NoResponseDB = 100

// Ladder is the ascending set of presentation levels in dB HL
type Ladder struct {
	MinDB int `json:"min_db" doc:"Quietest presentation level (dB HL)"`
	MaxDB int `json:"max_db" doc:"Loudest presentation level (dB HL)"`
}

// DefaultLadder spans 0..70 dB HL
func DefaultLadder() Ladder {
	return Ladder{MinDB: 0, MaxDB: 70}
}

// Validate checks the ladder is non-empty and aligned to the step
func (l Ladder) Validate() error {
	if l.MaxDB < l.MinDB {
		return fmt.Errorf("invalid intensity ladder: max %d below min %d", l.MaxDB, l.MinDB)
	}
	if (l.MaxDB-l.MinDB)%IntensityStepDB != 0 {
		return fmt.Errorf("invalid intensity ladder: span %d..%d is not a multiple of %d dB", l.MinDB, l.MaxDB, IntensityStepDB)
	}
	return nil
}

// Len returns the number of rungs
func (l Ladder) Len() int {
	return (l.MaxDB-l.MinDB)/IntensityStepDB + 1
}

// Level returns the dB HL value of rung i. It panics outside the ladder.
func (l Ladder) Level(i int) int {
	if i < 0 || i >= l.Len() {
		panic(fmt.Sprintf("intensity index %d outside ladder of %d rungs", i, l.Len()))
	}
	return l.MinDB + i*IntensityStepDB
}

// Levels returns every rung in ascending order
func (l Ladder) Levels() []int {
	out := make([]int, l.Len())
	for i := range out {
		out[i] = l.Level(i)
	}
	return out
}

// Threshold is a recorded hearing threshold: either a ladder level or NoResponse
type Threshold struct {
	DB         int
	NoResponse bool
}

// HeardAt returns a threshold recorded at level db
func HeardAt(db int) Threshold {
	return Threshold{DB: db}
}

// NoResponse is the sentinel for a pair whose whole ladder went unheard
var NoResponse = Threshold{NoResponse: true}

func (t Threshold) String() string {
	if t.NoResponse {
		return "NR"
	}
	return strconv.Itoa(t.DB)
}

// MarshalJSON encodes a heard threshold as a number and NoResponse as "no_response"
func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.NoResponse {
		return []byte(`"no_response"`), nil
	}
	return []byte(strconv.Itoa(t.DB)), nil
}

// UnmarshalJSON accepts the forms produced by MarshalJSON
func (t *Threshold) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "no_response" {
			return fmt.Errorf("unknown threshold marker %q", s)
		}
		*t = NoResponse
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode threshold: %w", err)
	}
	*t = HeardAt(n)
	return nil
}

// EarThresholds maps frequency (Hz) to the recorded threshold
type EarThresholds map[int]Threshold

// ThresholdMap maps ear to its per-frequency thresholds
type ThresholdMap map[Ear]EarThresholds

// Get returns the threshold for (ear, freq) if one was recorded
func (m ThresholdMap) Get(ear Ear, freq int) (Threshold, bool) {
	byFreq, ok := m[ear]
	if !ok {
		return Threshold{}, false
	}
	t, ok := byFreq[freq]
	return t, ok
}

// Count returns how many (ear, frequency) pairs have an entry
func (m ThresholdMap) Count() int {
	n := 0
	for _, byFreq := range m {
		n += len(byFreq)
	}
	return n
}

// Clone returns a deep copy
func (m ThresholdMap) Clone() ThresholdMap {
	out := make(ThresholdMap, len(m))
	for ear, byFreq := range m {
		cp := make(EarThresholds, len(byFreq))
		for f, t := range byFreq {
			cp[f] = t
		}
		out[ear] = cp
	}
	return out
}

// With returns a copy of m with (ear, freq) set to t. The receiver is untouched.
func (m ThresholdMap) With(ear Ear, freq int, t Threshold) ThresholdMap {
	out := m.Clone()
	if out[ear] == nil {
		out[ear] = EarThresholds{}
	}
	out[ear][freq] = t
	return out
}

// ToneSpec is what the threshold search hands to the synthesizer
type ToneSpec struct {
	FrequencyHz int `json:"frequency_hz" doc:"Tone frequency in Hz"`
	IntensityDB int `json:"intensity_db" doc:"Presentation level in dB HL"`
	Ear         Ear `json:"ear" enum:"left,right" doc:"Ear the tone is panned to"`
}

// SessionView is the read-only projection of a test session
type SessionView struct {
	ID          string       `json:"id" doc:"Session identifier"`
	Ear         Ear          `json:"ear,omitempty" doc:"Ear under test"`
	FrequencyHz int          `json:"frequency_hz,omitempty" doc:"Frequency under test"`
	IntensityDB int          `json:"intensity_db" doc:"Current presentation level (dB HL)"`
	Complete    bool         `json:"complete" doc:"Whether every ear/frequency pair has a threshold"`
	Playing     bool         `json:"playing" doc:"Whether a tone is in flight"`
	Tested      int          `json:"tested" doc:"Number of ear/frequency pairs recorded"`
	Total       int          `json:"total" doc:"Number of ear/frequency pairs in the test"`
	Thresholds  ThresholdMap `json:"thresholds" doc:"Thresholds recorded so far"`
}

// Frame is a window of the tone currently playing, for waveform display
type Frame struct {
	Playing     bool      `json:"playing" doc:"Whether a tone is in flight"`
	Ear         Ear       `json:"ear,omitempty" doc:"Ear the tone is panned to"`
	FrequencyHz int       `json:"frequency_hz,omitempty" doc:"Tone frequency"`
	OffsetMs    int64     `json:"offset_ms" doc:"Position of the window within the tone"`
	SampleRate  int       `json:"sample_rate" doc:"Samples per second"`
	Left        []float32 `json:"left" doc:"Left channel samples"`
	Right       []float32 `json:"right" doc:"Right channel samples"`
}
