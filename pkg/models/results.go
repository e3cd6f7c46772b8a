package models

// RecordVersion is the schema version written with every stored record
const RecordVersion = 1

// TestResultRecord is a finalized, persisted test outcome. Field names follow
// the stored JSON layout so existing result lists stay readable.
type TestResultRecord struct {
	Version        int          `json:"version" validate:"gte=1" doc:"Record schema version"`
	ID             string       `json:"id,omitempty" doc:"Record identifier"`
	Date           string       `json:"date" validate:"required" doc:"When the test finished (RFC 3339)"`
	LeftAvg        float64      `json:"leftAvg" validate:"gte=0,lte=100" doc:"Left ear average (dB HL)"`
	RightAvg       float64      `json:"rightAvg" validate:"gte=0,lte=100" doc:"Right ear average (dB HL)"`
	LeftCondition  string       `json:"leftCondition" validate:"required" doc:"Left ear condition label"`
	RightCondition string       `json:"rightCondition" validate:"required" doc:"Right ear condition label"`
	Thresholds     ThresholdMap `json:"thresholds,omitempty" doc:"Per-frequency thresholds"`
}

// EarSummary is the scored outcome for one ear
type EarSummary struct {
	Ear       Ear     `json:"ear" enum:"left,right" doc:"Ear"`
	Average   float64 `json:"average" doc:"Mean normalized threshold (dB HL)"`
	Score     int     `json:"score" minimum:"1" maximum:"10" doc:"Hearing score (1-10)"`
	Condition string  `json:"condition" doc:"Qualitative condition label"`
	Advice    string  `json:"advice" doc:"Advice text"`
}

// AudiogramPoint is one frequency column of the audiogram chart. A nil value
// means the pair has not been tested yet.
type AudiogramPoint struct {
	FrequencyHz int      `json:"frequency_hz" doc:"Frequency in Hz"`
	Left        *float64 `json:"left" doc:"Left ear normalized threshold (dB HL)"`
	Right       *float64 `json:"right" doc:"Right ear normalized threshold (dB HL)"`
}

// Summary is everything the results screen shows for a finished test
type Summary struct {
	Left             EarSummary       `json:"left" doc:"Left ear outcome"`
	Right            EarSummary       `json:"right" doc:"Right ear outcome"`
	Asymmetry        bool             `json:"asymmetry" doc:"Whether the ears differ by 15 dB HL or more"`
	AsymmetryWarning string           `json:"asymmetry_warning,omitempty" doc:"Warning shown when asymmetry is flagged"`
	Audiogram        []AudiogramPoint `json:"audiogram" doc:"Chart-ready thresholds"`
}
