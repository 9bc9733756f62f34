// internal/report/report.go
package report

import (
	"encoding/json"
	"fmt"
)

// Subject describes the dog being analyzed. Supplied by the caller,
// immutable per analysis request.
type Subject struct {
	Breed    string  `json:"breed"`
	AgeYears float64 `json:"age"`
}

// BodyLanguage is the non-verbal cue breakdown.
type BodyLanguage struct {
	Tail    string `json:"tail"`
	Ears    string `json:"ears"`
	Posture string `json:"posture"`
	Eyes    string `json:"eyes"`
	Mouth   string `json:"mouth"`
}

// Health covers the vital-sign check and the urgency meter.
type Health struct {
	Gait      string `json:"gait"`
	Eyes      string `json:"eyes"`
	Breathing string `json:"breathing"`
	Skin      string `json:"skin"`
	Urgency   string `json:"urgency"`
}

// Report is the structured output of one analysis. Every enum field must
// hold one of its declared values; anything else fails validation as a
// whole, never as a partially-accepted report.
type Report struct {
	Emotion      string       `json:"emotion"`
	Confidence   int          `json:"confidence"`
	Translation  string       `json:"translation"`
	BodyLanguage BodyLanguage `json:"bodyLanguage"`
	Health       Health       `json:"health"`
	Tips         []string     `json:"tips"`
}

// Declared enum values for each field.
var (
	emotions   = []string{"happy", "anxious", "fear", "aggressive", "pain", "neutral"}
	tails      = []string{"high_wag", "low", "still", "tucked"}
	ears       = []string{"forward", "flat", "back", "perked"}
	postures   = []string{"relaxed", "tense", "crouched", "play_bow"}
	eyeStates  = []string{"soft", "hard", "whale_eye"}
	mouths     = []string{"relaxed", "pant", "lip_lick", "snarl"}
	gaits      = []string{"normal", "limping", "stiff"}
	eyeHealth  = []string{"clear", "red", "cloudy"}
	breathings = []string{"normal", "heavy", "labored"}
	skins      = []string{"healthy", "irritated"}
	urgencies  = []string{"green", "yellow", "red"}
)

// ValidationError describes a report that does not conform to the schema.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("report: missing or empty field %q", e.Field)
	}
	return fmt.Sprintf("report: field %q has invalid value %q", e.Field, e.Value)
}

// Validate checks every field against its declared enum or bound.
func (r *Report) Validate() error {
	checks := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"emotion", r.Emotion, emotions},
		{"bodyLanguage.tail", r.BodyLanguage.Tail, tails},
		{"bodyLanguage.ears", r.BodyLanguage.Ears, ears},
		{"bodyLanguage.posture", r.BodyLanguage.Posture, postures},
		{"bodyLanguage.eyes", r.BodyLanguage.Eyes, eyeStates},
		{"bodyLanguage.mouth", r.BodyLanguage.Mouth, mouths},
		{"health.gait", r.Health.Gait, gaits},
		{"health.eyes", r.Health.Eyes, eyeHealth},
		{"health.breathing", r.Health.Breathing, breathings},
		{"health.skin", r.Health.Skin, skins},
		{"health.urgency", r.Health.Urgency, urgencies},
	}

	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return &ValidationError{Field: c.field, Value: c.value}
		}
	}

	if r.Confidence < 0 || r.Confidence > 100 {
		return &ValidationError{Field: "confidence", Value: fmt.Sprintf("%d", r.Confidence)}
	}
	if r.Translation == "" {
		return &ValidationError{Field: "translation"}
	}

	return nil
}

// Decode parses model output into a Report, rejecting missing required
// fields as well as out-of-enum values.
func Decode(data []byte) (*Report, error) {
	var raw struct {
		Emotion      *string       `json:"emotion"`
		Confidence   *int          `json:"confidence"`
		Translation  *string       `json:"translation"`
		BodyLanguage *BodyLanguage `json:"bodyLanguage"`
		Health       *Health       `json:"health"`
		Tips         []string      `json:"tips"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "(malformed JSON)"}
	}

	required := []struct {
		field string
		ok    bool
	}{
		{"emotion", raw.Emotion != nil},
		{"confidence", raw.Confidence != nil},
		{"translation", raw.Translation != nil},
		{"bodyLanguage", raw.BodyLanguage != nil},
		{"health", raw.Health != nil},
	}
	for _, req := range required {
		if !req.ok {
			return nil, &ValidationError{Field: req.field}
		}
	}

	r := &Report{
		Emotion:      *raw.Emotion,
		Confidence:   *raw.Confidence,
		Translation:  *raw.Translation,
		BodyLanguage: *raw.BodyLanguage,
		Health:       *raw.Health,
		Tips:         raw.Tips,
	}
	if r.Tips == nil {
		r.Tips = []string{}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func contains(allowed []string, v string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
