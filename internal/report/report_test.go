// internal/report/report_test.go
package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReport() *Report {
	return &Report{
		Emotion:     "happy",
		Confidence:  87,
		Translation: "I'm having a great time, let's keep playing!",
		BodyLanguage: BodyLanguage{
			Tail:    "high_wag",
			Ears:    "perked",
			Posture: "play_bow",
			Eyes:    "soft",
			Mouth:   "pant",
		},
		Health: Health{
			Gait:      "normal",
			Eyes:      "clear",
			Breathing: "normal",
			Skin:      "healthy",
			Urgency:   "green",
		},
		Tips: []string{"Walk now", "Try calming treats"},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validReport().Validate())

	// Tips may be empty.
	r := validReport()
	r.Tips = nil
	require.NoError(t, r.Validate())
}

func TestValidateRejectsBadEnum(t *testing.T) {
	r := validReport()
	r.Emotion = "excited"

	err := r.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "emotion", ve.Field)
	assert.Equal(t, "excited", ve.Value)
}

func TestValidateRejectsNestedEnum(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*Report)
	}{
		{"bodyLanguage.tail", func(r *Report) { r.BodyLanguage.Tail = "wagging" }},
		{"bodyLanguage.ears", func(r *Report) { r.BodyLanguage.Ears = "floppy" }},
		{"bodyLanguage.posture", func(r *Report) { r.BodyLanguage.Posture = "" }},
		{"bodyLanguage.eyes", func(r *Report) { r.BodyLanguage.Eyes = "open" }},
		{"bodyLanguage.mouth", func(r *Report) { r.BodyLanguage.Mouth = "closed" }},
		{"health.gait", func(r *Report) { r.Health.Gait = "running" }},
		{"health.eyes", func(r *Report) { r.Health.Eyes = "bright" }},
		{"health.breathing", func(r *Report) { r.Health.Breathing = "fast" }},
		{"health.skin", func(r *Report) { r.Health.Skin = "dry" }},
		{"health.urgency", func(r *Report) { r.Health.Urgency = "orange" }},
	}

	for _, tc := range cases {
		r := validReport()
		tc.mutate(r)

		var ve *ValidationError
		require.ErrorAs(t, r.Validate(), &ve, tc.field)
		assert.Equal(t, tc.field, ve.Field)
	}
}

func TestValidateRejectsBounds(t *testing.T) {
	r := validReport()
	r.Confidence = 101
	var ve *ValidationError
	require.ErrorAs(t, r.Validate(), &ve)
	assert.Equal(t, "confidence", ve.Field)

	r = validReport()
	r.Confidence = -1
	require.Error(t, r.Validate())

	r = validReport()
	r.Translation = ""
	require.ErrorAs(t, r.Validate(), &ve)
	assert.Equal(t, "translation", ve.Field)
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := json.Marshal(validReport())
	require.NoError(t, err)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, validReport(), r)
}

func TestDecodeMissingField(t *testing.T) {
	var doc map[string]json.RawMessage
	data, _ := json.Marshal(validReport())
	require.NoError(t, json.Unmarshal(data, &doc))
	delete(doc, "translation")
	data, _ = json.Marshal(doc)

	_, err := Decode(data)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "translation", ve.Field)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("not json at all"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestDecodeDefaultsTips(t *testing.T) {
	var doc map[string]json.RawMessage
	data, _ := json.Marshal(validReport())
	require.NoError(t, json.Unmarshal(data, &doc))
	delete(doc, "tips")
	data, _ = json.Marshal(doc)

	r, err := Decode(data)
	require.NoError(t, err)
	assert.NotNil(t, r.Tips)
	assert.Empty(t, r.Tips)
}
