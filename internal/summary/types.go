// Package summary turns timestamped transcripts into cited, sectioned
// meeting summaries using an LLM, and converts summaries into editor blocks.
package summary

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/d9705996/huddle/internal/model"
)

// Template selects the sections and prompt of a summary.
type Template string

// Known templates.
const (
	TemplateDaily                 Template = "DAILY"
	TemplateDemo                  Template = "DEMO"
	TemplateRequirementsGathering Template = "REQUIREMENTS_GATHERING"
	TemplateKickoff               Template = "KICKOFF"
)

// TemplateFor maps a meeting type to its template, defaulting to DAILY.
func TemplateFor(t model.MeetingType) Template {
	switch t {
	case model.MeetingDemo:
		return TemplateDemo
	case model.MeetingRequirementsGathering:
		return TemplateRequirementsGathering
	case model.MeetingKickoff:
		return TemplateKickoff
	default:
		return TemplateDaily
	}
}

// Millis is a millisecond offset into a recording. It accepts fractional
// JSON numbers, which some models emit, and rounds them.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return err
	}
	*m = Millis(math.Round(f))
	return nil
}

// Segment is one transcript segment.
type Segment struct {
	StartMs    Millis   `json:"start_ms"`
	EndMs      Millis   `json:"end_ms"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Citation points back at the transcript segment a point came from.
type Citation struct {
	StartMs Millis `json:"start_ms"`
	EndMs   Millis `json:"end_ms"`
}

// Point is one summary statement with its citations.
type Point struct {
	Point          string     `json:"point"`
	SourceSegments []Citation `json:"source_segments"`
}

// Summary maps a section key to its points.
type Summary map[string][]Point

// Usage is LLM token usage.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add returns u + o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// Result is a summary with the usage spent producing it.
type Result struct {
	Summary Summary `json:"summary"`
	Usage   Usage   `json:"usage"`
}
