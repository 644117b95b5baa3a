package summary

import (
	"encoding/json"
	"strings"

	"github.com/d9705996/huddle/internal/apperr"
)

// Tool is the function schema the model is forced to call.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// TemplateConfig is the prompt and output schema of one template.
type TemplateConfig struct {
	Template Template
	Tool     Tool
	Sections []string
	prompt   string
}

// Empty returns a summary with every section present and empty.
func (c *TemplateConfig) Empty() Summary {
	s := make(Summary, len(c.Sections))
	for _, k := range c.Sections {
		s[k] = []Point{}
	}
	return s
}

// Prompt renders the map-phase prompt for a transcript.
func (c *TemplateConfig) Prompt(transcript string, l Locale) string {
	return strings.NewReplacer(
		"{locale_instruction}", LocaleInstruction(l),
		"{text}", transcript,
	).Replace(c.prompt)
}

const baseInstructions = `
      **CRITICAL INSTRUCTIONS:**
      1. For EACH point you extract, you MUST cite the original transcript segments it was derived from.
      2. If you cannot find any information for a specific section, return an empty array for it.
      3. {locale_instruction}
      4. Use the provided function to structure your output perfectly.

      **TRANSCRIPT WITH TIMESTAMP IDENTIFIERS:**
      {text}
    `

const reducePrompt = `You are a master summarization assistant. You have been given several partial summaries from different recordings of the same meeting.
        Your task is to expertly synthesize them into a single, final, and coherent summary.
        - Combine related points from the different summaries to create a comprehensive overview.
        - **Crucially, remove any duplicate information or redundant points.**
        - Ensure a logical flow and that the final summary is easy to read.
        - For each point in the final summary, you MUST correctly merge the 'source_segments' from the original points that formed it.
        - Your final output must be structured perfectly using the provided function.

        **CRITICAL INSTRUCTIONS:**
        1. {locale_instruction}
        2. If a section is empty across all partial summaries, return an empty array for it.

        **PARTIAL SUMMARIES TO COMBINE AND SYNTHESIZE:**
        {summaries_text}`

const reducePromptStreaming = `You are a master summarization assistant. You have been given several partial summaries (in JSON format) from different recordings of the same meeting. These summaries contain 'source_segments' with 'start_ms' timestamps.
  Your task is to expertly **synthesize** them into a single, final, and coherent summary, **outputting ONLY in MARKDOWN format**.

  **CRITICAL SYNTHESIS RULES:**
  1. **Combine related points** from the different input summaries into single, comprehensive points in the final output.
  2. **Crucially, REMOVE ALL duplicate information or redundant points.** Do NOT simply list points from the input.
  3. Ensure the final summary has a **logical flow** and is easy to read.
  4. For each synthesized point, accurately **merge and include ALL relevant 'start_ms' citation timestamps** from the original points that formed it.

  **CRITICAL MARKDOWN FORMAT INSTRUCTIONS:**
  1. {locale_instruction}
  2. Use '##' for section titles. Base the titles on the keys from the input JSON summaries (e.g., 'yesterdaysWork' becomes '## Yesterday's Work').
  3. Use standard markdown bullet points ('- ') for each summary point.
  4. **CITATION FORMAT:**
     - Append citations at the VERY END of the bullet point text.
     - Format **MUST** be square brackets containing the **exact 'start_ms' values**, separated by commas.
     - **Use REAL 'start_ms' timestamps**, NOT sequential numbers (like [1, 2, 3]).
     - **Example:** '- This is a summary point. [12345, 54321]'
     - **Example:** '- Another key decision was made. [98765]'
  5. **SEPARATOR:** You **MUST** put a double newline (\n\n) after EVERY block (after each '## Heading' and after each '- bullet point citation'). No extra lines.

  **PARTIAL SUMMARIES TO COMBINE (in JSON):**
  {summaries_text}`

func renderReduce(tmpl, summaries string, l Locale) string {
	return strings.NewReplacer(
		"{locale_instruction}", LocaleInstruction(l),
		"{summaries_text}", summaries,
	).Replace(tmpl)
}

var summaryPoint = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"point": map[string]any{"type": "string", "description": "A single sentence or key point."},
		"source_segments": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_ms": map[string]any{"type": "number"},
					"end_ms":   map[string]any{"type": "number"},
				},
				"required": []string{"start_ms", "end_ms"},
			},
		},
	},
	"required": []string{"point", "source_segments"},
}

func schemaFor(sections []string) json.RawMessage {
	props := make(map[string]any, len(sections))
	for _, k := range sections {
		props[k] = map[string]any{
			"type":  "array",
			"items": map[string]any{"$ref": "#/definitions/summaryPoint"},
		}
	}
	b, err := json.Marshal(map[string]any{
		"type":        "object",
		"properties":  props,
		"required":    sections,
		"definitions": map[string]any{"summaryPoint": summaryPoint},
	})
	if err != nil {
		panic("summary: marshal schema: " + err.Error())
	}
	return b
}

// Registry holds the template configs.
type Registry struct {
	templates map[Template]*TemplateConfig
}

// NewRegistry returns the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: map[Template]*TemplateConfig{}}
	r.add(TemplateDaily, "create_daily_standup_summary",
		"Creates a structured summary for a daily standup meeting.",
		[]string{"yesterdaysWork", "todaysPlans", "blockers", "otherNotes"},
		`Generate a summary for a Daily Standup Meeting.
      **SECTIONS TO EXTRACT:**
      - **Yesterday’s Work:** Extract tasks completed the previous day, including results, metrics, and who did what.
      - **Today’s Plans:** Extract what participants plan to do today, including goals and dependencies.
      - **Blockers / Dependencies:** Extract any items blocking progress and who is affected.
      - **Other Notes:** Include organizational notes, announcements, or other important team discussions.
      `)
	r.add(TemplateDemo, "create_demo_review_summary",
		"Creates a structured summary for a demo or review meeting.",
		[]string{"whatWasDemonstrated", "feedbackAndComments", "decisionsMade", "nextSteps"},
		`Generate a summary for a Demo/Review Meeting.
      **SECTIONS TO EXTRACT:**
      - **What Was Demonstrated:** Describe the features shown, who presented, and key use cases.
      - **Feedback & Comments:** Capture specific positive and negative feedback from participants.
      - **Decisions Made:** Extract all agreed-upon decisions regarding scope, priorities, and releases.
      - **Next Steps:** List action items, responsible people, and deadlines discussed after the demo.
      `)
	r.add(TemplateRequirementsGathering, "create_requirements_gathering_summary",
		"Creates a structured summary for a requirements gathering meeting.",
		[]string{"businessRequirements", "functionalRequirements", "nonFunctionalRequirements", "questionsOpenPoints"},
		`Generate a summary for a Requirements Gathering Meeting.
      **SECTIONS TO EXTRACT:**
      - **Business Requirements:** Summarize the project's business goals, target users, and expected benefits.
      - **Functional Requirements:** Extract specific functions, features, and use cases the system must implement.
      - **Non-Functional Requirements:** Extract quality characteristics like performance, security, scalability, and UX.
      - **Questions / Open Points:** List all unresolved topics, open decisions, and follow-up actions.
      `)
	r.add(TemplateKickoff, "create_kick_off_summary",
		"Creates a structured summary for a project kick-off meeting.",
		[]string{"projectGoals", "projectScope", "rolesAndResponsibilities", "risksAndAssumptions", "nextStepsActionPlan"},
		`Generate a summary for a Project Kick-off Meeting.
      **SECTIONS TO EXTRACT:**
      - **Project Goals:** Extract key business and technical objectives, KPIs, and success metrics.
      - **Project Scope:** Detail what is included and excluded from the project, including limitations and dependencies.
      - **Roles & Responsibilities:** Identify who is responsible for what, including key roles and communication structure.
      - **Risks & Assumptions:** List potential technical, resource, or organizational risks and any underlying assumptions.
      - **Next Steps / Action Plan:** Record initial tasks, responsible persons, deadlines, and scheduled meetings.
      `)
	return r
}

func (r *Registry) add(t Template, name, desc string, sections []string, prompt string) {
	r.templates[t] = &TemplateConfig{
		Template: t,
		Tool:     Tool{Name: name, Description: desc, Parameters: schemaFor(sections)},
		Sections: sections,
		prompt:   prompt + baseInstructions,
	}
}

// Get returns the config of t.
func (r *Registry) Get(t Template) (*TemplateConfig, error) {
	c, ok := r.templates[t]
	if !ok {
		return nil, apperr.SummarizationTemplateNotFound(string(t))
	}
	return c, nil
}
