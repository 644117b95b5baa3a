package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/d9705996/huddle/internal/apperr"
)

// InstrumentationName is the scope of the engine's meter and tracer.
const InstrumentationName = "github.com/d9705996/huddle/internal/summary"

// Engine runs the map and reduce phases of summarization.
type Engine struct {
	llm    LLM
	reg    *Registry
	log    *slog.Logger
	meter  metric.Meter
	tracer trace.Tracer
	tokens metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithMeter records token usage on m.
func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// WithTracer traces the map and reduce phases on t.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// NewEngine wires an engine over llm with the built-in templates. Without
// options telemetry goes to no-op providers.
func NewEngine(llm LLM, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		llm:    llm,
		reg:    NewRegistry(),
		log:    log,
		meter:  metricnoop.NewMeterProvider().Meter(InstrumentationName),
		tracer: tracenoop.NewTracerProvider().Tracer(InstrumentationName),
	}
	for _, o := range opts {
		o(e)
	}
	tokens, err := e.meter.Int64Counter("huddle.llm.tokens",
		metric.WithDescription("LLM tokens consumed by summarization."),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		log.Warn("summary: create token counter", "err", err)
	}
	e.tokens = tokens
	return e
}

// Model names the model summaries are produced with.
func (e *Engine) Model() string { return e.llm.Model() }

// Registry exposes the template registry.
func (e *Engine) Registry() *Registry { return e.reg }

// FormatTranscript renders segments as "[start_ms]: text" lines ordered by
// start time.
func FormatTranscript(segments []Segment) string {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartMs < sorted[j].StartMs })

	lines := make([]string, len(sorted))
	for i, s := range sorted {
		lines[i] = fmt.Sprintf("[%d]: %s", s.StartMs, s.Text)
	}
	return strings.Join(lines, "\n")
}

// Summarize produces a cited summary of one transcript. An empty
// transcript yields the template's empty summary without calling the model.
func (e *Engine) Summarize(ctx context.Context, segments []Segment, t Template, l Locale) (Result, error) {
	cfg, err := e.reg.Get(t)
	if err != nil {
		return Result{}, err
	}
	if len(segments) == 0 {
		return Result{Summary: cfg.Empty()}, nil
	}

	ctx, span := e.tracer.Start(ctx, "summary.Summarize", trace.WithAttributes(
		attribute.String("summary.template", string(t)),
		attribute.String("summary.locale", string(l)),
		attribute.Int("summary.segments", len(segments)),
	))
	defer span.End()

	res, err := e.callTool(ctx, cfg, cfg.Prompt(FormatTranscript(segments), l))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	return res, nil
}

// Combine reduces several results into one. Zero results give the empty
// summary and one result is returned unchanged. Usage is the sum of the
// inputs plus the reduce call.
func (e *Engine) Combine(ctx context.Context, results []Result, t Template, l Locale) (Result, error) {
	cfg, err := e.reg.Get(t)
	if err != nil {
		return Result{}, err
	}
	switch len(results) {
	case 0:
		return Result{Summary: cfg.Empty()}, nil
	case 1:
		return results[0], nil
	}

	ctx, span := e.tracer.Start(ctx, "summary.Combine", trace.WithAttributes(
		attribute.String("summary.template", string(t)),
		attribute.Int("summary.inputs", len(results)),
	))
	defer span.End()

	text, err := summariesAsText(results)
	if err != nil {
		return Result{}, err
	}
	res, err := e.callTool(ctx, cfg, renderReduce(reducePrompt, text, l))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	for _, r := range results {
		res.Usage = res.Usage.Add(r.Usage)
	}
	return res, nil
}

// StreamCombine reduces several results into markdown, delivered to
// onChunk as the model produces it.
func (e *Engine) StreamCombine(ctx context.Context, results []Result, l Locale, onChunk func(string) error) error {
	ctx, span := e.tracer.Start(ctx, "summary.StreamCombine", trace.WithAttributes(
		attribute.Int("summary.inputs", len(results)),
	))
	defer span.End()

	text, err := summariesAsText(results)
	if err != nil {
		return err
	}
	usage, err := e.llm.StreamText(ctx, renderReduce(reducePromptStreaming, text, l), onChunk)
	e.record(ctx, usage)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.log.Error("summary: stream combine", "err", err)
		return apperr.SummarizationFailed()
	}
	return nil
}

func (e *Engine) callTool(ctx context.Context, cfg *TemplateConfig, prompt string) (Result, error) {
	args, usage, err := e.llm.CallTool(ctx, prompt, cfg.Tool)
	e.record(ctx, usage)
	if err != nil {
		e.log.Error("summary: call model", "template", cfg.Template, "err", err)
		return Result{}, apperr.SummarizationFailed()
	}

	var s Summary
	if err := json.Unmarshal([]byte(args), &s); err != nil {
		e.log.Error("summary: decode tool arguments", "template", cfg.Template, "err", err)
		return Result{}, apperr.SummarizationFailed()
	}
	for _, k := range cfg.Sections {
		if s[k] == nil {
			s[k] = []Point{}
		}
	}
	return Result{Summary: s, Usage: usage}, nil
}

func (e *Engine) record(ctx context.Context, u Usage) {
	if e.tokens == nil {
		return
	}
	e.tokens.Add(ctx, int64(u.PromptTokens), metric.WithAttributes(attribute.String("kind", "prompt")))
	e.tokens.Add(ctx, int64(u.CompletionTokens), metric.WithAttributes(attribute.String("kind", "completion")))
}

func summariesAsText(results []Result) (string, error) {
	parts := make([]string, len(results))
	for i, r := range results {
		b, err := json.MarshalIndent(r.Summary, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal summary: %w", err)
		}
		parts[i] = fmt.Sprintf("--- SUMMARY FROM SOURCE %d ---\n%s", i+1, b)
	}
	return strings.Join(parts, "\n\n"), nil
}
