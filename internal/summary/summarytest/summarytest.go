// Package summarytest provides a scripted LLM for tests.
package summarytest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/d9705996/huddle/internal/summary"
)

// LLM replays canned answers and records prompts.
type LLM struct {
	// Answer returns the tool arguments for a prompt. When nil, Summary is
	// marshalled instead.
	Answer  func(prompt string, tool summary.Tool) (string, error)
	Summary summary.Summary
	Usage   summary.Usage
	Chunks  []string
	Err     error

	mu      sync.Mutex
	prompts []string
	tools   []string
	streams int
}

// Model implements summary.LLM.
func (l *LLM) Model() string { return "fake-model" }

// CallTool implements summary.LLM.
func (l *LLM) CallTool(_ context.Context, prompt string, tool summary.Tool) (string, summary.Usage, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.tools = append(l.tools, tool.Name)
	l.mu.Unlock()

	if l.Err != nil {
		return "", summary.Usage{}, l.Err
	}
	if l.Answer != nil {
		args, err := l.Answer(prompt, tool)
		return args, l.Usage, err
	}
	b, err := json.Marshal(l.Summary)
	return string(b), l.Usage, err
}

// StreamText implements summary.LLM.
func (l *LLM) StreamText(_ context.Context, prompt string, onChunk func(string) error) (summary.Usage, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.streams++
	l.mu.Unlock()

	for _, c := range l.Chunks {
		if err := onChunk(c); err != nil {
			return l.Usage, err
		}
	}
	return l.Usage, l.Err
}

// Prompts returns every prompt received.
func (l *LLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}

// Tools returns the tool names of every CallTool.
func (l *LLM) Tools() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tools...)
}

// Streams counts StreamText calls.
func (l *LLM) Streams() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streams
}
