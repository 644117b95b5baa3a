// Package mailtest records sent mail for package tests.
package mailtest

import (
	"context"
	"sync"

	"github.com/d9705996/huddle/internal/mail"
)

// Recorder is a mail.Sender that keeps every message.
type Recorder struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

// Send records m, or returns Err when set.
func (r *Recorder) Send(_ context.Context, m mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, m)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

// To returns the messages addressed to addr.
func (r *Recorder) To(addr string) []mail.Message {
	var out []mail.Message
	for _, m := range r.Sent() {
		for _, to := range m.To {
			if to == addr {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
