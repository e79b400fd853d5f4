// Package llmtest provides a scripted Oracle for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	aerrors "github.com/p-blackswan/autodev/internal/errors"
)

// Call is one recorded Generate invocation.
type Call struct {
	Prompt string
	System string
}

// Reply is a canned oracle answer. A non-nil Err is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays replies in order and records every prompt. Once the
// script runs out it returns Fallback, or an error when Fallback is empty.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	calls    []Call
	Fallback string

	// Route, when set, answers instead of the script; returning ok=false
	// falls through to the next scripted reply.
	Route func(prompt, system string) (text string, ok bool)
}

// New creates a script from plain text replies. An empty string replays as
// ErrNoResponse, as a real provider would report it.
func New(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.Push(t)
	}
	return s
}

// Push appends a text reply.
func (s *Scripted) Push(text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		s.replies = append(s.replies, Reply{Err: aerrors.ErrNoResponse})
	} else {
		s.replies = append(s.replies, Reply{Text: text})
	}
	return s
}

// PushErr appends an error reply.
func (s *Scripted) PushErr(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, Reply{Err: err})
	return s
}

// Generate implements llm.Oracle.
func (s *Scripted) Generate(ctx context.Context, prompt, system string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Prompt: prompt, System: system})

	if s.Route != nil {
		if text, ok := s.Route(prompt, system); ok {
			return text, nil
		}
	}
	if len(s.replies) == 0 {
		if s.Fallback != "" {
			return s.Fallback, nil
		}
		return "", fmt.Errorf("llmtest: script exhausted after %d calls", len(s.calls))
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Calls returns a copy of the recorded invocations.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Remaining is the number of unused scripted replies.
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}
