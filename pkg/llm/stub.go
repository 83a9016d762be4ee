package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubConversation is a scripted Conversation for tests: it returns one
// canned Reply per call to Send, in order, and records every call it
// receives so a test can assert on what the agent loop sent. Modeled on
// the teacher's StubToolExecutor canned-response pattern.
type StubConversation struct {
	mu      sync.Mutex
	script  []Reply
	calls   int
	history [][]Message
}

// NewStubConversation creates a stub that returns replies in order; a call
// past the end of the script panics, since a test that exhausts its script
// has a bug in its expectations, not a recoverable runtime condition.
func NewStubConversation(replies ...Reply) *StubConversation {
	return &StubConversation{script: replies}
}

func (s *StubConversation) Send(_ context.Context, messages []Message, _ []ToolDefinition) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.calls >= len(s.script) {
		panic(fmt.Sprintf("llm.StubConversation: call %d exceeds scripted replies (have %d)", s.calls+1, len(s.script)))
	}
	reply := s.script[s.calls]
	s.calls++
	s.history = append(s.history, append([]Message(nil), messages...))
	return reply, nil
}

// Calls reports how many times Send has been invoked.
func (s *StubConversation) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// History returns the transcript passed on each Send call, in order.
func (s *StubConversation) History() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Message(nil), s.history...)
}

// FailingConversation always returns Err from Send, for exercising the
// agent loop's LLM-failure handling.
type FailingConversation struct {
	Err error
}

func (f FailingConversation) Send(context.Context, []Message, []ToolDefinition) (Reply, error) {
	return Reply{}, f.Err
}
