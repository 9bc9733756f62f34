// internal/chat/session.go
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Shlok909/pawsitiveAI/internal/report"
)

// Sender identifies who produced a transcript message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one entry in a chat transcript.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// Answerer is the grounded question/answer capability behind a session.
type Answerer interface {
	Ask(ctx context.Context, question, grounding string) (string, error)
}

// Session is a linear transcript scoped to one stored report. It lives in
// memory for the duration of the chat; only successfully answered turns
// remain in the transcript.
type Session struct {
	reportID string
	report   *report.Report
	answerer Answerer

	mu       sync.Mutex
	messages []Message
}

// Open starts a chat session for a resolved report. The greeting is
// synthesized locally; no model call happens here.
func Open(reportID string, rep *report.Report, answerer Answerer) *Session {
	greeting := fmt.Sprintf(
		"Hello! I'm your Pawsight AI assistant. I've reviewed the report for your dog's %q state. How can I help you understand it better?",
		rep.Emotion,
	)

	return &Session{
		reportID: reportID,
		report:   rep,
		answerer: answerer,
		messages: []Message{
			{ID: uuid.NewString(), Text: greeting, Sender: SenderAssistant},
		},
	}
}

// ReportID returns the id of the grounding report.
func (s *Session) ReportID() string {
	return s.reportID
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Ask appends the question, performs one grounded exchange, and appends
// the answer. On failure the question is retracted so the transcript only
// reflects answered turns, and the error is recoverable.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	s.messages = append(s.messages, Message{ID: uuid.NewString(), Text: question, Sender: SenderUser})
	s.mu.Unlock()

	grounding, err := json.MarshalIndent(s.report, "", "  ")
	if err != nil {
		s.retractLast()
		return "", err
	}

	answer, err := s.answerer.Ask(ctx, question, string(grounding))
	if err != nil {
		s.retractLast()
		return "", err
	}

	s.mu.Lock()
	s.messages = append(s.messages, Message{ID: uuid.NewString(), Text: answer, Sender: SenderAssistant})
	s.mu.Unlock()
	return answer, nil
}

func (s *Session) retractLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) > 0 {
		s.messages = s.messages[:len(s.messages)-1]
	}
}

// Suggestions returns starter questions for the session's report.
func (s *Session) Suggestions() []string {
	return StarterQuestions(s.report)
}

// StarterQuestions derives suggested follow-ups from the report's emotion
// and urgency. Deterministic; no model call.
func StarterQuestions(rep *report.Report) []string {
	return []string{
		fmt.Sprintf("What does %q mean?", rep.Emotion),
		"Give me some tips based on this report.",
		"Is there anything to worry about?",
		fmt.Sprintf("Tell me more about the %q urgency.", rep.Health.Urgency),
	}
}
