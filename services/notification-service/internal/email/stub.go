package email

import (
	"context"
	"log/slog"
	"sync"
)

// StubSender logs messages instead of delivering them and keeps them for
// inspection.
type StubSender struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewStubSender(logger *slog.Logger) *StubSender {
	return &StubSender{logger: logger}
}

func (s *StubSender) ProviderID() string {
	return "stub"
}

func (s *StubSender) Send(_ context.Context, msg Message) error {
	if s.logger != nil {
		s.logger.Info("email suppressed", "to", msg.To, "subject", msg.Subject)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *StubSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
