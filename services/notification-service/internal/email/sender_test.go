package email

import (
	"strings"
	"testing"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("agenda@podologia.local", "ana@example.com", "Agendamento recebido", "Olá Ana")
	for _, want := range []string{
		"From: agenda@podologia.local\r\n",
		"To: ana@example.com\r\n",
		"Subject: Agendamento recebido\r\n",
		"charset=utf-8",
		"\r\n\r\nOlá Ana\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNewSendGridSenderNeedsKey(t *testing.T) {
	if s := NewSendGridSender(SendGridConfig{}); s != nil {
		t.Fatal("expected nil sender without API key")
	}
	s := NewSendGridSender(SendGridConfig{APIKey: "SG.test", FromEmail: "agenda@podologia.local"})
	if s == nil || s.ProviderID() != "sendgrid" || s.fromName == "" {
		t.Fatalf("unexpected sender: %+v", s)
	}
}

func TestSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mailpit", Port: "1025"})
	if s.addr != "mailpit:1025" || s.from == "" || s.auth != nil {
		t.Fatalf("unexpected smtp sender: %+v", s)
	}
	if NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: "587", Username: "u", Password: "p"}).auth == nil {
		t.Fatal("expected PLAIN auth when username is set")
	}
}
