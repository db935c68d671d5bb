package session

import (
	"testing"
	"time"

	"imaging-rag/internal/domain"
)

func TestStore_CreateAppendHistory(t *testing.T) {
	s := New(time.Hour, 0)
	id := s.Create()

	if got := s.History(id); len(got) != 0 {
		t.Fatalf("new session should have empty history, got %d", len(got))
	}
	s.Append(id,
		domain.Message{Role: domain.RoleUser, Content: "what does the CT show?"},
		domain.Message{Role: domain.RoleAssistant, Content: "no abnormality"},
	)
	got := s.History(id)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Role != domain.RoleUser || got[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", got)
	}
}

func TestStore_HistoryReturnsCopy(t *testing.T) {
	s := New(time.Hour, 0)
	id := s.Create()
	s.Append(id, domain.Message{Role: domain.RoleUser, Content: "original"})

	h := s.History(id)
	h[0].Content = "mutated"
	if s.History(id)[0].Content != "original" {
		t.Fatalf("History must return a copy")
	}
}

func TestStore_MaxTurnsDropsOldest(t *testing.T) {
	s := New(time.Hour, 4)
	id := s.Create()
	for i := 0; i < 6; i++ {
		s.Append(id, domain.Message{Role: domain.RoleUser, Content: string(rune('a' + i))})
	}
	got := s.History(id)
	if len(got) != 4 {
		t.Fatalf("expected history capped at 4, got %d", len(got))
	}
	if got[0].Content != "c" {
		t.Fatalf("expected oldest turns dropped, first is %q", got[0].Content)
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	s := New(time.Minute, 0)
	now := time.Now()
	s.now = func() time.Time { return now }

	id := s.Create()
	s.Append(id, domain.Message{Role: domain.RoleUser, Content: "hello"})

	now = now.Add(2 * time.Minute)
	if got := s.History(id); got != nil {
		t.Fatalf("expected expired session to be gone, got %v", got)
	}
	if s.Len() != 0 {
		t.Fatalf("expected 0 live sessions, got %d", s.Len())
	}
}

func TestStore_UnknownSession(t *testing.T) {
	s := New(time.Hour, 0)
	if got := s.History("nope"); got != nil {
		t.Fatalf("unknown session should yield nil history")
	}
}
