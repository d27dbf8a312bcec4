package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

// ========== ProfileStore ==========

func TestProfileStore(t *testing.T) {
	p := NewProfileStore("Maria")

	u := p.User()
	if u.Name != "Maria" {
		t.Errorf("name = %q", u.Name)
	}
	if u.Profile != "" {
		t.Errorf("fresh profile should be empty, got %q", u.Profile)
	}

	p.SetProfile("Interested in hiking and local food.")
	if got := p.User().Profile; got != "Interested in hiking and local food." {
		t.Errorf("profile = %q", got)
	}
}

// ========== Conversation ==========

func TestConversation_FreshStateSerializesAsNull(t *testing.T) {
	conv := &Conversation{id: "abc"}

	data, err := json.Marshal(conv.Snapshot())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"content":null,"lastAssistantResponse":null}`
	if string(data) != want {
		t.Errorf("fresh state = %s, want %s", data, want)
	}

	if _, ok := conv.Content(); ok {
		t.Error("fresh conversation reports content")
	}
	if _, ok := conv.LastResponse(); ok {
		t.Error("fresh conversation reports last response")
	}
}

func TestConversation_CommitAndRead(t *testing.T) {
	conv := &Conversation{id: "abc"}
	conv.Commit("wants ferry times to the islands", "Ferries leave hourly.")

	content, ok := conv.Content()
	if !ok || content != "wants ferry times to the islands" {
		t.Errorf("content = %q, %v", content, ok)
	}
	last, ok := conv.LastResponse()
	if !ok || last != "Ferries leave hourly." {
		t.Errorf("lastResponse = %q, %v", last, ok)
	}

	data, err := json.Marshal(conv.Snapshot())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"content":"wants ferry times to the islands","lastAssistantResponse":"Ferries leave hourly."}`
	if string(data) != want {
		t.Errorf("state = %s", data)
	}
}

func TestConversation_SnapshotIsACopy(t *testing.T) {
	conv := &Conversation{id: "abc"}
	conv.Commit("original", "answer")

	snap := conv.Snapshot()
	*snap.Content = "mutated"

	if content, _ := conv.Content(); content != "original" {
		t.Errorf("snapshot mutation leaked into conversation: %q", content)
	}
}

// ========== Store ==========

func TestStore_GetOrCreateReturnsSameConversation(t *testing.T) {
	s := NewStore(0)

	a := s.GetOrCreate("req-1")
	b := s.GetOrCreate("req-1")
	if a != b {
		t.Error("same request id produced different conversations")
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestStore_GetDoesNotCreate(t *testing.T) {
	s := NewStore(0)

	if _, ok := s.Get("missing"); ok {
		t.Error("Get created a conversation")
	}
	s.GetOrCreate("req-1")
	if _, ok := s.Get("req-1"); !ok {
		t.Error("Get missed an existing conversation")
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := NewStore(2)

	s.GetOrCreate("a")
	s.GetOrCreate("b")
	s.GetOrCreate("a") // touch a so b becomes oldest
	s.GetOrCreate("c") // evicts b

	if _, ok := s.Get("b"); ok {
		t.Error("least recently used conversation survived eviction")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("recently used conversation was evicted")
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
}

func TestStore_EvictedConversationComesBackFresh(t *testing.T) {
	s := NewStore(1)

	s.GetOrCreate("a").Commit("remembered", "answer")
	s.GetOrCreate("b") // evicts a

	conv := s.GetOrCreate("a")
	if _, ok := conv.Content(); ok {
		t.Error("evicted conversation kept its state")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				conv := s.GetOrCreate(fmt.Sprintf("req-%d", j%32))
				conv.BeginTurn()
				conv.Commit(fmt.Sprintf("content %d", n), "answer")
				conv.EndTurn()
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 16 {
		t.Errorf("store exceeded capacity: %d", s.Len())
	}
}
