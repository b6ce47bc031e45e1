package tabs

import (
	"testing"
	"time"
)

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore([]*Tab{mk("a", true, false)})
	got := s.Get()
	got[0] = mk("x", false, false)
	if s.Get()[0].ID != "a" {
		t.Error("modifying the returned slice must not affect the store")
	}
}

func TestStore_NewStoreNil(t *testing.T) {
	s := NewStore(nil)
	if s.Get() == nil {
		t.Error("Get should never return nil")
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
	if s.Active() != nil {
		t.Error("empty store has no active tab")
	}
}

func TestStore_Update(t *testing.T) {
	s := NewStore([]*Tab{mk("a", true, false)})
	next := s.Update(func(cur []*Tab) []*Tab {
		return append(Activate(cur, ""), mk("b", true, false))
	})
	if len(next) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(next))
	}
	if s.Active().ID != "b" {
		t.Errorf("expected b active, got %s", s.Active().ID)
	}
	if tab, i := s.Find("a"); tab == nil || i != 0 || tab.Active {
		t.Errorf("unexpected a: %+v at %d", tab, i)
	}
	if tab, i := s.Find("missing"); tab != nil || i != -1 {
		t.Error("expected missing tab not found")
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore(nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Set([]*Tab{mk("a", true, false)})
	s.Set([]*Tab{mk("a", true, false), mk("b", false, false)})

	for _, want := range []int{1, 2} {
		select {
		case got := <-ch:
			if len(got) != want {
				t.Errorf("expected %d tabs, got %d", want, len(got))
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for state")
		}
	}
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(nil)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	s.Set([]*Tab{mk("a", true, false)})
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := NewStore(nil)
	s.depth = 1
	_, cancel := s.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.Set([]*Tab{mk("a", true, false)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Set blocked on a full subscriber")
	}
}

func TestStore_LaggingSubscriberEndsOnLatest(t *testing.T) {
	s := NewStore(nil)
	s.depth = 4
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 100; i++ {
		s.Set([]*Tab{mk("tab_"+string(rune('a'+i%26)), true, false)})
	}
	s.Set([]*Tab{mk("tab_final", true, false)})

	var last []*Tab
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last) != 1 || last[0].ID != s.Get()[0].ID {
		t.Fatalf("last state received %v, store holds %s", last, s.Get()[0].ID)
	}
}
