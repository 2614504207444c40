package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func TestAppendAndHistory(t *testing.T) {
	tr := NewTracker(0)

	tr.Append("c1", "user", "hello")
	tr.Append("c1", "assistant", "hi there")

	turns := tr.History("c1", 0)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Text != "hello" {
		t.Errorf("turns[0] = %+v, want user/hello", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Text != "hi there" {
		t.Errorf("turns[1] = %+v, want assistant/hi there", turns[1])
	}
	if turns[1].Timestamp.Before(turns[0].Timestamp) {
		t.Error("timestamps out of order")
	}
}

func TestHistory_UnknownConversation(t *testing.T) {
	tr := NewTracker(0)

	turns := tr.History("missing", 5)
	if len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}

func TestHistory_MostRecentChronological(t *testing.T) {
	tr := NewTracker(0)
	for i := 0; i < 5; i++ {
		tr.Append("c1", "user", fmt.Sprintf("msg %d", i))
	}

	turns := tr.History("c1", 2)
	if len(turns) != 2 {
		t.Fatalf("got %d turns, want 2", len(turns))
	}
	if turns[0].Text != "msg 3" || turns[1].Text != "msg 4" {
		t.Errorf("got %q, %q; want msg 3, msg 4", turns[0].Text, turns[1].Text)
	}
}

func TestTurnCap_DropsOldest(t *testing.T) {
	tr := NewTracker(3)
	for i := 0; i < 5; i++ {
		tr.Append("c1", "user", fmt.Sprintf("msg %d", i))
	}

	turns := tr.History("c1", 0)
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Text != "msg 2" {
		t.Errorf("oldest kept turn = %q, want msg 2", turns[0].Text)
	}
}

func TestConversationIsolation(t *testing.T) {
	tr := NewTracker(0)
	tr.Append("a", "user", "only in a")
	tr.Append("b", "user", "only in b")

	for _, turn := range tr.History("b", 0) {
		if turn.Text == "only in a" {
			t.Fatal("turn from conversation a leaked into b")
		}
	}
	if len(tr.History("a", 0)) != 1 {
		t.Errorf("conversation a history length = %d, want 1", len(tr.History("a", 0)))
	}
}

func TestClear(t *testing.T) {
	tr := NewTracker(0)
	tr.Append("a", "user", "x")
	tr.Append("b", "user", "y")

	tr.Clear("a")
	if len(tr.History("a", 0)) != 0 {
		t.Error("conversation a not cleared")
	}
	if len(tr.History("b", 0)) != 1 {
		t.Error("conversation b affected by clearing a")
	}
}

func TestClearAll(t *testing.T) {
	tr := NewTracker(0)
	tr.Append("a", "user", "x")
	tr.Append("b", "user", "y")

	tr.ClearAll()
	if len(tr.History("a", 0)) != 0 || len(tr.History("b", 0)) != 0 {
		t.Error("histories survived ClearAll")
	}
}

func TestConcurrentAppends(t *testing.T) {
	tr := NewTracker(0)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n%2)
			for j := 0; j < 50; j++ {
				tr.Append(id, "user", "msg")
			}
		}(i)
	}
	wg.Wait()

	total := len(tr.History("c0", 0)) + len(tr.History("c1", 0))
	if total != 500 {
		t.Errorf("got %d total turns, want 500", total)
	}
}
