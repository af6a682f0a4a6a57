package callback

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestDispatchRunsInternalBeforeExternal(t *testing.T) {
	c := New(logrus.NewEntry(logrus.New()), 0)
	var order []string

	c.AddInternal("Chat", func(Event) bool { order = append(order, "internal"); return true })
	c.Add("Chat", func(Event) bool { order = append(order, "external"); return true })

	if !c.Dispatch("chat", Event{}) {
		t.Fatal("expected no veto")
	}
	if len(order) != 2 || order[0] != "internal" || order[1] != "external" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestDispatchStopsAtFirstVeto(t *testing.T) {
	c := New(logrus.NewEntry(logrus.New()), 0)
	calls := 0

	c.Add("Search", func(Event) bool { calls++; return false })
	c.Add("Search", func(Event) bool { calls++; return true })

	if c.Dispatch("Search", Event{}) {
		t.Fatal("expected veto to propagate")
	}
	if calls != 1 {
		t.Fatalf("expected second handler skipped after veto, got %d calls", calls)
	}
}

func TestRemoveHandler(t *testing.T) {
	c := New(logrus.NewEntry(logrus.New()), 0)
	called := false
	id := c.Add("MyINFO", func(Event) bool { called = true; return true })

	if !c.Remove("MyINFO", id) {
		t.Fatal("expected removal to succeed")
	}
	c.Dispatch("MyINFO", Event{})
	if called {
		t.Fatal("expected removed handler to not run")
	}
}

func TestDispatchLogsOverrun(t *testing.T) {
	logger := logrus.New()
	c := New(logrus.NewEntry(logger), time.Millisecond)
	c.Add("Ping", func(Event) bool {
		time.Sleep(5 * time.Millisecond)
		return true
	})
	if !c.Dispatch("Ping", Event{}) {
		t.Fatal("expected no veto from a slow but compliant handler")
	}
}

func TestCountReflectsExternalOnly(t *testing.T) {
	c := New(logrus.NewEntry(logrus.New()), 0)
	c.AddInternal("Quit", func(Event) bool { return true })
	c.Add("Quit", func(Event) bool { return true })
	c.Add("Quit", func(Event) bool { return true })
	if got := c.Count("Quit"); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}
}
