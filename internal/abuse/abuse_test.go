package abuse

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestConnLimiterWarnsThenDisconnects(t *testing.T) {
	var cfg [kindCount]Limits
	cfg[KindChat] = Limits{Period: time.Second, Limit: 1}
	cl := NewConnLimiter(cfg)

	if a := cl.Allow(KindChat); a != ActionNone {
		t.Fatalf("expected first event admitted, got %v", a)
	}
	if a := cl.Allow(KindChat); a != ActionWarn {
		t.Fatalf("expected second event to warn, got %v", a)
	}
	if a := cl.Allow(KindChat); a != ActionDisconnect {
		t.Fatalf("expected third event to disconnect, got %v", a)
	}
}

func TestConnLimiterUnconfiguredKindUnlimited(t *testing.T) {
	var cfg [kindCount]Limits
	cl := NewConnLimiter(cfg)
	for i := 0; i < 100; i++ {
		if a := cl.Allow(KindSearch); a != ActionNone {
			t.Fatalf("expected unlimited kind to always admit, got %v at iteration %d", a, i)
		}
	}
}

func TestHubLimiter(t *testing.T) {
	hl := NewHubLimiter(map[Kind]Limits{KindChat: {Period: time.Second, Limit: 1}})
	if !hl.Allow(KindChat) {
		t.Fatal("expected first hub-wide chat event admitted")
	}
	if hl.Allow(KindChat) {
		t.Fatal("expected second hub-wide chat event to be refused")
	}
	if !hl.Allow(KindSearch) {
		t.Fatal("expected unconfigured kind to always admit")
	}
}

func TestTempBanTableExpiry(t *testing.T) {
	tb := NewTempBanTable()
	now := time.Unix(1000, 0)
	tb.BanIP("203.0.113.9", now.Add(10*time.Second), "BadPassword", BanPassword)

	if _, _, banned := tb.CheckIP("203.0.113.9", now); !banned {
		t.Fatal("expected IP to be banned")
	}
	if _, _, banned := tb.CheckIP("203.0.113.9", now.Add(20*time.Second)); banned {
		t.Fatal("expected ban to have expired")
	}
}

func TestTempBanTableSweep(t *testing.T) {
	tb := NewTempBanTable()
	now := time.Unix(1000, 0)
	tb.BanNick("bob", now.Add(-time.Second), "stale", BanFlood)
	tb.BanIP("203.0.113.9", now.Add(time.Hour), "fresh", BanClone)

	removed := tb.Sweep(now)
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if _, _, banned := tb.CheckIP("203.0.113.9", now); !banned {
		t.Fatal("expected fresh ban to survive sweep")
	}
}

func TestCloneDetector(t *testing.T) {
	cd := NewCloneDetector()
	if n := cd.Observe("203.0.113.9", "FearDC V:1.0"); n != 1 {
		t.Fatalf("expected first observation count 1, got %d", n)
	}
	if n := cd.Observe("203.0.113.9", "FearDC V:1.0"); n != 2 {
		t.Fatalf("expected second observation count 2, got %d", n)
	}
	cd.Forget("203.0.113.9", "FearDC V:1.0")
	if n := cd.Observe("203.0.113.9", "FearDC V:1.0"); n != 2 {
		t.Fatalf("expected count back to 2 after one forget, got %d", n)
	}
}

func TestConnectFloodPerIP(t *testing.T) {
	cf := NewConnectFlood(rate.Every(time.Minute), 1)
	if !cf.Allow("203.0.113.9") {
		t.Fatal("expected first connect admitted")
	}
	if cf.Allow("203.0.113.9") {
		t.Fatal("expected second immediate connect refused")
	}
	if !cf.Allow("198.51.100.1") {
		t.Fatal("expected different IP to be independent")
	}
}
