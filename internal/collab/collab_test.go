package collab

import (
	"testing"
	"time"
)

func TestMemoryIPHistoryRecordAndLookup(t *testing.T) {
	h := NewMemoryIPHistory(10)
	now := time.Unix(1000, 0)
	h.Record("alice", "203.0.113.9", now)
	h.Record("bob", "203.0.113.9", now.Add(time.Second))
	h.Record("alice", "198.51.100.1", now.Add(2*time.Second))

	ips := h.IPsForNick("alice")
	if len(ips) != 2 {
		t.Fatalf("expected 2 IP records for alice, got %d", len(ips))
	}
	nicks := h.NicksForIP("203.0.113.9")
	if len(nicks) != 2 {
		t.Fatalf("expected 2 nick records for shared IP, got %d", len(nicks))
	}
}

func TestMemoryIPHistoryEvictsOldest(t *testing.T) {
	h := NewMemoryIPHistory(2)
	now := time.Unix(1000, 0)
	h.Record("alice", "1.1.1.1", now)
	h.Record("bob", "2.2.2.2", now.Add(time.Second))
	h.Record("carol", "3.3.3.3", now.Add(2*time.Second))

	if len(h.IPsForNick("alice")) != 0 {
		t.Fatal("expected oldest record evicted")
	}
	if len(h.IPsForNick("carol")) != 1 {
		t.Fatal("expected newest record retained")
	}
}

func TestNilFacades(t *testing.T) {
	if _, ok := (NilBanList{}).Check(nil, "alice", "1.1.1.1", 0); ok {
		t.Fatal("expected NilBanList to never ban")
	}
	if g := (NilGeoLookup{}).Lookup("1.1.1.1"); g.Country != "" {
		t.Fatal("expected empty geo info")
	}
	if _, ok := (NilRedirectLookup{}).RedirectFor("HubLoad", 0); ok {
		t.Fatal("expected no redirect")
	}
}
