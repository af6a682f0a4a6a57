package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"vhub/internal/collab"
	"vhub/internal/identity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLookupMissingNickReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	reg, err := s.Lookup(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg != nil {
		t.Fatalf("expected nil for unregistered nick, got %+v", reg)
	}
}

func TestUpsertAndLookupRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := &identity.RegData{
		Nick:         "alice",
		PasswordHash: "secret",
		CryptMethod:  identity.CryptNone,
		Class:        identity.ClassVIP,
		Enabled:      true,
		HideShare:    true,
	}
	if err := s.UpsertRegistration(ctx, r); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Lookup(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Class != identity.ClassVIP || !got.HideShare {
		t.Fatalf("unexpected lookup result: %+v", got)
	}
	if !s.VerifyPassword(ctx, got, "secret") {
		t.Fatal("expected correct password to verify")
	}
	if s.VerifyPassword(ctx, got, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestBanCheckByKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.InsertBan(ctx, collab.BanNick, "evil", "abuse", time.Time{}); err != nil {
		t.Fatalf("insert ban: %v", err)
	}
	if err := s.InsertBan(ctx, collab.BanShare, "1000000", "low share", time.Time{}); err != nil {
		t.Fatalf("insert share ban: %v", err)
	}

	if _, banned := s.Check(ctx, "evil", "1.2.3.4", 5_000_000); !banned {
		t.Fatal("expected nick ban to match")
	}
	if _, banned := s.Check(ctx, "gooduser", "1.2.3.4", 500); !banned {
		t.Fatal("expected share ban to match low share")
	}
	if _, banned := s.Check(ctx, "gooduser", "1.2.3.4", 5_000_000); banned {
		t.Fatal("expected no ban for unrelated user with sufficient share")
	}
}

func TestBanExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.InsertBan(ctx, collab.BanIP, "203.0.113.9", "flood", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("insert expired ban: %v", err)
	}
	if _, banned := s.Check(ctx, "", "203.0.113.9", 0); banned {
		t.Fatal("expected expired ban to not match")
	}
}
