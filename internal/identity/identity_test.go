package identity

import (
	"testing"
	"time"
)

func TestClassOrdering(t *testing.T) {
	if !ClassAdmin.AtLeast(ClassOp) {
		t.Fatal("expected Admin >= Op")
	}
	if ClassGuest.AtLeast(ClassReg) {
		t.Fatal("expected Guest < Reg")
	}
}

func TestHashNickCaseInsensitive(t *testing.T) {
	if HashNick("Alice") != HashNick("alice") {
		t.Fatal("expected case-insensitive hash")
	}
	if HashNick("Alice") == HashNick("Bob") {
		t.Fatal("unexpected hash collision in test fixture")
	}
}

func TestUserFakeMyINFOCaching(t *testing.T) {
	u := NewUser("alice")
	u.SetMyINFO("$MyINFO $ALL alice desc$ $1\x01$$100$")

	calls := 0
	mask := func(raw string) string {
		calls++
		return raw + "-masked"
	}

	first := u.FakeMyINFO(mask)
	second := u.FakeMyINFO(mask)
	if first != second {
		t.Fatalf("expected stable cached value, got %q then %q", first, second)
	}
	if calls != 1 {
		t.Fatalf("expected mask invoked once before second SetMyINFO, got %d calls", calls)
	}

	u.SetMyINFO("$MyINFO $ALL alice new$ $1\x01$$200$")
	u.FakeMyINFO(mask)
	if calls != 2 {
		t.Fatalf("expected mask re-invoked after dirtying, got %d calls", calls)
	}
}

func TestUserTouchEventReturnsPrevious(t *testing.T) {
	u := NewUser("bob")
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(1010, 0)

	prev := u.TouchEvent(EventChat, t1)
	if !prev.IsZero() {
		t.Fatalf("expected zero previous timestamp, got %v", prev)
	}
	prev = u.TouchEvent(EventChat, t2)
	if !prev.Equal(t1) {
		t.Fatalf("expected previous=%v, got %v", t1, prev)
	}
}

func TestUserSameAsLastHash(t *testing.T) {
	u := NewUser("carol")
	if u.SameAsLastHash(EventSearch, 42) {
		t.Fatal("first observation should never match")
	}
	if !u.SameAsLastHash(EventSearch, 42) {
		t.Fatal("expected repeat hash to match")
	}
	if u.SameAsLastHash(EventSearch, 43) {
		t.Fatal("different hash should not match")
	}
}

func TestCollectionCachesInvalidateOnMembershipChange(t *testing.T) {
	c := NewCollection()
	alice := NewUser("alice")
	alice.ShareBytes = 100
	alice.SetMyINFO("$MyINFO $ALL alice d$ $1\x01$$100$")
	c.Add(alice)

	first := c.NickList()
	if first != c.NickList() {
		t.Fatal("expected stable cached nicklist across reads with no mutation")
	}

	bob := NewUser("bob")
	bob.ShareBytes = 50
	bob.SetMyINFO("$MyINFO $ALL bob d$ $1\x01$$50$")
	c.Add(bob)

	second := c.NickList()
	if second == first {
		t.Fatal("expected nicklist to change after Add")
	}

	info := c.InfoList(nil)
	if info == "" {
		t.Fatal("expected non-empty infolist")
	}
	if c.TotalShare() != 150 {
		t.Fatalf("expected total share 150, got %d", c.TotalShare())
	}

	c.Remove(bob.NickHash)
	if c.Len() != 1 {
		t.Fatalf("expected 1 member after remove, got %d", c.Len())
	}
	if c.NickList() == second {
		t.Fatal("expected nicklist to change after Remove")
	}
}

func TestCollectionEachOrdersByInsertion(t *testing.T) {
	c := NewCollection()
	names := []string{"alice", "bob", "carol"}
	for _, n := range names {
		c.Add(NewUser(n))
	}
	var seen []string
	c.Each(func(u *User) { seen = append(seen, u.Nick) })
	for i, n := range names {
		if seen[i] != n {
			t.Fatalf("expected order %v, got %v", names, seen)
		}
	}
}
