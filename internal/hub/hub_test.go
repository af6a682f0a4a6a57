package hub

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"vhub/internal/abuse"
	"vhub/internal/config"
	"vhub/internal/identity"
	"vhub/internal/message"
	"vhub/internal/metrics"
	"vhub/internal/session"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	cfg := *config.Default()
	log := logrus.NewEntry(logrus.New())
	m := metrics.New(prometheus.NewRegistry())
	return New(cfg, log, nil, nil, nil, nil, nil, m)
}

// testPeer wires a session.Connection to a net.Pipe and a frame reader so
// tests can assert what the hub sends without blocking on the unbuffered
// pipe write.
type testPeer struct {
	conn   *session.Connection
	client net.Conn
	frames chan string
}

func newTestPeer(t *testing.T, h *Hub, nick string) *testPeer {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })

	var limits [14]abuse.Limits
	c := session.New(server, session.DefaultTimeouts(), abuse.NewConnLimiter(limits))
	c.Nick = nick
	c.NickHash = identity.HashNick(nick)

	u := identity.NewUser(nick)
	u.Conn = c
	c.User = u
	h.Users.Add(u)

	p := &testPeer{conn: c, client: client, frames: make(chan string, 32)}
	go p.drain()
	return p
}

func (p *testPeer) drain() {
	buf := make([]byte, 4096)
	var acc strings.Builder
	for {
		n, err := p.client.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			for {
				s := acc.String()
				idx := strings.IndexByte(s, '|')
				if idx < 0 {
					break
				}
				p.frames <- s[:idx+1]
				rest := s[idx+1:]
				acc.Reset()
				acc.WriteString(rest)
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *testPeer) expectFrame(t *testing.T, contains string) {
	t.Helper()
	select {
	case f := <-p.frames:
		if !strings.Contains(f, contains) {
			t.Fatalf("frame %q does not contain %q", f, contains)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame containing %q", contains)
	}
}

func (p *testPeer) expectNoFrame(t *testing.T) {
	t.Helper()
	select {
	case f := <-p.frames:
		t.Fatalf("expected no frame, got %q", f)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleChatBroadcastsToAllIncludingSender(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")
	bob := newTestPeer(t, h, "bob")

	h.handleChat(alice.conn, message.Message{Kind: message.KindChat, Raw: "hello there"})

	alice.expectFrame(t, "<alice> hello there")
	bob.expectFrame(t, "<alice> hello there")
}

func TestHandleChatDropsRepeatedMessage(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")

	h.handleChat(alice.conn, message.Message{Kind: message.KindChat, Raw: "spam"})
	alice.expectFrame(t, "spam")

	h.handleChat(alice.conn, message.Message{Kind: message.KindChat, Raw: "spam"})
	alice.expectNoFrame(t)
}

func TestHandleToForwardsOnlyToTarget(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")
	bob := newTestPeer(t, h, "bob")
	carol := newTestPeer(t, h, "carol")

	msg := message.Message{
		Kind: message.KindTo, Raw: "$To: bob From: alice $<alice> hi|",
		Fields: map[string]string{"target": "bob", "from": "alice", "body": "hi"},
	}
	h.handleTo(alice.conn, msg)

	bob.expectFrame(t, "$To:")
	carol.expectNoFrame(t)
}

func TestHandleKickRejectsLowerClassKicker(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice") // default ClassGuest
	bob := newTestPeer(t, h, "bob")

	h.handleKick(alice.conn, message.Message{Fields: map[string]string{"nick": "bob"}})

	bob.expectNoFrame(t)
	if h.Users.Get(identity.HashNick("bob")) == nil {
		t.Fatal("bob should not have been removed")
	}
}

func TestHandleKickRemovesTargetWhenAuthorized(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")
	alice.conn.User.Class = identity.ClassOp
	bob := newTestPeer(t, h, "bob")

	h.handleKick(alice.conn, message.Message{Fields: map[string]string{"nick": "bob"}})

	if h.Users.Get(identity.HashNick("bob")) != nil {
		t.Fatal("expected bob to be removed from the collection")
	}
	if reason, _, banned := h.TempBans.CheckNick("bob", time.Now()); !banned || reason == "" {
		t.Fatalf("expected bob to carry a temp-ban, got banned=%v reason=%q", banned, reason)
	}
}

func TestHandleConnectToMeRewritesMismatchedIP(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")
	bob := newTestPeer(t, h, "bob")

	h.handleConnectToMe(alice.conn, message.Message{
		Fields: map[string]string{"nick": "bob", "addr": "10.0.0.9:412"},
	})

	select {
	case f := <-bob.frames:
		if strings.Contains(f, "10.0.0.9") {
			t.Fatalf("expected client-supplied IP to be rewritten, got %q", f)
		}
		if !strings.Contains(f, ":412") {
			t.Fatalf("expected port to survive rewrite, got %q", f)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ConnectToMe forward")
	}
}

func TestHandleSRDropsUnaddressedResult(t *testing.T) {
	h := newTestHub(t)
	alice := newTestPeer(t, h, "alice")
	bob := newTestPeer(t, h, "bob")

	h.handleSR(alice.conn, message.Message{Fields: map[string]string{"from": "alice", "body": "x", "to": ""}})
	bob.expectNoFrame(t)

	h.handleSR(alice.conn, message.Message{Fields: map[string]string{"from": "alice", "body": "x", "to": "bob"}})
	bob.expectFrame(t, "$SR alice x")
}

func TestValidateNickRejectsForbiddenChar(t *testing.T) {
	h := newTestHub(t)
	_, detail, ok := ValidateNick("bad|nick", nil, h.Users, h.TempBans, h.cfg.Nick)
	if ok {
		t.Fatalf("expected forbidden-char nick to be rejected, detail=%q", detail)
	}
}

func TestValidateNickRejectsDuplicate(t *testing.T) {
	h := newTestHub(t)
	newTestPeer(t, h, "alice")
	_, _, ok := ValidateNick("alice", nil, h.Users, h.TempBans, h.cfg.Nick)
	if ok {
		t.Fatal("expected duplicate nick to be rejected")
	}
}

func TestRunExitsWhenContextCanceled(t *testing.T) {
	h := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
