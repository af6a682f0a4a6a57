package message

import "testing"

func TestParseChatLine(t *testing.T) {
	m, err := Parse("<alice> hello there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindChat || m.Fields["text"] != "<alice> hello there" {
		t.Fatalf("unexpected chat parse: %+v", m)
	}
}

func TestParseLock(t *testing.T) {
	m, err := Parse("$Lock EXTENDEDPROTOCOL_NMDC_0001 Pk=vhub 1.0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindLock || m.Fields["lock"] != "EXTENDEDPROTOCOL_NMDC_0001" {
		t.Fatalf("unexpected lock parse: %+v", m)
	}
	if m.Fields["tail"] != "Pk=vhub 1.0.0" {
		t.Fatalf("unexpected lock tail: %+v", m)
	}
}

func TestParseMyINFO(t *testing.T) {
	frame := "$MyINFO $ALL alice desc here<++ V:1.0,M:A,H:1/0/0,S:5>$ $100.0KiB\x01$mail@example.com$123456$"
	m, err := Parse(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindMyINFO {
		t.Fatalf("expected MyINFO kind, got %v", m.Kind)
	}
	if m.Fields["nick"] != "alice" {
		t.Fatalf("unexpected nick: %q", m.Fields["nick"])
	}
	if m.Fields["email"] != "mail@example.com" {
		t.Fatalf("unexpected email: %q", m.Fields["email"])
	}
	if m.Fields["share"] != "123456" {
		t.Fatalf("unexpected share: %q", m.Fields["share"])
	}
}

func TestParseMyINFORejectsMissingALL(t *testing.T) {
	_, err := Parse("$MyINFO alice junk")
	if err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestParseConnectToMe(t *testing.T) {
	m, err := Parse("$ConnectToMe bob 203.0.113.5:412")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Fields["nick"] != "bob" || m.Fields["addr"] != "203.0.113.5:412" {
		t.Fatalf("unexpected fields: %+v", m.Fields)
	}
}

func TestParseSearch(t *testing.T) {
	m, err := Parse("$Search 203.0.113.5:412 F?T?0?9?needle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindSearch || m.Fields["target"] != "203.0.113.5:412" {
		t.Fatalf("unexpected search parse: %+v", m)
	}
}

func TestParseSRWithRoutingSuffix(t *testing.T) {
	body := "alice path\\5123 3/5\\5hub (203.0.113.5:411)\x05bob"
	m, err := Parse("$SR " + body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Fields["from"] != "alice" {
		t.Fatalf("unexpected from: %q", m.Fields["from"])
	}
	if m.Fields["to"] != "bob" {
		t.Fatalf("unexpected to: %q", m.Fields["to"])
	}
}

func TestParseToPrivateMessage(t *testing.T) {
	m, err := Parse("$To: bob From: alice $<alice> hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Fields["target"] != "bob" || m.Fields["from"] != "alice" {
		t.Fatalf("unexpected fields: %+v", m.Fields)
	}
	if m.Fields["body"] != "$<alice> hi there" {
		t.Fatalf("unexpected body: %q", m.Fields["body"])
	}
}

func TestParseUnknownCommandBecomesRaw(t *testing.T) {
	m, err := Parse("$SomeFutureCommand abc def")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindRaw || m.Command != "SomeFutureCommand" {
		t.Fatalf("unexpected raw parse: %+v", m)
	}
}

func TestParseEmptyFrame(t *testing.T) {
	m, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Kind != KindUnknown {
		t.Fatalf("expected unknown kind for empty frame, got %v", m.Kind)
	}
}

func TestParseShareBytes(t *testing.T) {
	n, err := ParseShareBytes("123456")
	if err != nil || n != 123456 {
		t.Fatalf("unexpected parse result: %d, %v", n, err)
	}
	if n, err := ParseShareBytes(""); err != nil || n != 0 {
		t.Fatalf("expected zero for empty share, got %d, %v", n, err)
	}
}
