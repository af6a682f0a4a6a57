package session

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"vhub/internal/abuse"
	"vhub/internal/identity"
	"vhub/internal/wire"
)

// Connection is one accepted socket walking the login state machine
// through to StageLoginDone, at which point the hub promotes it to an
// identity.User.
type Connection struct {
	ID uuid.UUID // correlation ID for logs

	mu       sync.Mutex
	conn     net.Conn
	writer   *wire.Writer
	closed   bool
	closeReason CloseReason

	remoteIP string
	connectedAt time.Time
	lastIO      time.Time

	stage        Stage
	waitingStage Stage // the stage currently being timed
	deadline     time.Time
	timeouts     Timeouts

	features map[string]bool // negotiated $Supports tokens, both directions

	limiter *abuse.ConnLimiter

	// Set once ValidateNick completes.
	Nick     string
	NickHash uint64

	// Set once MyINFO/login-done promotes this connection into the user list.
	User *identity.User
	// Non-nil when the nick matched a registered account.
	Reg *identity.RegData

	Passive     bool
	IsPinger    bool // BotINFO path: out-of-userlist ping session
	RedirectURL string

	lockChallenge string // the Lock string this connection emitted, retained to validate Key
}

// New wraps conn as a fresh Connection in the initial accepted state,
// already waiting on StageKey.
func New(conn net.Conn, timeouts Timeouts, limiter *abuse.ConnLimiter) *Connection {
	now := time.Now()
	ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	c := &Connection{
		ID:          uuid.New(),
		conn:        conn,
		writer:      wire.NewWriter(conn),
		remoteIP:    ip,
		connectedAt: now,
		lastIO:      now,
		timeouts:    timeouts,
		features:    make(map[string]bool),
		limiter:     limiter,
		waitingStage: StageKey,
	}
	c.deadline = now.Add(timeouts.deadlineFor(StageKey))
	return c
}

// RemoteIP satisfies identity.ConnHandle.
func (c *Connection) RemoteIP() string { return c.remoteIP }

// Send satisfies identity.ConnHandle and the hub's broadcast primitives.
// delay buffers the frame for the next Flush instead of writing immediately.
func (c *Connection) Send(frame []byte, delay bool) error {
	return c.writer.Write(frame, delay)
}

// Flush forces any buffered (delayed) frames onto the wire.
func (c *Connection) Flush() error {
	return c.writer.Flush()
}

// Close satisfies identity.ConnHandle's Close(reason string); it forwards
// to CloseNow. Use CloseNow/CloseNice directly for the typed CloseReason
// and error return.
func (c *Connection) Close(reason string) {
	_ = c.CloseNow(CloseReason(reason))
}

// CloseNow detaches the connection immediately.
func (c *Connection) CloseNow(reason CloseReason) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.closeReason = reason
	c.mu.Unlock()
	return c.conn.Close()
}

// CloseNice lets any already-buffered output drain for ms before the
// socket is closed. Handlers should treat the connection as dying as soon
// as this is called.
func (c *Connection) CloseNice(ms int, reason CloseReason) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closeReason = reason
	c.mu.Unlock()

	_ = c.Flush()
	if ms <= 0 {
		_ = c.CloseNow(reason)
		return
	}
	time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		_ = c.CloseNow(reason)
	})
}

// Closed reports whether the connection has begun or completed shutdown.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseReason returns the reason recorded by CloseNow/CloseNice, or
// CloseNone if the connection is still open.
func (c *Connection) CloseReason() CloseReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

// Touch records activity for the inactivity watchdog.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastIO = time.Now()
	c.mu.Unlock()
}

// IdleFor reports how long it has been since the last recorded I/O.
func (c *Connection) IdleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastIO)
}

// SetLockChallenge records the Lock string emitted on accept so the Key
// reply can be validated against it.
func (c *Connection) SetLockChallenge(lock string) { c.lockChallenge = lock }

// LockChallenge returns the Lock string this connection emitted.
func (c *Connection) LockChallenge() string { return c.lockChallenge }

// HasStage reports whether a login stage has already completed.
func (c *Connection) HasStage(s Stage) bool { return c.stage.Has(s) }

// AdvanceStage marks a stage complete exactly once, rejecting duplicates.
// It reports whether the stage was newly set (false means the caller sent
// it twice).
func (c *Connection) AdvanceStage(s Stage) bool {
	if c.stage.Has(s) {
		return false
	}
	c.stage.Set(s)
	return true
}

// ArmDeadline starts timing the given stage, replacing any prior deadline.
func (c *Connection) ArmDeadline(waiting Stage) {
	c.waitingStage = waiting
	c.deadline = time.Now().Add(c.timeouts.deadlineFor(waiting))
}

// Expired reports whether the currently-armed stage deadline, or the
// general inactivity watchdog, has elapsed — and which fired.
func (c *Connection) Expired(now time.Time) (bool, CloseReason) {
	if !c.stage.Has(StageLoginDone) && !c.deadline.IsZero() && now.After(c.deadline) {
		return true, CloseTimeout
	}
	if c.timeouts.Inactivity > 0 && now.Sub(c.lastIO) > c.timeouts.Inactivity {
		return true, CloseIdleTimeout
	}
	return false, CloseNone
}

// SetFeature records a negotiated $Supports token.
func (c *Connection) SetFeature(name string) { c.features[name] = true }

// HasFeature reports whether the peer announced a given $Supports token.
func (c *Connection) HasFeature(name string) bool { return c.features[name] }

// Limiter exposes the per-connection flood limiter for the hub's dispatch
// loop to consult before processing each command.
func (c *Connection) Limiter() *abuse.ConnLimiter { return c.limiter }
