// Package callback implements the hub's plugin/script dispatch surface:
// a registry of named hooks invoked in registration order, where any
// handler returning false vetoes the action in progress. Structurally
// grounded on girc's Caller (external/internal callback maps keyed by a
// generated uid), adapted for the hub's sequential veto-by-false
// semantics — callbacks here never run concurrently, since a plugin may
// depend on an earlier plugin's veto short-circuiting the chain.
package callback

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler is a single plugin/script callback. It returns false to veto
// the action currently being dispatched.
type Handler func(event Event) bool

// Event is the payload passed to every handler for one dispatch.
type Event struct {
	Hook string
	Args map[string]any
}

type registered struct {
	uid     string
	handler Handler
}

// Caller manages internal (core-owned) and external (plugin-owned) hook
// registrations and sequences their execution.
type Caller struct {
	mu       sync.RWMutex
	internal map[string][]registered
	external map[string][]registered
	budget   time.Duration
	log      *logrus.Entry
}

// New returns a Caller that logs handlers exceeding budget. A zero budget
// disables the overrun warning.
func New(log *logrus.Entry, budget time.Duration) *Caller {
	return &Caller{
		internal: make(map[string][]registered),
		external: make(map[string][]registered),
		budget:   budget,
		log:      log,
	}
}

func uid() string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func normalize(hook string) string { return strings.ToUpper(hook) }

// AddInternal registers a core-owned handler for hook, run before any
// external (plugin) handler for the same hook.
func (c *Caller) AddInternal(hook string, h Handler) (id string) {
	return c.add(true, hook, h)
}

// Add registers a plugin-owned handler for hook.
func (c *Caller) Add(hook string, h Handler) (id string) {
	return c.add(false, hook, h)
}

func (c *Caller) add(internal bool, hook string, h Handler) string {
	hook = normalize(hook)
	id := uid()
	c.mu.Lock()
	defer c.mu.Unlock()
	if internal {
		c.internal[hook] = append(c.internal[hook], registered{id, h})
	} else {
		c.external[hook] = append(c.external[hook], registered{id, h})
	}
	return id
}

// Remove deletes the plugin handler with the given id from hook. Internal
// handlers cannot be removed this way.
func (c *Caller) Remove(hook, id string) bool {
	hook = normalize(hook)
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.external[hook]
	for i, r := range list {
		if r.uid == id {
			c.external[hook] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Dispatch runs every internal handler for hook, then every external
// handler, in registration order. It stops and returns false at the
// first handler that vetoes. Handlers exceeding the configured time
// budget are logged but not interrupted — Go has no safe way to preempt
// an arbitrary function, so a slow plugin still finishes; only the log
// line marks it as having overrun.
func (c *Caller) Dispatch(hook string, ev Event) bool {
	hook = normalize(hook)
	ev.Hook = hook

	c.mu.RLock()
	stack := make([]registered, 0, len(c.internal[hook])+len(c.external[hook]))
	stack = append(stack, c.internal[hook]...)
	stack = append(stack, c.external[hook]...)
	c.mu.RUnlock()

	for _, r := range stack {
		start := time.Now()
		ok := r.handler(ev)
		if c.budget > 0 && c.log != nil {
			if elapsed := time.Since(start); elapsed > c.budget {
				c.log.WithFields(logrus.Fields{
					"hook":    hook,
					"handler": r.uid,
					"elapsed": elapsed,
					"budget":  c.budget,
				}).Warn("callback exceeded time budget")
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Count returns the number of registered external handlers for hook.
func (c *Caller) Count(hook string) int {
	hook = normalize(hook)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.external[hook])
}

// ClearAll removes every external (plugin) handler, leaving internal
// hooks untouched.
func (c *Caller) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.external = make(map[string][]registered)
}
