// Package hub is the reactor: it owns the user/operator/bot collections,
// the command dispatch table, broadcast fan-out, and the periodic timers
// that drive temp-ban sweeps and connection housekeeping. It is built
// around an RWMutex-guarded map of connected peers with snapshot-then-send
// broadcast helpers and persistence-callback injection points.
package hub

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vhub/internal/abuse"
	"vhub/internal/callback"
	"vhub/internal/collab"
	"vhub/internal/config"
	"vhub/internal/identity"
	"vhub/internal/loadavg"
	"vhub/internal/metrics"
	"vhub/internal/session"
)

// Hub holds every collection and collaborator the reactor consults while
// processing connections, scoped to NMDC login/broadcast/abuse semantics.
type Hub struct {
	cfg config.Config
	log *logrus.Entry

	Users *identity.Collection // in-list, logged-in members (includes operators)
	Bots  *identity.Collection // BotINFO/bot accounts with no live Conn

	connections map[*session.Connection]struct{} // every accepted socket, pre- and post-login

	Registry  collab.Registry
	Bans      collab.BanList
	Geo       collab.GeoLookup
	Redirects collab.RedirectLookup
	IPHistory collab.IPHistory

	Callbacks *callback.Caller
	TempBans  *abuse.TempBanTable
	Clones    *abuse.CloneDetector
	ConnFlood *abuse.ConnectFlood
	HubFlood  *abuse.HubLimiter
	Load      *loadavg.Detector
	Metrics   *metrics.Hub

	topic string

	uploadBytes   uploadCounter
	connLimitsCfg [14]abuse.Limits // per-connection flood config, used to build each Connection's ConnLimiter
}

// New constructs a Hub from loaded configuration and wired collaborators.
// A nil registry, ban list, geo or redirect lookup falls back to its Nil*
// no-op implementation; a nil ipHistory gets a 10000-entry in-memory one.
func New(cfg config.Config, log *logrus.Entry, registry collab.Registry, bans collab.BanList, geo collab.GeoLookup, redirects collab.RedirectLookup, ipHistory collab.IPHistory, m *metrics.Hub) *Hub {
	if registry == nil {
		registry = collab.NilRegistry{}
	}
	if bans == nil {
		bans = collab.NilBanList{}
	}
	if geo == nil {
		geo = collab.NilGeoLookup{}
	}
	if redirects == nil {
		redirects = collab.NilRedirectLookup{}
	}
	if ipHistory == nil {
		ipHistory = collab.NewMemoryIPHistory(10000)
	}

	h := &Hub{
		cfg:         cfg,
		log:         log,
		Users:       identity.NewCollection(),
		Bots:        identity.NewCollection(),
		connections: make(map[*session.Connection]struct{}),
		Registry:    registry,
		Bans:        bans,
		Geo:         geo,
		Redirects:   redirects,
		IPHistory:   ipHistory,
		Callbacks:   callback.New(log, cfg.Hub.PluginBudget),
		TempBans:    abuse.NewTempBanTable(),
		Clones:      abuse.NewCloneDetector(),
		ConnFlood:   abuse.NewConnectFlood(1, 5),
		HubFlood:    buildHubLimiter(cfg),
		Metrics:     m,
		topic:       cfg.Hub.Description,
	}
	h.Load = loadavg.NewDetector(loadavg.DefaultThresholds(), h.uploadBytesPerSecond)
	h.connLimitsCfg = buildConnLimits(cfg)
	return h
}

func buildHubLimiter(cfg config.Config) *abuse.HubLimiter {
	kinds := map[string]abuse.Kind{
		"chat": abuse.KindChat, "to": abuse.KindTo, "mcto": abuse.KindMCTo,
		"search": abuse.KindSearch, "revconnecttome": abuse.KindRevConnectToMe,
	}
	out := make(map[abuse.Kind]abuse.Limits)
	for name, lim := range cfg.Flood.HubWide {
		k, ok := kinds[name]
		if !ok || lim.Limit <= 0 || lim.PeriodSeconds <= 0 {
			continue
		}
		out[k] = abuse.Limits{Period: time.Duration(lim.PeriodSeconds) * time.Second, Limit: lim.Limit}
	}
	return abuse.NewHubLimiter(out)
}

func buildConnLimits(cfg config.Config) [14]abuse.Limits {
	kinds := map[string]abuse.Kind{
		"connecttome": abuse.KindConnectToMe, "revconnecttome": abuse.KindRevConnectToMe,
		"sr": abuse.KindSR, "search": abuse.KindSearch, "myinfo": abuse.KindMyINFO,
		"extjson": abuse.KindExtJSON, "nicklist": abuse.KindNickList, "to": abuse.KindTo,
		"chat": abuse.KindChat, "getinfo": abuse.KindGetINFO, "mcto": abuse.KindMCTo,
		"in": abuse.KindIN, "ping": abuse.KindPing,
	}
	var out [14]abuse.Limits
	for name, lim := range cfg.Flood.PerConnection {
		k, ok := kinds[name]
		if !ok || lim.Limit <= 0 || lim.PeriodSeconds <= 0 {
			continue
		}
		out[k] = abuse.Limits{Period: time.Duration(lim.PeriodSeconds) * time.Second, Limit: lim.Limit}
	}
	return out
}

// NewConnLimiter builds a per-connection flood limiter from the hub's
// loaded configuration, for the listener to attach to each new Connection.
func (h *Hub) NewConnLimiter() *abuse.ConnLimiter {
	return abuse.NewConnLimiter(h.connLimitsCfg)
}

// Track registers a newly accepted connection with the hub before login
// completes, so housekeeping timers can sweep its timeouts.
func (h *Hub) Track(c *session.Connection) {
	h.connections[c] = struct{}{}
}

// Untrack removes a connection from housekeeping once it is closed.
func (h *Hub) Untrack(c *session.Connection) {
	delete(h.connections, c)
}

// Topic returns the current hub topic (SetTopic target).
func (h *Hub) Topic() string { return h.topic }

// SetTopic updates the hub topic.
func (h *Hub) SetTopic(topic string) { h.topic = topic }

// Config returns the hub's currently loaded configuration snapshot.
func (h *Hub) Config() config.Config { return h.cfg }

// SetConfig atomically swaps the configuration snapshot — called by the
// config.Watcher's reload callback.
func (h *Hub) SetConfig(cfg config.Config) { h.cfg = cfg }

// Run starts the hub's background workers (temp-ban sweep, system load
// sampling, connection timeout sweep, plus the hublist-registration and
// update-check stubs) until ctx is canceled. The workers run under one
// errgroup.Group so Run returns once every one of them has observed
// cancellation, rather than leaking goroutines past the caller's wait.
func (h *Hub) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Load.Run(gctx, 5*time.Second)
		return nil
	})
	g.Go(func() error {
		h.runSweeps(gctx)
		return nil
	})
	g.Go(func() error {
		h.runHublistRegistration(gctx)
		return nil
	})
	g.Go(func() error {
		h.runUpdateCheck(gctx)
		return nil
	})

	return g.Wait()
}

func (h *Hub) runSweeps(ctx context.Context) {
	tempBanSweep := time.NewTicker(30 * time.Second)
	connSweep := time.NewTicker(time.Second)
	defer tempBanSweep.Stop()
	defer connSweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tempBanSweep.C:
			n := h.TempBans.Sweep(time.Now())
			if n > 0 {
				h.log.WithField("expired", n).Debug("temp-ban sweep")
			}
		case <-connSweep.C:
			h.sweepConnections()
		}
	}
}

// runHublistRegistration is a stub for periodic hub-list advertisement
// (original_source's hublist-registration plugin has no facade interface
// in this build — no public-hub-list collaborator is wired — so this
// currently only logs at debug level on each tick rather than dialing
// out).
func (h *Hub) runHublistRegistration(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.log.WithField("users", h.Users.Len()).Debug("hublist registration tick (stub)")
		}
	}
}

// runUpdateCheck is a stub for a periodic new-version check; like
// runHublistRegistration, no update-service collaborator is wired, so
// this only logs on each tick.
func (h *Hub) runUpdateCheck(ctx context.Context) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.log.Debug("update check tick (stub)")
		}
	}
}

func (h *Hub) sweepConnections() {
	now := time.Now()
	for c := range h.connections {
		if expired, reason := c.Expired(now); expired {
			c.CloseNow(reason)
			h.Metrics.RecordClose(string(reason))
			delete(h.connections, c)
		}
	}
}

// uploadCounter is a plain (unsynchronized) byte/sec tracker feeding
// loadavg.Detector. AddUploadBytes is its only input and nothing in this
// package calls it, so the rate it reports stays 0 unless a caller does.
type uploadCounter struct {
	bytesThisWindow int64
	windowStart     time.Time
}

// AddUploadBytes records n bytes written on any connection this tick.
func (h *Hub) AddUploadBytes(n int64) {
	h.uploadBytes.bytesThisWindow += n
}

func (h *Hub) uploadBytesPerSecond() int64 {
	now := time.Now()
	if h.uploadBytes.windowStart.IsZero() {
		h.uploadBytes.windowStart = now
		return 0
	}
	elapsed := now.Sub(h.uploadBytes.windowStart).Seconds()
	if elapsed <= 0 {
		return 0
	}
	rate := int64(float64(h.uploadBytes.bytesThisWindow) / elapsed)
	h.uploadBytes.bytesThisWindow = 0
	h.uploadBytes.windowStart = now
	return rate
}

// UserCount returns the number of logged-in, in-list members.
func (h *Hub) UserCount() int { return h.Users.Len() }
