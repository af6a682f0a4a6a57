package session

import "time"

// Timeouts configures the per-stage login deadlines plus the general
// inactivity watchdog, grounded on the independent timeout fields
// cconndc.cpp tracks for Key/ValidateNick/Login/MyINFO/Password.
type Timeouts struct {
	Key           time.Duration
	ValidateNick  time.Duration
	Login         time.Duration
	MyINFO        time.Duration
	Password      time.Duration
	SetPassword   time.Duration
	Inactivity    time.Duration
	DelayedPing   time.Duration // 0 disables the per-connection ping probe
}

// DefaultTimeouts matches the conservative defaults most NMDC hubs ship.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Key:          10 * time.Second,
		ValidateNick: 10 * time.Second,
		Login:        30 * time.Second,
		MyINFO:       30 * time.Second,
		Password:     20 * time.Second,
		SetPassword:  60 * time.Second,
		Inactivity:   10 * time.Minute,
		DelayedPing:  time.Minute,
	}
}

// deadlineFor returns the configured timeout for the stage a connection
// is currently waiting to complete, or the Login timeout if that stage has
// no dedicated deadline (the general inactivity watchdog still applies).
func (t Timeouts) deadlineFor(waiting Stage) time.Duration {
	switch waiting {
	case StageKey:
		return t.Key
	case StageValidateNick:
		return t.ValidateNick
	case StagePassword:
		return t.Password
	case StageMyINFO:
		return t.MyINFO
	default:
		return t.Login
	}
}
