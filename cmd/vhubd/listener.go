package main

import (
	"context"
	"errors"
	"net"

	"github.com/sirupsen/logrus"

	"vhub/internal/hub"
	"vhub/internal/session"
	"vhub/internal/wire"
)

// acceptLoop accepts connections off ln until ctx is canceled, handing
// each one to the hub's Lock/Key handshake and then its own read pump.
func acceptLoop(ctx context.Context, ln net.Listener, h *hub.Hub, log *logrus.Entry) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return err
		}
		go serveConn(ctx, conn, h, log)
	}
}

// serveConn owns one accepted socket end to end: Lock/Key handshake
// through post-login protocol engine dispatch, until the read pump exits.
func serveConn(ctx context.Context, conn net.Conn, h *hub.Hub, log *logrus.Entry) {
	c := session.New(conn, session.DefaultTimeouts(), h.NewConnLimiter())
	h.Accept(c)
	defer func() {
		conn.Close()
		h.Disconnect(c)
	}()

	reader := wire.NewReader()
	buf := make([]byte, 8192)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := reader.Feed(buf[:n])
			for _, f := range frames {
				h.Dispatch(ctx, c, string(f))
				if c.Closed() {
					return
				}
			}
			if ferr != nil {
				c.CloseNow(session.CloseSyntaxError)
				return
			}
		}
		if err != nil {
			return
		}
		if c.Closed() {
			return
		}
	}
}
