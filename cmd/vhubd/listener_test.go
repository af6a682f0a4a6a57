package main

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"vhub/internal/config"
	"vhub/internal/hub"
	"vhub/internal/metrics"
)

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	cfg := *config.Default()
	log := logrus.NewEntry(logrus.New())
	m := metrics.New(prometheus.NewRegistry())
	return hub.New(cfg, log, nil, nil, nil, nil, nil, m)
}

func TestServeConnSendsLockChallengeOnAccept(t *testing.T) {
	h := newTestHub(t)
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serveConn(ctx, server, h, logrus.NewEntry(logrus.New()))

	buf := make([]byte, 256)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read lock challenge: %v", err)
	}
	if !strings.HasPrefix(string(buf[:n]), "$Lock ") {
		t.Fatalf("expected a $Lock challenge, got %q", string(buf[:n]))
	}
}
