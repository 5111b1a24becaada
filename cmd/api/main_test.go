package main

import (
	"net/http"
	"testing"
	"time"

	appconfig "github.com/wolfman30/replyflow/internal/config"
)

func TestNewServerTimeouts(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9090"}, http.NotFoundHandler())
	if srv.Addr != ":9090" {
		t.Fatalf("expected addr :9090, got %q", srv.Addr)
	}
	if srv.ReadTimeout != 15*time.Second || srv.WriteTimeout != 15*time.Second || srv.IdleTimeout != 60*time.Second {
		t.Fatalf("unexpected timeouts: %v %v %v", srv.ReadTimeout, srv.WriteTimeout, srv.IdleTimeout)
	}
}

type blockingWaiter struct{ release chan struct{} }

func (w blockingWaiter) Wait() { <-w.release }

func TestWaitForWorker(t *testing.T) {
	done := blockingWaiter{release: make(chan struct{})}
	close(done.release)
	if !waitForWorker(done, time.Second) {
		t.Fatalf("expected finished worker to report done")
	}

	stuck := blockingWaiter{release: make(chan struct{})}
	defer close(stuck.release)
	if waitForWorker(stuck, 20*time.Millisecond) {
		t.Fatalf("expected stuck worker to time out")
	}
}
