package api

import (
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunReturnsListenError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	srv := &http.Server{Addr: taken.Addr().String(), Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- run(srv, make(chan os.Signal), time.Second, zap.NewNop()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error for an address in use")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected run to return when the server cannot listen")
	}
}

func TestRunShutsDownOnSignal(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- run(srv, quit, time.Second, zap.NewNop()) }()

	quit <- syscall.SIGTERM
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected graceful shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected run to return after the signal")
	}
}
