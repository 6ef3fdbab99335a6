//go:build !integration

package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// freePort reserves an ephemeral port and releases it for the server to bind.
func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())
	return port
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name            string
		shutdownTimeout time.Duration
		want            time.Duration
	}{
		{name: "configured timeout", shutdownTimeout: 3 * time.Second, want: 3 * time.Second},
		{name: "zero falls back to default", shutdownTimeout: 0, want: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(okHandler(), "8080", tt.shutdownTimeout)

			require.NotNil(t, server.httpServer)
			assert.Equal(t, ":8080", server.httpServer.Addr)
			assert.Equal(t, 15*time.Second, server.httpServer.ReadTimeout)
			assert.Equal(t, 45*time.Second, server.httpServer.WriteTimeout)
			assert.Equal(t, 60*time.Second, server.httpServer.IdleTimeout)
			assert.Equal(t, tt.want, server.shutdownTimeout)
		})
	}
}

func TestServer_Run_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	server := NewServer(okHandler(), port, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	hookCalled := make(chan struct{}, 1)
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx, func(context.Context) error {
			hookCalled <- struct{}{}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down in time")
	}
	select {
	case <-hookCalled:
	default:
		t.Fatal("shutdown hook was not called")
	}
}

func TestServer_Run_HookErrorIsReturned(t *testing.T) {
	server := NewServer(okHandler(), freePort(t), time.Second)
	hookErr := errors.New("queues did not drain")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := server.Run(ctx, func(context.Context) error { return hookErr })
	assert.ErrorIs(t, err, hookErr)
}

func TestServer_Run_ListenError(t *testing.T) {
	server := NewServer(okHandler(), "invalid-port", time.Second)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(context.Background(), nil)
	}()

	select {
	case err := <-errChan:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected listen error")
	}
}
