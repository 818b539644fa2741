package posegraph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotJSON = `{"header":{"seq":9},"nodes":[` +
	`{"robotName":"r2","id":0,"pose":{"stamp":1,"position":[5,5,0]}},` +
	`{"robotName":"r1","id":0,"pose":{"stamp":1,"position":[1,2,0]}},` +
	`{"robotName":"r1","id":1,"pose":{"stamp":2,"position":[2,2,0]}}]}`

// snapshotServer answers with the given statuses in order, then with body
func snapshotServer(t *testing.T, body string, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		n := int(calls.Add(1))
		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetchRobotSnapshot_KeepsOwnNodes(t *testing.T) {
	server, _ := snapshotServer(t, snapshotJSON)

	msg, err := FetchRobotSnapshot(context.Background(), server.URL, "r1", WithHTTPClient(server.Client()))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), msg.Header.Seq)
	require.Len(t, msg.Nodes, 2)
	for _, n := range msg.Nodes {
		assert.Equal(t, "r1", n.RobotName)
	}
}

func TestFetchRobotSnapshot_RejectsForeignSnapshot(t *testing.T) {
	server, calls := snapshotServer(t, snapshotJSON)

	_, err := FetchRobotSnapshot(context.Background(), server.URL, "r3", WithBaseBackoff(time.Millisecond))
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, int32(1), calls.Load(), "a snapshot without this robot is not retried")
}

func TestFetchRobotSnapshot_Arguments(t *testing.T) {
	_, err := FetchRobotSnapshot(context.Background(), "", "r1")
	assert.Error(t, err)
	_, err = FetchRobotSnapshot(context.Background(), "http://localhost", "")
	assert.Error(t, err)
}

func TestFetchRobotSnapshot_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		attempts  int
		wantErr   bool
		wantCalls int32
	}{
		{"recovers after unavailable", []int{http.StatusServiceUnavailable, http.StatusTooManyRequests}, 3, false, 3},
		{"gives up after all attempts", []int{500, 500, 500}, 2, true, 2},
		{"client error is final", []int{http.StatusNotFound}, 3, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := snapshotServer(t, snapshotJSON, tt.statuses...)
			msg, err := FetchRobotSnapshot(context.Background(), server.URL, "r1",
				WithMaxRetries(tt.attempts), WithBaseBackoff(time.Millisecond), WithTimeout(time.Second))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, msg.Nodes, 2)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestFetchRobotSnapshot_MalformedNotRetried(t *testing.T) {
	server, calls := snapshotServer(t, `{"nodes":[]}`)

	_, err := FetchRobotSnapshot(context.Background(), server.URL, "r1", WithBaseBackoff(time.Millisecond))
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRobotSnapshot_ContextCancelled(t *testing.T) {
	server, _ := snapshotServer(t, snapshotJSON, http.StatusBadGateway)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchRobotSnapshot(ctx, server.URL, "r1", WithBaseBackoff(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGraphClient_Bootstrap(t *testing.T) {
	t.Run("stores only this robot", func(t *testing.T) {
		server, _ := snapshotServer(t, snapshotJSON)
		cfg := testConfig(t, ModeEuclidean)
		cfg.BootstrapURL = server.URL
		c, _ := newTestClient(t, cfg)

		require.NoError(t, c.Bootstrap(context.Background()))
		assert.Equal(t, []string{"r1"}, c.Status().OptimizedKeys)
	})

	t.Run("foreign snapshot stores nothing", func(t *testing.T) {
		server, _ := snapshotServer(t, snapshotJSON)
		cfg := testConfig(t, ModeEuclidean)
		cfg.RobotName = "r3"
		cfg.BootstrapURL = server.URL
		c, _ := newTestClient(t, cfg)

		assert.ErrorIs(t, c.Bootstrap(context.Background()), ErrMalformedInput)
		assert.Empty(t, c.Status().OptimizedKeys)
	})

	t.Run("no endpoint", func(t *testing.T) {
		c, _ := newTestClient(t, testConfig(t, ModeEuclidean))
		assert.NoError(t, c.Bootstrap(context.Background()))
	})
}
