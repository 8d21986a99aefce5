package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradecost/internal/config"
	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/feed"
	"github.com/alanyoungcy/tradecost/internal/metrics"
)

// heldTransport replays frames and then blocks until closed.
type heldTransport struct {
	mu     sync.Mutex
	frames []string
	closed chan struct{}
	once   sync.Once
}

func (t *heldTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if len(t.frames) > 0 {
		f := t.frames[0]
		t.frames = t.frames[1:]
		t.mu.Unlock()
		return []byte(f), nil
	}
	t.mu.Unlock()
	<-t.closed
	return nil, domain.ErrTransport
}

func (t *heldTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func testApp(t *testing.T, mode string, dial feed.Dialer) *App {
	t.Helper()
	cfg := config.Defaults()
	cfg.Mode = mode
	cfg.Server.Port = 0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(&cfg, logger)
	a.dial = dial
	return a
}

func TestStreamModeStopsOnCancel(t *testing.T) {
	tr := &heldTransport{
		frames: []string{
			`{"asks":[["101","2"]],"bids":[["99","1"]]}`,
			`{"asks":[["102","2"]],"bids":[["100","1"]]}`,
		},
		closed: make(chan struct{}),
	}
	a := testApp(t, "stream", func(context.Context) (feed.Transport, error) { return tr, nil })
	deps := &Dependencies{Metrics: metrics.NewRegistry(false)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.StreamMode(ctx, deps) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(deps.Metrics.Messages.WithLabelValues(feed.OutcomeEmitted)) == 2
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream mode did not return after cancel")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.Sessions.WithLabelValues("stopped")))
}

func TestFullModeEndsWithFailedStream(t *testing.T) {
	dialErr := errors.New("connection refused")
	a := testApp(t, "full", func(context.Context) (feed.Transport, error) {
		return nil, dialErr
	})
	deps := &Dependencies{Metrics: metrics.NewRegistry(false)}

	done := make(chan error, 1)
	go func() { done <- a.FullMode(context.Background(), deps) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, dialErr)
	case <-time.After(5 * time.Second):
		t.Fatal("full mode did not return after the stream failed")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(deps.Metrics.Sessions.WithLabelValues("failed")))
}

func TestFullModeWithoutServerSkipsHub(t *testing.T) {
	const frames = 300
	tr := &heldTransport{closed: make(chan struct{})}
	for i := 0; i < frames; i++ {
		tr.frames = append(tr.frames, fmt.Sprintf(`{"asks":[["%d","2"]],"bids":[["%d","1"]]}`, 101+i%7, 99+i%5))
	}
	a := testApp(t, "full", func(context.Context) (feed.Transport, error) { return tr, nil })
	a.cfg.Server.Enabled = false
	var logs bytes.Buffer
	a.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	deps := &Dependencies{Metrics: metrics.NewRegistry(false)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.FullMode(ctx, deps) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(deps.Metrics.Messages.WithLabelValues(feed.OutcomeEmitted)) == frames
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("full mode did not return after cancel")
	}
	assert.Zero(t, strings.Count(logs.String(), "broadcast queue full"))
	assert.NotContains(t, logs.String(), "ws_hub")
}

func TestRunRejectsUnknownMode(t *testing.T) {
	a := testApp(t, "backtest", nil)
	defer a.Close()
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
