package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedTransport replays frames, then fails like a dropped connection.
// If hold is set it blocks after the last frame until closed.
type scriptedTransport struct {
	frames [][]byte
	hold   bool

	mu     sync.Mutex
	next   int
	closed chan struct{}
	once   sync.Once
}

func newScripted(hold bool, frames ...string) *scriptedTransport {
	t := &scriptedTransport{hold: hold, closed: make(chan struct{})}
	for _, f := range frames {
		t.frames = append(t.frames, []byte(f))
	}
	return t
}

func (t *scriptedTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if t.next < len(t.frames) {
		f := t.frames[t.next]
		t.next++
		t.mu.Unlock()
		return f, nil
	}
	t.mu.Unlock()

	if !t.hold {
		return nil, fmt.Errorf("%w: connection reset", domain.ErrTransport)
	}
	<-t.closed
	return nil, fmt.Errorf("%w: use of closed connection", domain.ErrTransport)
}

func (t *scriptedTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *scriptedTransport) dialer() Dialer {
	return func(context.Context) (Transport, error) { return t, nil }
}

// recordingSink collects everything the ingestor emits. stopAfter > 0 makes
// it call Stop once that many estimates have arrived.
type recordingSink struct {
	mu        sync.Mutex
	estimates []domain.CostEstimate
	ends      []domain.StreamEnd

	stopAfter  int
	in         *Ingestor
	onEstimate func(n int)
}

func (s *recordingSink) HandleEstimate(_ context.Context, est domain.CostEstimate) {
	s.mu.Lock()
	s.estimates = append(s.estimates, est)
	n := len(s.estimates)
	s.mu.Unlock()

	if s.onEstimate != nil {
		s.onEstimate(n)
	}
	if s.stopAfter > 0 && n >= s.stopAfter && s.in != nil {
		s.in.Stop()
	}
}

func (s *recordingSink) HandleStreamEnd(_ context.Context, end domain.StreamEnd) {
	s.mu.Lock()
	s.ends = append(s.ends, end)
	s.mu.Unlock()
}

func (s *recordingSink) Estimates() []domain.CostEstimate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CostEstimate(nil), s.estimates...)
}

func (s *recordingSink) Ends() []domain.StreamEnd {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.StreamEnd(nil), s.ends...)
}

// stepClock advances by step on every reading.
type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(c.step)
	return c.t
}

func testConfig() Config {
	return Config{
		Exchange: "OKX",
		Symbol:   "BTC-USDT-SWAP",
		Parameters: domain.Parameters{
			USDAmount:  100,
			FeeTier:    domain.FeeTier1,
			Volatility: 0.6,
		},
		MakerTaker: MakerTakerFeatures{
			IsMarketOrder:      true,
			OrderBookDepth:     0.4,
			TimeSinceLastTrade: 0.3,
		},
	}
}

func bookFrame(ask, bid float64) string {
	return fmt.Sprintf(`{"asks":[[%g,1]],"bids":[[%g,1]]}`, ask, bid)
}
