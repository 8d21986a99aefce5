// Package feed ingests a level-2 order book stream and turns every update
// into a trade cost estimate.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradecost/internal/costmodel"
	"github.com/alanyoungcy/tradecost/internal/domain"
)

// Message outcomes reported to the Observer.
const (
	OutcomeEmitted  = "emitted"
	OutcomeIgnored  = "ignored"
	OutcomeOneSided = "one_sided"
	OutcomeSkipped  = "skipped"
	OutcomeFatal    = "fatal"
)

// Observer receives instrumentation events from the ingestion loop.
type Observer interface {
	ObserveMessage(outcome string)
	ObserveState(state domain.StreamState)
	ObserveHistory(depth int)
	// ObserveStreamLatency is called for every frame after the first in a
	// session, whatever its outcome.
	ObserveStreamLatency(ms float64)
}

type nopObserver struct{}

func (nopObserver) ObserveMessage(string)           {}
func (nopObserver) ObserveState(domain.StreamState) {}
func (nopObserver) ObserveHistory(int)              {}
func (nopObserver) ObserveStreamLatency(float64)    {}

// MakerTakerFeatures are the order features fed to the maker/taker model
// alongside the volatility parameter.
type MakerTakerFeatures struct {
	IsMarketOrder      bool
	OrderBookDepth     float64
	TimeSinceLastTrade float64
}

// Config configures an Ingestor.
type Config struct {
	Exchange   string
	Symbol     string
	Parameters domain.Parameters
	MakerTaker MakerTakerFeatures
	// HistorySize caps the rolling mid price history. Zero selects
	// DefaultHistorySize.
	HistorySize int
	// SkipInvalidMessages logs and drops messages that fail to decode or
	// evaluate instead of ending the session.
	SkipInvalidMessages bool
}

// Status is a point-in-time view of the ingestor for operators.
type Status struct {
	SessionID  string             `json:"session_id,omitempty"`
	Exchange   string             `json:"exchange"`
	Symbol     string             `json:"symbol"`
	State      domain.StreamState `json:"state"`
	Messages   uint64             `json:"messages"`
	Emitted    uint64             `json:"emitted"`
	Skipped    uint64             `json:"skipped"`
	HistoryLen int                `json:"history_len"`
	Parameters domain.Parameters  `json:"parameters"`
	StartedAt  time.Time          `json:"started_at"`
	LastError  string             `json:"last_error,omitempty"`
}

// Option customises an Ingestor.
type Option func(*Ingestor)

// WithClock replaces time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(in *Ingestor) { in.now = now }
}

// WithObserver attaches an instrumentation observer.
func WithObserver(o Observer) Option {
	return func(in *Ingestor) {
		if o != nil {
			in.observer = o
		}
	}
}

// Ingestor runs one stream session at a time: it reads frames from the
// transport, maintains the rolling mid price history, evaluates the cost
// model and hands each estimate to the sink.
type Ingestor struct {
	cfg      Config
	dial     Dialer
	sink     domain.EstimateSink
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	params  *paramStore
	stop    atomic.Bool
	running atomic.Bool

	// Owned by the loop.
	history *PriceHistory
	decoder Decoder

	mu     sync.RWMutex
	status Status
}

// session holds the per-Run loop state.
type session struct {
	id       string
	lastRecv time.Time
	seq      uint64
}

// NewIngestor validates cfg and returns an idle Ingestor.
func NewIngestor(cfg Config, dial Dialer, sink domain.EstimateSink, logger *slog.Logger, opts ...Option) (*Ingestor, error) {
	if dial == nil {
		return nil, errors.New("feed: nil dialer")
	}
	if sink == nil {
		return nil, errors.New("feed: nil sink")
	}
	if err := cfg.Parameters.Validate(); err != nil {
		return nil, fmt.Errorf("feed: initial parameters: %w", err)
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}

	in := &Ingestor{
		cfg:      cfg,
		dial:     dial,
		sink:     sink,
		observer: nopObserver{},
		logger:   logger.With(slog.String("component", "ingestor")),
		now:      time.Now,
		params:   newParamStore(cfg.Parameters),
		history:  NewPriceHistory(cfg.HistorySize),
		status: Status{
			Exchange:   cfg.Exchange,
			Symbol:     cfg.Symbol,
			State:      domain.StreamIdle,
			Parameters: cfg.Parameters,
		},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// SetParameters merges u into the live parameters. The change applies from
// the next processed message. It is safe to call from any goroutine.
func (in *Ingestor) SetParameters(u domain.ParameterUpdate) (domain.Parameters, error) {
	p, err := in.params.Update(u)
	if err != nil {
		return p, err
	}
	in.mu.Lock()
	in.status.Parameters = p
	in.mu.Unlock()
	in.logger.Info("parameters updated",
		slog.Float64("usd_amount", p.USDAmount),
		slog.String("fee_tier", p.FeeTier.String()),
		slog.Float64("volatility", p.Volatility),
	)
	return p, nil
}

// Parameters returns the current parameter snapshot.
func (in *Ingestor) Parameters() domain.Parameters {
	return in.params.Load()
}

// Stop asks the running session to end before its next receive.
func (in *Ingestor) Stop() {
	in.stop.Store(true)
}

// State returns the current lifecycle state.
func (in *Ingestor) State() domain.StreamState {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.status.State
}

// Status returns a copy of the current status.
func (in *Ingestor) Status() Status {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.status
}

// Run starts a new session and blocks until it ends. The sink's
// HandleStreamEnd is called exactly once before Run returns. A session that
// ends through Stop or ctx cancellation returns nil; a failed session
// returns the cause.
func (in *Ingestor) Run(ctx context.Context) error {
	if !in.running.CompareAndSwap(false, true) {
		return fmt.Errorf("feed: run: %w", domain.ErrAlreadyRunning)
	}
	defer in.running.Store(false)

	in.stop.Store(false)
	in.history.Reset()
	s := &session{id: uuid.NewString()}

	in.mu.Lock()
	in.status.SessionID = s.id
	in.status.Messages, in.status.Emitted, in.status.Skipped = 0, 0, 0
	in.status.HistoryLen = 0
	in.status.StartedAt = in.now()
	in.status.LastError = ""
	in.mu.Unlock()

	logger := in.logger.With(slog.String("session_id", s.id))
	in.setState(domain.StreamConnecting)
	logger.InfoContext(ctx, "connecting to feed")

	t, err := in.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return in.finish(ctx, logger, s, nil)
		}
		return in.finish(ctx, logger, s, err)
	}
	defer t.Close()

	// Close the transport on cancellation so a pending read returns.
	stopWatch := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stopWatch()

	in.setState(domain.StreamStreaming)
	logger.InfoContext(ctx, "streaming")

	return in.finish(ctx, logger, s, in.loop(ctx, logger, s, t))
}

func (in *Ingestor) loop(ctx context.Context, logger *slog.Logger, s *session, t Transport) error {
	for {
		if in.stop.Load() || ctx.Err() != nil {
			return nil
		}

		raw, err := t.ReadMessage(ctx)
		recv := in.now()
		if err != nil {
			if in.stop.Load() || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := in.process(ctx, s, raw, recv); err != nil {
			if !in.cfg.SkipInvalidMessages {
				in.observer.ObserveMessage(OutcomeFatal)
				return err
			}
			in.observer.ObserveMessage(OutcomeSkipped)
			in.mu.Lock()
			in.status.Skipped++
			in.status.LastError = err.Error()
			in.mu.Unlock()
			logger.WarnContext(ctx, "skipping invalid message", slog.String("error", err.Error()))
		}
	}
}

// process handles one frame received at recv.
func (in *Ingestor) process(ctx context.Context, s *session, raw []byte, recv time.Time) error {
	var streamLatency float64
	if !s.lastRecv.IsZero() {
		streamLatency = millis(recv.Sub(s.lastRecv))
		in.observer.ObserveStreamLatency(streamLatency)
	}
	s.lastRecv = recv

	in.mu.Lock()
	in.status.Messages++
	in.mu.Unlock()

	start := in.now()
	book, ok, err := in.decoder.Decode(raw)
	if err != nil {
		return err
	}
	if !ok {
		in.observer.ObserveMessage(OutcomeIgnored)
		return nil
	}
	if !book.HasBothSides() {
		in.observer.ObserveMessage(OutcomeOneSided)
		return nil
	}

	mid := book.MidPrice()
	if !(mid > 0) {
		return fmt.Errorf("feed: mid price %v: %w", mid, domain.ErrDomain)
	}
	params := in.params.Load()
	if !(params.USDAmount > 0) {
		return fmt.Errorf("feed: usd_amount %v: %w", params.USDAmount, domain.ErrDomain)
	}

	in.history.Push(mid)
	prices := in.history.Values()
	in.observer.ObserveHistory(len(prices))

	sigma, err := costmodel.Volatility(prices)
	if err != nil {
		return err
	}
	spread := costmodel.Spread(book)
	impact := costmodel.DeriveImpactParams(spread, sigma)

	cost, err := costmodel.Analyze(costmodel.AnalyzeInput{
		Book:      book,
		Exchange:  in.cfg.Exchange,
		USDAmount: params.USDAmount,
		FeeTier:   params.FeeTier,
		Impact:    impact,
		MakerTaker: domain.MakerTakerInput{
			IsMarketOrder:      in.cfg.MakerTaker.IsMarketOrder,
			Volatility:         params.Volatility,
			OrderBookDepth:     in.cfg.MakerTaker.OrderBookDepth,
			TimeSinceLastTrade: in.cfg.MakerTaker.TimeSinceLastTrade,
		},
		RecentPrices: prices,
	})
	if err != nil {
		return err
	}
	done := in.now()

	s.seq++
	ask, _ := book.BestAsk()
	bid, _ := book.BestBid()
	est := domain.CostEstimate{
		SessionID:           s.id,
		Sequence:            s.seq,
		Exchange:            in.cfg.Exchange,
		Symbol:              in.cfg.Symbol,
		TopAsk:              ask,
		TopBid:              bid,
		Spread:              spread,
		Volatility:          sigma,
		ImpactParams:        impact,
		Parameters:          params,
		Slippage:            cost.Slippage,
		Fee:                 cost.Fee,
		Impact:              cost.MarketImpact,
		NetCost:             cost.NetCost,
		MakerProb:           cost.MakerTaker.MakerProb,
		TakerProb:           cost.MakerTaker.TakerProb,
		StreamLatencyMs:     streamLatency,
		ProcessingLatencyMs: millis(done.Sub(start)),
		Timestamp:           done,
	}

	in.mu.Lock()
	in.status.Emitted++
	in.status.HistoryLen = len(prices)
	in.mu.Unlock()
	in.observer.ObserveMessage(OutcomeEmitted)

	in.sink.HandleEstimate(ctx, est)
	return nil
}

// finish records the terminal state and notifies the sink.
func (in *Ingestor) finish(ctx context.Context, logger *slog.Logger, s *session, cause error) error {
	state := domain.StreamStopped
	reason := "stopped"
	if cause != nil {
		state = domain.StreamFailed
		reason = cause.Error()
	}
	in.setState(state)

	in.mu.Lock()
	if cause != nil {
		in.status.LastError = reason
	}
	end := domain.StreamEnd{
		SessionID: s.id,
		Exchange:  in.cfg.Exchange,
		Symbol:    in.cfg.Symbol,
		State:     state,
		Reason:    reason,
		Messages:  in.status.Messages,
		Emitted:   in.status.Emitted,
		At:        in.now(),
	}
	in.mu.Unlock()

	if cause != nil {
		logger.ErrorContext(ctx, "stream failed",
			slog.String("error", reason),
			slog.Uint64("messages", end.Messages),
		)
	} else {
		logger.InfoContext(ctx, "stream stopped",
			slog.Uint64("messages", end.Messages),
			slog.Uint64("emitted", end.Emitted),
		)
	}

	in.sink.HandleStreamEnd(context.WithoutCancel(ctx), end)

	if cause != nil {
		return fmt.Errorf("feed: session %s: %w", s.id, cause)
	}
	return nil
}

func (in *Ingestor) setState(state domain.StreamState) {
	in.mu.Lock()
	in.status.State = state
	in.mu.Unlock()
	in.observer.ObserveState(state)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
