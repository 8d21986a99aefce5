package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// notifyTimeout bounds the stream-end notification.
const notifyTimeout = 10 * time.Second

// Broadcaster pushes a frame to live dashboard clients.
type Broadcaster interface {
	Broadcast(channel string, data []byte)
}

// Recorder receives estimates and session ends for metrics.
type Recorder interface {
	ObserveEstimate(est domain.CostEstimate)
	ObserveStreamEnd(end domain.StreamEnd)
}

// StreamNotifier reports finished sessions to operators.
type StreamNotifier interface {
	NotifyStreamEnd(ctx context.Context, end domain.StreamEnd) error
}

// EstimateOption configures optional EstimateService collaborators.
type EstimateOption func(*EstimateService)

// WithCaches stores every estimate and its top of book in Redis.
func WithCaches(estimates domain.EstimateCache, books domain.BookCache) EstimateOption {
	return func(s *EstimateService) {
		s.estimates = estimates
		s.books = books
	}
}

// WithBus publishes estimate and status frames on the signal bus.
func WithBus(bus domain.SignalBus) EstimateOption {
	return func(s *EstimateService) { s.bus = bus }
}

// WithBroadcaster pushes frames to websocket clients.
func WithBroadcaster(b Broadcaster) EstimateOption {
	return func(s *EstimateService) { s.hub = b }
}

// WithEstimateLevel sets the level estimates are logged at. The default is
// debug; the stream mode console sink logs them at info.
func WithEstimateLevel(level slog.Level) EstimateOption {
	return func(s *EstimateService) { s.level = level }
}

// WithRecorder reports estimates and finished sessions to r.
func WithRecorder(r Recorder) EstimateOption {
	return func(s *EstimateService) { s.recorder = r }
}

// WithNotifier alerts n when a session ends.
func WithNotifier(n StreamNotifier) EstimateOption {
	return func(s *EstimateService) { s.notifier = n }
}

// EstimateService is the ingestor's sink. It keeps the latest estimate per
// instrument in memory and fans estimates out to the cache, the bus, the
// websocket hub and the metrics recorder. Fan-out failures are logged and
// never interrupt the stream.
type EstimateService struct {
	estimates domain.EstimateCache
	books     domain.BookCache
	bus       domain.SignalBus
	hub       Broadcaster
	recorder  Recorder
	notifier  StreamNotifier
	logger    *slog.Logger
	level     slog.Level

	mu      sync.RWMutex
	latest  map[string]domain.CostEstimate
	lastEnd *domain.StreamEnd
}

// NewEstimateService creates an EstimateService. Collaborators not supplied
// through options are skipped.
func NewEstimateService(logger *slog.Logger, opts ...EstimateOption) *EstimateService {
	s := &EstimateService{
		latest: make(map[string]domain.CostEstimate),
		logger: logger.With(slog.String("component", "estimate_service")),
		level:  slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// frame is the JSON shape shared by bus messages and websocket frames.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func instrumentKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}

// HandleEstimate implements domain.EstimateSink.
func (s *EstimateService) HandleEstimate(ctx context.Context, est domain.CostEstimate) {
	s.mu.Lock()
	s.latest[instrumentKey(est.Exchange, est.Symbol)] = est
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.ObserveEstimate(est)
	}

	s.logger.Log(ctx, s.level, "estimate",
		slog.String("session_id", est.SessionID),
		slog.Uint64("sequence", est.Sequence),
		slog.Float64("top_ask", est.TopAsk.Price),
		slog.Float64("top_bid", est.TopBid.Price),
		slog.Float64("spread", est.Spread),
		slog.Float64("volatility", est.Volatility),
		slog.Float64("slippage", est.Slippage),
		slog.Float64("fee", est.Fee),
		slog.Float64("impact", est.Impact),
		slog.Float64("net_cost", est.NetCost),
		slog.Float64("maker_prob", est.MakerProb),
		slog.Float64("stream_latency_ms", est.StreamLatencyMs),
		slog.Float64("processing_latency_ms", est.ProcessingLatencyMs),
	)

	if s.estimates != nil {
		if err := s.estimates.SetLatest(ctx, est); err != nil {
			s.warn(ctx, "cache estimate failed", err)
		}
	}
	if s.books != nil {
		if err := s.books.SetBBO(ctx, est.BBO()); err != nil {
			s.warn(ctx, "cache top of book failed", err)
		}
	}

	s.emit(ctx, domain.ChannelEstimate, "estimate", est)
}

// HandleStreamEnd implements domain.EstimateSink.
func (s *EstimateService) HandleStreamEnd(ctx context.Context, end domain.StreamEnd) {
	s.mu.Lock()
	s.lastEnd = &end
	s.mu.Unlock()

	if s.recorder != nil {
		s.recorder.ObserveStreamEnd(end)
	}

	s.emit(ctx, domain.ChannelStatus, "stream_end", end)

	if s.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyStreamEnd(nctx, end); err != nil {
			s.warn(ctx, "notify stream end failed", err)
		}
	}
}

// Latest returns the most recent estimate for the instrument. When this
// process has not produced one yet it falls back to the shared cache.
func (s *EstimateService) Latest(ctx context.Context, exchange, symbol string) (domain.CostEstimate, error) {
	s.mu.RLock()
	est, ok := s.latest[instrumentKey(exchange, symbol)]
	s.mu.RUnlock()
	if ok {
		return est, nil
	}

	if s.estimates == nil {
		return domain.CostEstimate{}, fmt.Errorf("estimate_service: %s %s: %w", exchange, symbol, domain.ErrNotFound)
	}
	est, err := s.estimates.GetLatest(ctx, exchange, symbol)
	if err != nil {
		return domain.CostEstimate{}, fmt.Errorf("estimate_service: latest %s %s: %w", exchange, symbol, err)
	}
	return est, nil
}

// LastStreamEnd returns the outcome of the most recent finished session.
func (s *EstimateService) LastStreamEnd() (domain.StreamEnd, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastEnd == nil {
		return domain.StreamEnd{}, false
	}
	return *s.lastEnd, true
}

// PublishStatus sends an arbitrary status payload to the status channel.
func (s *EstimateService) PublishStatus(ctx context.Context, payload any) {
	s.emit(ctx, domain.ChannelStatus, "status", payload)
}

func (s *EstimateService) emit(ctx context.Context, channel, typ string, payload any) {
	if s.bus == nil && s.hub == nil {
		return
	}
	data, err := json.Marshal(frame{Type: typ, Payload: payload})
	if err != nil {
		s.warn(ctx, "encode frame failed", err)
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(channel, data)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, channel, data); err != nil {
			s.warn(ctx, "publish frame failed", err, slog.String("channel", channel))
		}
	}
}

func (s *EstimateService) warn(ctx context.Context, msg string, err error, attrs ...any) {
	s.logger.WarnContext(ctx, msg, append(attrs, slog.String("error", err.Error()))...)
}
