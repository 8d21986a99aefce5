package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradecost/internal/domain"
	"github.com/alanyoungcy/tradecost/internal/feed"
	"github.com/alanyoungcy/tradecost/internal/server"
	"github.com/alanyoungcy/tradecost/internal/server/handler"
	"github.com/alanyoungcy/tradecost/internal/server/ws"
	"github.com/alanyoungcy/tradecost/internal/service"
)

const shutdownTimeout = 5 * time.Second

// StreamMode runs the ingestor with the estimate service as its sink and logs
// every estimate at info. It returns when the stream ends.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	svc := service.NewEstimateService(a.logger,
		append(a.serviceOptions(deps), service.WithEstimateLevel(slog.LevelInfo))...)
	ing, err := a.newIngestor(deps, svc)
	if err != nil {
		return fmt.Errorf("stream mode: %w", err)
	}

	g, gctx, cancel := a.runGroup(ctx, ing)
	defer cancel()
	a.watchParameters(gctx, g, deps, ing, svc)
	return g.Wait()
}

// FullMode adds the HTTP API and websocket hub to stream mode. The ingestor
// ending shuts the server down.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	// The hub is only drained by its Run loop, which lives with the server.
	var (
		status *handler.StatusHandler
		hub    *ws.Hub
	)
	opts := a.serviceOptions(deps)
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(func() any { return status.Snapshot() }, a.logger)
		opts = append(opts, service.WithBroadcaster(hub))
	}

	svc := service.NewEstimateService(a.logger, opts...)
	ing, err := a.newIngestor(deps, svc)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	status = handler.NewStatusHandler(a.cfg.Mode, ing, svc)

	g, gctx, cancel := a.runGroup(ctx, ing)
	defer cancel()
	a.watchParameters(gctx, g, deps, ing, svc)

	if hub != nil {
		g.Go(func() error {
			if err := hub.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(),
			Status:     status,
			Estimate:   handler.NewEstimateHandler(svc, a.cfg.Feed.Exchange, a.cfg.Feed.Symbol, a.logger),
			Parameters: handler.NewParametersHandler(ing, a.logger),
			Metrics:    deps.Metrics.Handler(),
		}, hub, a.logger)
		a.startHTTPServer(gctx, g, srv)
	}

	return g.Wait()
}

// runGroup starts the ingestor in an errgroup whose context is cancelled as
// soon as the ingestor returns, so that every sibling goroutine winds down
// with the stream.
func (a *App) runGroup(ctx context.Context, ing *feed.Ingestor) (*errgroup.Group, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ing.Run(gctx)
	})
	return g, gctx, cancel
}

func (a *App) serviceOptions(deps *Dependencies) []service.EstimateOption {
	opts := []service.EstimateOption{service.WithRecorder(deps.Metrics)}
	if deps.EstimateCache != nil {
		opts = append(opts, service.WithCaches(deps.EstimateCache, deps.BookCache))
	}
	if deps.SignalBus != nil {
		opts = append(opts, service.WithBus(deps.SignalBus))
	}
	if deps.Notifier != nil {
		opts = append(opts, service.WithNotifier(deps.Notifier))
	}
	return opts
}

func (a *App) newIngestor(deps *Dependencies, sink domain.EstimateSink) (*feed.Ingestor, error) {
	est := a.cfg.Estimator
	params, err := est.Parameters()
	if err != nil {
		return nil, err
	}

	dial := a.dial
	if dial == nil {
		dial = feed.NewWSDialer(feed.WSConfig{
			URL:              a.cfg.Feed.URL(),
			HandshakeTimeout: a.cfg.Feed.HandshakeTimeout.Duration,
			ReadTimeout:      a.cfg.Feed.ReadTimeout.Duration,
		})
	}

	return feed.NewIngestor(feed.Config{
		Exchange:   a.cfg.Feed.Exchange,
		Symbol:     a.cfg.Feed.Symbol,
		Parameters: params,
		MakerTaker: feed.MakerTakerFeatures{
			IsMarketOrder:      est.IsMarketOrder,
			OrderBookDepth:     est.OrderBookDepth,
			TimeSinceLastTrade: est.TimeSinceLastTrade,
		},
		HistorySize:         est.HistorySize,
		SkipInvalidMessages: est.SkipInvalidMessages,
	}, dial, sink, a.logger, feed.WithObserver(deps.Metrics))
}

// watchParameters applies ParameterUpdate messages published on the
// parameters channel. It is a no-op without a signal bus.
func (a *App) watchParameters(ctx context.Context, g *errgroup.Group, deps *Dependencies, ing *feed.Ingestor, svc *service.EstimateService) {
	if deps.SignalBus == nil {
		return
	}
	g.Go(func() error {
		msgs, err := deps.SignalBus.Subscribe(ctx, domain.ChannelParameters)
		if err != nil {
			a.logger.WarnContext(ctx, "parameter updates over redis disabled", slog.String("error", err.Error()))
			return nil
		}
		for data := range msgs {
			var u domain.ParameterUpdate
			if err := json.Unmarshal(data, &u); err != nil {
				a.logger.WarnContext(ctx, "ignoring malformed parameter update", slog.String("error", err.Error()))
				continue
			}
			p, err := ing.SetParameters(u)
			if err != nil {
				a.logger.WarnContext(ctx, "rejected parameter update", slog.String("error", err.Error()))
				continue
			}
			svc.PublishStatus(ctx, map[string]any{"parameters": p})
		}
		return nil
	})
}

// startHTTPServer serves srv until ctx is cancelled, then shuts it down.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, srv *server.Server) {
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
