package domain

import "context"

// EstimateCache holds the most recent cost estimate per instrument.
type EstimateCache interface {
	SetLatest(ctx context.Context, est CostEstimate) error
	GetLatest(ctx context.Context, exchange, symbol string) (CostEstimate, error)
}

// BookCache stores live top-of-book state.
type BookCache interface {
	SetBBO(ctx context.Context, bbo BBO) error
	GetBBO(ctx context.Context, exchange, symbol string) (BBO, error)
}

// SignalBus provides pub/sub between processes.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Channel names used on the SignalBus and the dashboard hub.
const (
	ChannelEstimate   = "ch:estimate"
	ChannelStatus     = "ch:status"
	ChannelParameters = "ch:parameters"
)
