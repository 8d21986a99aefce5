package domain

import "context"

// EstimateSink consumes the records produced by an ingestion session.
// Implementations must return promptly; they run on the ingestion loop.
type EstimateSink interface {
	HandleEstimate(ctx context.Context, est CostEstimate)
	HandleStreamEnd(ctx context.Context, end StreamEnd)
}
