package domain

import (
	"fmt"
	"strings"
	"time"
)

// FeeTier is an exchange fee bracket.
type FeeTier string

const (
	FeeTier1 FeeTier = "TIER1"
	FeeTier2 FeeTier = "TIER2"
	FeeTier3 FeeTier = "TIER3"
)

// ParseFeeTier normalises s and rejects anything other than TIER1..TIER3.
func ParseFeeTier(s string) (FeeTier, error) {
	t := FeeTier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown fee tier %q", ErrInvalidParameters, s)
	}
	return t, nil
}

// Valid reports whether t is a known tier.
func (t FeeTier) Valid() bool {
	switch t {
	case FeeTier1, FeeTier2, FeeTier3:
		return true
	}
	return false
}

func (t FeeTier) String() string { return string(t) }

// UnmarshalText upper-cases the tier. Unknown tiers are caught by
// Parameters.Validate.
func (t *FeeTier) UnmarshalText(text []byte) error {
	*t = FeeTier(strings.ToUpper(strings.TrimSpace(string(text))))
	return nil
}

// MarketImpactParams parameterise the impact model. Alpha and Beta are
// carried for completeness but do not enter the effective formula.
type MarketImpactParams struct {
	Eta    float64 `json:"eta"`
	Gamma  float64 `json:"gamma"`
	Lambda float64 `json:"lambda"`
	Sigma  float64 `json:"sigma"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
}

// MakerTakerInput holds the features of the maker/taker logistic score.
type MakerTakerInput struct {
	IsMarketOrder      bool    `json:"is_market_order"`
	Volatility         float64 `json:"volatility"`
	OrderBookDepth     float64 `json:"order_book_depth"`
	TimeSinceLastTrade float64 `json:"time_since_last_trade"`
}

// MakerTakerResult holds complementary maker and taker probabilities.
type MakerTakerResult struct {
	MakerProb float64 `json:"maker_prob"`
	TakerProb float64 `json:"taker_prob"`
}

// TradeCost is the output of one cost model evaluation.
type TradeCost struct {
	Slippage     float64          `json:"slippage"`
	Fee          float64          `json:"fee"`
	MarketImpact float64          `json:"market_impact"`
	NetCost      float64          `json:"net_cost"`
	MakerTaker   MakerTakerResult `json:"maker_taker"`
}

// CostEstimate is the record emitted for every order book update that
// carries both sides.
type CostEstimate struct {
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"sequence"`
	Exchange  string `json:"exchange"`
	Symbol    string `json:"symbol"`

	TopAsk PriceLevel `json:"top_ask"`
	TopBid PriceLevel `json:"top_bid"`

	Spread       float64            `json:"spread"`
	Volatility   float64            `json:"volatility"`
	ImpactParams MarketImpactParams `json:"impact_params"`
	Parameters   Parameters         `json:"parameters"`

	Slippage  float64 `json:"slippage"`
	Fee       float64 `json:"fee"`
	Impact    float64 `json:"impact"`
	NetCost   float64 `json:"net_cost"`
	MakerProb float64 `json:"maker_prob"`
	TakerProb float64 `json:"taker_prob"`

	StreamLatencyMs     float64 `json:"stream_latency_ms"`
	ProcessingLatencyMs float64 `json:"processing_latency_ms"`

	Timestamp time.Time `json:"timestamp"`
}

// BBO returns the top of book captured in the estimate.
func (e CostEstimate) BBO() BBO {
	return BBO{
		Exchange:  e.Exchange,
		Symbol:    e.Symbol,
		BestBid:   e.TopBid,
		BestAsk:   e.TopAsk,
		MidPrice:  (e.TopAsk.Price + e.TopBid.Price) / 2,
		Timestamp: e.Timestamp,
	}
}
