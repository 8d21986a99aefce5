// Package costmodel implements the trade cost model: spread, volatility,
// slippage, fees, market impact and maker/taker probability. Every function
// is pure.
package costmodel

import (
	"fmt"
	"math"
	"strings"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// SlippageCoefficients are the weights of the linear slippage model
// b0 + b1*ln(usd) + b2*volatility + b3*spread.
type SlippageCoefficients struct {
	B0, B1, B2, B3 float64
}

// DefaultSlippage is the fitted model used for every exchange without its
// own row.
var DefaultSlippage = SlippageCoefficients{B0: 0.01, B1: 0.12, B2: 0.6, B3: 0.25}

// slippageTable maps an upper-cased exchange name to its coefficients.
var slippageTable = map[string]SlippageCoefficients{
	"OKX": DefaultSlippage,
}

// CoefficientsFor returns the slippage weights for exchange.
func CoefficientsFor(exchange string) SlippageCoefficients {
	if c, ok := slippageTable[strings.ToUpper(exchange)]; ok {
		return c
	}
	return DefaultSlippage
}

// Maker/taker logistic weights.
const (
	weightMarketOrder = 2.0
	weightVolatility  = 1.5
	weightDepth       = -1.0
	weightTime        = -0.5
)

// Live impact derivation constants.
const (
	etaBase        = 0.0001
	etaPerSpread   = 0.05
	gammaPerEta    = 0.25
	lambdaBase     = 0.05
	lambdaPerSigma = 0.1
)

// Spread returns best ask minus best bid. The result is not clamped, so a
// crossed book yields a negative spread. An empty side yields 0.
func Spread(book domain.OrderBook) float64 {
	ask, okAsk := book.BestAsk()
	bid, okBid := book.BestBid()
	if !okAsk || !okBid {
		return 0
	}
	return ask.Price - bid.Price
}

// Volatility returns the population standard deviation of consecutive log
// returns of prices. Fewer than two prices yield 0.
func Volatility(prices []float64) (float64, error) {
	if len(prices) < 2 {
		return 0, nil
	}
	for i, p := range prices {
		if !(p > 0) {
			return 0, fmt.Errorf("costmodel: volatility: price[%d]=%v: %w", i, p, domain.ErrDomain)
		}
	}

	returns := make([]float64, len(prices)-1)
	var sum float64
	for i := 1; i < len(prices); i++ {
		r := math.Log(prices[i] / prices[i-1])
		returns[i-1] = r
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(returns))), nil
}

// Slippage evaluates the linear slippage model for exchange.
func Slippage(usdAmount, volatility, spread float64, exchange string) (float64, error) {
	if !(usdAmount > 0) {
		return 0, fmt.Errorf("costmodel: slippage: usd_amount=%v: %w", usdAmount, domain.ErrDomain)
	}
	c := CoefficientsFor(exchange)
	return c.B0 + c.B1*math.Log(usdAmount) + c.B2*volatility + c.B3*spread, nil
}

// FeeRate maps a tier to its fee rate. Unknown tiers pay the TIER1 rate.
func FeeRate(tier domain.FeeTier) float64 {
	switch tier {
	case domain.FeeTier2:
		return 0.0005
	case domain.FeeTier3:
		return 0.0001
	default:
		return 0.001
	}
}

// Fee returns usdAmount times the tier's rate.
func Fee(usdAmount float64, tier domain.FeeTier) float64 {
	return usdAmount * FeeRate(tier)
}

// MarketImpact returns eta*q + gamma*q + 0.5*lambda*sigma^2*q^2 for a trade
// of usdQty. Alpha and Beta are ignored.
func MarketImpact(usdQty float64, p domain.MarketImpactParams) float64 {
	temporary := p.Eta * usdQty
	permanent := p.Gamma * usdQty
	risk := 0.5 * p.Lambda * p.Sigma * p.Sigma * usdQty * usdQty
	return temporary + permanent + risk
}

// DeriveImpactParams builds impact parameters from the live spread and
// realised volatility.
func DeriveImpactParams(spread, sigma float64) domain.MarketImpactParams {
	eta := etaBase + etaPerSpread*spread
	return domain.MarketImpactParams{
		Eta:    eta,
		Gamma:  gammaPerEta * eta,
		Lambda: lambdaBase + lambdaPerSigma*sigma,
		Sigma:  sigma,
		Alpha:  1.0,
		Beta:   1.0,
	}
}

// MakerTaker scores the order with a logistic model and returns the
// probability of executing as taker and its complement as maker.
func MakerTaker(in domain.MakerTakerInput) domain.MakerTakerResult {
	var market float64
	if in.IsMarketOrder {
		market = 1
	}
	score := weightMarketOrder*market +
		weightVolatility*in.Volatility +
		weightDepth*in.OrderBookDepth +
		weightTime*in.TimeSinceLastTrade
	taker := sigmoid(score)
	return domain.MakerTakerResult{MakerProb: 1 - taker, TakerProb: taker}
}

// NetCost sums the cost components.
func NetCost(slippage, fee, impact float64) float64 {
	return slippage + fee + impact
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// AnalyzeInput bundles everything Analyze needs for one evaluation.
type AnalyzeInput struct {
	Book         domain.OrderBook
	Exchange     string
	USDAmount    float64
	FeeTier      domain.FeeTier
	Impact       domain.MarketImpactParams
	MakerTaker   domain.MakerTakerInput
	RecentPrices []float64
}

// Analyze runs the full cost model over in.
func Analyze(in AnalyzeInput) (domain.TradeCost, error) {
	spread := Spread(in.Book)
	vol, err := Volatility(in.RecentPrices)
	if err != nil {
		return domain.TradeCost{}, err
	}
	slip, err := Slippage(in.USDAmount, vol, spread, in.Exchange)
	if err != nil {
		return domain.TradeCost{}, err
	}
	fee := Fee(in.USDAmount, in.FeeTier)
	impact := MarketImpact(in.USDAmount, in.Impact)

	return domain.TradeCost{
		Slippage:     slip,
		Fee:          fee,
		MarketImpact: impact,
		NetCost:      NetCost(slip, fee, impact),
		MakerTaker:   MakerTaker(in.MakerTaker),
	}, nil
}
