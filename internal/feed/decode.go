package feed

import (
	"fmt"
	"math"

	"github.com/valyala/fastjson"
	"github.com/valyala/fastjson/fastfloat"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// Decoder turns raw feed frames into order books. It reuses its parser
// between calls and is not safe for concurrent use.
type Decoder struct {
	p fastjson.Parser
}

// Decode parses one frame of the form {"asks": [[price, qty, ...], ...],
// "bids": [...]}. It returns ok=false when either key is missing. Levels with
// fewer than two fields are dropped. Prices and quantities may be JSON
// numbers or numeric strings.
func (d *Decoder) Decode(raw []byte) (book domain.OrderBook, ok bool, err error) {
	v, err := d.p.ParseBytes(raw)
	if err != nil {
		return domain.OrderBook{}, false, fmt.Errorf("feed: decode: %w: %w", domain.ErrDecode, err)
	}
	if v.Type() != fastjson.TypeObject {
		return domain.OrderBook{}, false, fmt.Errorf("feed: decode: %w: payload is %s, not object", domain.ErrDecode, v.Type())
	}

	asksV, bidsV := v.Get("asks"), v.Get("bids")
	if asksV == nil || bidsV == nil {
		return domain.OrderBook{}, false, nil
	}

	asks, err := decodeSide(asksV, "asks")
	if err != nil {
		return domain.OrderBook{}, false, err
	}
	bids, err := decodeSide(bidsV, "bids")
	if err != nil {
		return domain.OrderBook{}, false, err
	}
	return domain.OrderBook{Asks: asks, Bids: bids}, true, nil
}

func decodeSide(v *fastjson.Value, side string) ([]domain.PriceLevel, error) {
	entries, err := v.Array()
	if err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w: %w", side, domain.ErrDecode, err)
	}
	levels := make([]domain.PriceLevel, 0, len(entries))
	for i, e := range entries {
		fields, err := e.Array()
		if err != nil {
			return nil, fmt.Errorf("feed: decode %s[%d]: %w: %w", side, i, domain.ErrDecode, err)
		}
		if len(fields) < 2 {
			continue
		}
		price, err := numberOrString(fields[0])
		if err != nil {
			return nil, fmt.Errorf("feed: decode %s[%d] price: %w", side, i, err)
		}
		qty, err := numberOrString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("feed: decode %s[%d] quantity: %w", side, i, err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

func numberOrString(v *fastjson.Value) (float64, error) {
	var (
		f   float64
		err error
	)
	switch v.Type() {
	case fastjson.TypeNumber:
		f, err = v.Float64()
	case fastjson.TypeString:
		var b []byte
		if b, err = v.StringBytes(); err == nil {
			f, err = fastfloat.Parse(string(b))
		}
	default:
		return 0, fmt.Errorf("%w: expected number or string, got %s", domain.ErrDecode, v.Type())
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: non-finite value %v", domain.ErrDecode, f)
	}
	return f, nil
}
