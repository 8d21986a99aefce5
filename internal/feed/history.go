package feed

// DefaultHistorySize is the number of mid prices kept per session.
const DefaultHistorySize = 50

// PriceHistory is a bounded FIFO of mid prices. The oldest entry is evicted
// when a push would exceed capacity. It is owned by a single goroutine.
type PriceHistory struct {
	buf   []float64
	start int
	n     int
}

// NewPriceHistory returns an empty history holding at most capacity prices.
// A non-positive capacity selects DefaultHistorySize.
func NewPriceHistory(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &PriceHistory{buf: make([]float64, capacity)}
}

// Push appends p, evicting the oldest price when full.
func (h *PriceHistory) Push(p float64) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = p
		h.n++
		return
	}
	h.buf[h.start] = p
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of stored prices.
func (h *PriceHistory) Len() int { return h.n }

// Cap returns the capacity.
func (h *PriceHistory) Cap() int { return len(h.buf) }

// Values returns a copy of the prices, oldest first.
func (h *PriceHistory) Values() []float64 {
	out := make([]float64, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Reset empties the history.
func (h *PriceHistory) Reset() {
	h.start, h.n = 0, 0
}
