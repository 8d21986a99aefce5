package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

func TestDecoderStringAndNumberLevels(t *testing.T) {
	var d Decoder
	book, ok, err := d.Decode([]byte(`{
		"exchange": "okx",
		"asks": [["101.5", "2", "0", "4"], [102, 3.25]],
		"bids": [[99.5, "1.5"], ["99"]]
	}`))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []domain.PriceLevel{{Price: 101.5, Quantity: 2}, {Price: 102, Quantity: 3.25}}, book.Asks)
	assert.Equal(t, []domain.PriceLevel{{Price: 99.5, Quantity: 1.5}}, book.Bids, "short levels are dropped")
}

func TestDecoderMissingSide(t *testing.T) {
	var d Decoder
	for _, raw := range []string{
		`{"asks": [[101, 1]]}`,
		`{"bids": [[99, 1]]}`,
		`{"event": "subscribe"}`,
	} {
		book, ok, err := d.Decode([]byte(raw))
		require.NoError(t, err, raw)
		assert.False(t, ok, raw)
		assert.Empty(t, book.Asks)
		assert.Empty(t, book.Bids)
	}
}

func TestDecoderEmptySides(t *testing.T) {
	var d Decoder
	book, ok, err := d.Decode([]byte(`{"asks": [], "bids": [[99, 1]]}`))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, book.HasBothSides())
}

func TestDecoderErrors(t *testing.T) {
	var d Decoder
	for name, raw := range map[string]string{
		"malformed json":   `{"asks": [[101, 1]`,
		"not an object":    `[1, 2, 3]`,
		"side not array":   `{"asks": {"101": 1}, "bids": []}`,
		"null side":        `{"asks": null, "bids": []}`,
		"level not array":  `{"asks": [101], "bids": []}`,
		"bad price string": `{"asks": [["abc", 1]], "bids": []}`,
		"bool quantity":    `{"asks": [[101, true]], "bids": []}`,
	} {
		_, _, err := d.Decode([]byte(raw))
		assert.ErrorIs(t, err, domain.ErrDecode, name)
	}
}

func TestDecoderReuse(t *testing.T) {
	var d Decoder
	first, _, err := d.Decode([]byte(bookFrame(101, 99)))
	require.NoError(t, err)
	second, _, err := d.Decode([]byte(bookFrame(102, 98)))
	require.NoError(t, err)

	assert.Equal(t, 101.0, first.Asks[0].Price, "results do not alias the parser")
	assert.Equal(t, 102.0, second.Asks[0].Price)
}
