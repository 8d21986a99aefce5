package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// bookServer upgrades every request and writes frames, then closes.
func bookServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/l2-orderbook/okx/BTC-USDT-SWAP"
}

func TestWSTransportEndToEnd(t *testing.T) {
	srv := bookServer(t,
		`{"asks": [["101", "1"]], "bids": [["99", "1"]]}`,
		`{"event": "heartbeat"}`,
		`{"asks": [[102, 1]], "bids": [[98, 1]]}`,
	)

	sink := &recordingSink{}
	in := newTestIngestor(t, testConfig(), NewWSDialer(WSConfig{URL: wsURL(srv), ReadTimeout: 5 * time.Second}), sink)

	err := in.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrTransport, "a closed feed ends the session")

	ests := sink.Estimates()
	require.Len(t, ests, 2)
	assert.Equal(t, 101.0, ests[0].TopAsk.Price)
	assert.Equal(t, 98.0, ests[1].TopBid.Price)
	assert.Equal(t, []float64{100, 100}, in.history.Values())
	require.Len(t, sink.Ends(), 1)
	assert.Equal(t, uint64(3), sink.Ends()[0].Messages)
}

func TestDialWSFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := DialWS(context.Background(), WSConfig{URL: wsURL(srv), HandshakeTimeout: time.Second})
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestWSTransportCloseIsIdempotent(t *testing.T) {
	srv := bookServer(t)
	tr, err := DialWS(context.Background(), WSConfig{URL: wsURL(srv)})
	require.NoError(t, err)

	_ = tr.Close()
	_ = tr.Close()

	_, err = tr.ReadMessage(context.Background())
	require.ErrorIs(t, err, domain.ErrTransport)
}
