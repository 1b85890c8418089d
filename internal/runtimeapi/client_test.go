package runtimeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsHandler builds an httptest server that upgrades to a websocket and
// replies to exactly one state_call request with the given SCALE hex
// payload (or, if rpcErr is non-empty, a JSON-RPC error instead).
func wsHandler(t *testing.T, hexResult string, rpcErr string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		if rpcErr != "" {
			conn.WriteJSON(map[string]any{
				"id":    req.ID,
				"error": map[string]any{"code": -1, "message": rpcErr},
			})
			return
		}
		conn.WriteJSON(map[string]any{
			"id":     req.ID,
			"result": hexResult,
		})
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFetchAuthoritiesDecodesResult(t *testing.T) {
	var a, b [32]byte
	a[0], b[0] = 0xAA, 0xBB
	payload := append([]byte{0x08}, append(a[:], b[:]...)...) // compact len 2

	srv := wsHandler(t, "0x"+encodeHex(payload), "")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := FetchAuthorities(ctx, wsURL(srv))
	if err != nil {
		t.Fatalf("FetchAuthorities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d authorities, want 2", len(got))
	}
	if got[0][0] != 0xAA || got[1][0] != 0xBB {
		t.Errorf("unexpected authority bytes: %v", got)
	}
}

func TestFetchAuthoritiesRPCError(t *testing.T) {
	srv := wsHandler(t, "", "state call not available")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := FetchAuthorities(ctx, wsURL(srv)); err == nil {
		t.Error("expected error for RPC failure response")
	}
}

func TestFetchAuthoritiesBadHex(t *testing.T) {
	srv := wsHandler(t, "not-hex", "")
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := FetchAuthorities(ctx, wsURL(srv)); err == nil {
		t.Error("expected error for malformed hex result")
	}
}

func encodeHex(b []byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0x0f]
	}
	return string(out)
}
