// Package runtimeapi implements the Runtime-API Client (§4.5): a
// one-shot WebSocket JSON-RPC call against a node's state_call
// endpoint to fetch the current authority set.
//
// Grounded on runtime_api_autorities in
// original_source/cli/src/commands/authorities.rs, reworked onto
// gorilla/websocket in the manner of pkg/p2pnet's use of the same
// library for its own control connections.
package runtimeapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/shurlinet/authdisco/internal/authid"
)

// Errors returned by FetchAuthorities.
var (
	ErrDial        = errors.New("runtimeapi: failed to connect to node")
	ErrRPCFailed   = errors.New("runtimeapi: state_call request failed")
	ErrBadResponse = errors.New("runtimeapi: malformed state_call response")
)

// runtimeAPIMethod is the substrate runtime call used to fetch the
// current authority set, invoked via the generic state_call RPC.
const runtimeAPIMethod = "AuthorityDiscoveryApi_authorities"

// readBufferCapacity mirrors the Rust client's
// max_buffer_capacity_per_subscription(4096). It sets the connection's
// read buffer, which is also gorilla/websocket's default size; it does
// not cap the message size, so a response of several KB of hex-encoded
// SCALE for a large authority set is still read in full.
const readBufferCapacity = 4096

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchAuthorities opens a short-lived websocket connection to url,
// issues a single state_call for AuthorityDiscoveryApi_authorities, and
// SCALE-decodes the result into a set of authority ids.
func FetchAuthorities(ctx context.Context, url string) ([]authid.ID, error) {
	dialer := websocket.Dialer{
		ReadBufferSize: readBufferCapacity,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDial, err)
	}
	defer conn.Close()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "state_call",
		Params:  []any{runtimeAPIMethod, "0x"},
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCFailed, err)
	}

	var resp rpcResponse
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRPCFailed, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%w: %s (code %d)", ErrRPCFailed, resp.Error.Message, resp.Error.Code)
	}

	var hexResult string
	if err := json.Unmarshal(resp.Result, &hexResult); err != nil {
		return nil, fmt.Errorf("%w: result is not a hex string: %v", ErrBadResponse, err)
	}
	hexResult = strings.TrimPrefix(hexResult, "0x")

	raw, err := hex.DecodeString(hexResult)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	keys, err := decodeAuthorityList(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	out := make([]authid.ID, len(keys))
	for i, k := range keys {
		out[i] = authid.ID(k)
	}
	return out, nil
}
