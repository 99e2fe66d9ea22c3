// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Net   *p2p.Server
}

// P2P upgrades the request to the websocket connection a peer exchanges
// protocol messages over. The call returns once the connection is
// registered; the transport owns it from then on.
func (h Handlers) P2P(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.Log.Infow("peer connecting", "traceid", v.TraceID, "host", r.Header.Get(p2p.HostHeader), "remoteaddr", r.RemoteAddr)

	h.Net.ServeHTTP(w, r)
	return nil
}

// Status returns the tip of this node so a peer operator can compare chains.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryStatus(), http.StatusOK)
}
