// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powchain/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/powchain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Worker *worker.Worker
	Net    *p2p.Server
	NS     *nameservice.NameService
	Evts   *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:    cfg.Log,
		State:  cfg.State,
		Worker: cfg.Worker,
		Net:    cfg.Net,
		NS:     cfg.NS,
		WS:     websocket.Upgrader{},
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/node/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/blocks/longest", pbl.LongestChain)
	app.Handle(http.MethodGet, version, "/blocks/:hash", pbl.Block)
	app.Handle(http.MethodGet, version, "/utxo/:address", pbl.UTXOs)
	app.Handle(http.MethodGet, version, "/tx/mempool", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction)
	app.Handle(http.MethodPost, version, "/miner/start/:lambda", pbl.StartMining)
	app.Handle(http.MethodPost, version, "/miner/pause", pbl.PauseMining)
	app.Handle(http.MethodPost, version, "/miner/stop", pbl.StopMining)
	app.Handle(http.MethodPost, version, "/network/ping", pbl.Ping)
	app.Handle(http.MethodPost, version, "/network/connect", pbl.Connect)
	app.Handle(http.MethodGet, version, "/telemetry", pbl.Telemetry)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Net:   cfg.Net,
	}

	app.Handle(http.MethodGet, version, "/p2p", prv.P2P)
	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
}
