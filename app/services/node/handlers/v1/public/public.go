// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ardanlabs/powchain/business/sys/validate"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/hash"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connectTimeout bounds how long a requested peer connection can take.
const connectTimeout = 5 * time.Second

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Worker *worker.Worker
	Net    *p2p.Server
	NS     *nameservice.NameService
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := h.State.QueryStatus()

	ps := peer.PeerStatus{
		Tip:        st.Tip.Hex(),
		Height:     st.Height,
		Mempool:    st.Mempool,
		Connected:  h.Net.Connected(),
		KnownPeers: h.Net.KnownPeers().Copy(h.Net.Host()),
	}

	return web.Respond(ctx, w, ps, http.StatusOK)
}

// LongestChain returns the hashes of the longest chain starting with genesis.
func (h Handlers) LongestChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.QueryLongestChain(), http.StatusOK)
}

// Block returns the block for the specified hash.
func (h Handlers) Block(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blockHash, err := hash.FromHex(web.Param(r, "hash"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	cb, exists := h.State.QueryBlock(blockHash)
	if !exists {
		return errs.NewTrusted(fmt.Errorf("block %s not found", blockHash.Short()), http.StatusNotFound)
	}

	trans := make([]tx, len(cb.Block.Trans))
	for i, tran := range cb.Block.Trans {
		trans[i] = h.toTx(tran)
	}

	b := block{
		Hash:         cb.Hash,
		Height:       cb.Height,
		Parent:       cb.Block.Header.Parent,
		Nonce:        cb.Block.Header.Nonce,
		Difficulty:   cb.Block.Header.Difficulty,
		TimeStamp:    cb.Block.Header.TimeStamp,
		MerkleRoot:   cb.Block.Header.MerkleRoot,
		Size:         cb.Block.Size(),
		Transactions: trans,
	}

	return web.Respond(ctx, w, b, http.StatusOK)
}

// UTXOs returns the unspent outputs owned by the address as of the tip.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := database.ToAddress(web.Param(r, "address"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	list := h.State.QueryUTXOs(addr)

	var balance database.Amount
	for _, utxo := range list {
		balance += utxo.Output.Value
	}

	resp := utxos{
		Address: addr,
		Name:    h.NS.Lookup(addr),
		Balance: balance,
		Tip:     h.State.QueryTip(),
		UTXOs:   list,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of transactions waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.QueryMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a new signed transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var signedTx database.SignedTx
	if err := web.Decode(r, &signedTx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", signedTx, "inputs", len(signedTx.Raw.Inputs), "outputs", len(signedTx.Raw.Outputs))

	if err := h.State.SubmitTransaction(signedTx); err != nil {
		if errors.Is(err, state.ErrKnownTx) {
			return errs.NewTrusted(err, http.StatusConflict)
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string      `json:"status"`
		Hash   hash.Digest `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   signedTx.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// StartMining starts or resumes the miner with the mean delay between
// attempts taken from the path, for example 250ms.
func (h Handlers) StartMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	lambda, err := time.ParseDuration(web.Param(r, "lambda"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("parsing lambda: %w", err), http.StatusBadRequest)
	}

	if lambda < 0 {
		return errs.NewTrusted(errors.New("lambda can't be negative"), http.StatusBadRequest)
	}

	h.Worker.SignalStartMining(lambda)

	return web.Respond(ctx, w, status("mining started"), http.StatusOK)
}

// PauseMining pauses the miner. It can be started again.
func (h Handlers) PauseMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.SignalPauseMining()

	return web.Respond(ctx, w, status("mining paused"), http.StatusOK)
}

// StopMining stops the miner for good and logs its statistics.
func (h Handlers) StopMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.SignalExitMining()

	return web.Respond(ctx, w, status("mining stopped"), http.StatusOK)
}

// Ping sends a ping to every connected peer.
func (h Handlers) Ping(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	nonce, sent := h.State.PingPeers()

	resp := struct {
		Nonce uint32 `json:"nonce"`
		Peers int    `json:"peers"`
	}{
		Nonce: nonce,
		Peers: sent,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Connect adds the host to the known peers and opens a connection to it.
func (h Handlers) Connect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req connect
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	h.Net.KnownPeers().Add(peer.New(req.Host))

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	p, err := h.Net.Connect(ctx, req.Host)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("connecting to %s: %w", req.Host, err), http.StatusBadGateway)
	}

	h.State.AnnounceChain(p)

	return web.Respond(ctx, w, status("connected to "+p.Addr()), http.StatusOK)
}

// Telemetry returns the ledger and mining statistics.
func (h Handlers) Telemetry(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mining := h.Worker.MiningStats()

	resp := telemetry{
		Ledger:      h.State.QueryStats(),
		Mining:      &mining,
		Subscribers: h.Evts.Subscribers(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	// Need this to handle CORS on the websocket.
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	// This upgrades the HTTP connection to a websocket connection.
	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// This provides a channel for receiving events from the blockchain.
	ch := h.Evts.Acquire(v.TraceID)
	defer func() {
		dropped, _ := h.Evts.Release(v.TraceID)
		h.Log.Infow("events closed", "traceid", v.TraceID, "dropped", dropped)
	}()

	// Starting a ticker to send a ping message over the websocket.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	// Block waiting for events from the blockchain or ticker.
	for {
		select {
		case e, wd := <-ch:

			// If the channel is closed, release the websocket.
			if !wd {
				return nil
			}

			data, err := json.Marshal(e)
			if err != nil {
				return err
			}

			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

func (h Handlers) toTx(tran database.SignedTx) tx {
	t := tx{
		Hash:    tran.Hash(),
		Inputs:  tran.Raw.Inputs,
		Outputs: make([]output, len(tran.Raw.Outputs)),
		Sig:     hexutil.Encode(tran.Signature),
	}

	if from, err := tran.From(); err == nil {
		t.From = from.Hex()
		t.FromName = h.NS.Lookup(from)
	}

	for i, out := range tran.Raw.Outputs {
		t.Outputs[i] = output{
			Recipient:     out.Recipient,
			RecipientName: h.NS.Lookup(out.Recipient),
			Value:         out.Value,
		}
	}

	return t
}

func status(s string) any {
	return struct {
		Status string `json:"status"`
	}{
		Status: s,
	}
}
