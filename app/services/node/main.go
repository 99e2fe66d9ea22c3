package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powchain/app/services/node/handlers"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/p2p"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/ardanlabs/powchain/foundation/blockchain/state"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/logger"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		State struct {
			MinerName        string        `conf:"default:miner1"`
			GenesisFile      string        `conf:"help:json file with the genesis parameters or empty for the built in values"`
			Workers          int           `conf:"default:4"`
			InboundSize      int           `conf:"default:1000"`
			KnownPeers       []string      `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
			PeerInterval     time.Duration `conf:"default:10s"`
			MiningLambda     time.Duration `conf:"default:500ms"`
			AutoMine         bool          `conf:"default:false"`
			GenerateInterval time.Duration `conf:"default:0s"`
		}
		P2P struct {
			RateLimit      float64 `conf:"default:500"`
			RateBurst      int     `conf:"default:100"`
			SendQueueSize  int     `conf:"default:256"`
			KnownHashCache int     `conf:"default:4096"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work utxo node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for addresses. The
	// names come from the file names in the key folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load name service: %w", err)
	}

	// Need to load the private key file for the configured miner so the
	// address can get credited with the block rewards.
	minerKey, err := ns.LoadOrCreate(cfg.State.MinerName)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}

	// Logging the addresses for documentation in the logs.
	for addr, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", addr)
	}

	// =========================================================================
	// Blockchain Support

	gen := genesis.Default()
	if cfg.State.GenesisFile != "" {
		if gen, err = genesis.Load(cfg.State.GenesisFile); err != nil {
			return fmt.Errorf("unable to load genesis: %w", err)
		}
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// A peer set is a collection of known nodes in the network so
	// transactions and blocks can be shared.
	peerSet := peer.NewPeerSet()
	for _, host := range cfg.State.KnownPeers {
		peerSet.Add(peer.New(host))
	}

	// The p2p server owns the websocket connections to the peers and
	// delivers every message they send on one inbound queue.
	network := p2p.New(p2p.Config{
		Host:           cfg.Web.PrivateHost,
		KnownPeers:     peerSet,
		InboundSize:    cfg.State.InboundSize,
		SendQueueSize:  cfg.P2P.SendQueueSize,
		RateLimit:      rate.Limit(cfg.P2P.RateLimit),
		RateBurst:      cfg.P2P.RateBurst,
		KnownHashCache: cfg.P2P.KnownHashCache,
		EvHandler:      ev,
	})
	defer network.Shutdown()

	// The state value represents the blockchain node and manages the ledger
	// and mempool and provides an API for application support.
	st, err := state.New(state.Config{
		Genesis:   gen,
		MinerKey:  minerKey,
		Network:   network,
		EvHandler: ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	log.Infow("startup", "status", "blockchain", "miner", st.MinerAddress(), "genesis", database.Genesis(gen).Hash())

	// The worker package implements the message workers, the miner, the
	// transaction generator and peer updates. The worker will register
	// itself with the state.
	wrk := worker.Run(st, worker.Config{
		Workers:          cfg.State.Workers,
		Inbound:          network.Inbound(),
		Network:          network,
		PeerInterval:     cfg.State.PeerInterval,
		GenerateInterval: cfg.State.GenerateInterval,
		Recipients:       ns.Addresses,
		EvHandler:        ev,
	})

	if cfg.State.AutoMine {
		wrk.SignalStartMining(cfg.State.MiningLambda)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 2)

	muxCfg := handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Worker:   wrk,
		Net:      network,
		NS:       ns,
		Evts:     evts,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for peer requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking both listeners to shut down and shed load at the same time.
		var g errgroup.Group
		for name, srv := range map[string]*http.Server{"public": &public, "private": &private} {
			g.Go(func() error {
				log.Infow("shutdown", "status", "shutdown "+name+" API started")
				if err := srv.Shutdown(ctx); err != nil {
					srv.Close()
					return fmt.Errorf("could not stop %s service gracefully: %w", name, err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	return nil
}
