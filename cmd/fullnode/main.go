// Command fullnode runs the block-synchronization sync daemon: it
// hosts a libp2p peer, serves the five sync protocols against a
// storage Reader, joins the block-announcement gossip topic, and exposes a debug
// HTTP mux.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/starkfull/node/core/p2p"
	"github.com/starkfull/node/core/sync"
	"github.com/starkfull/node/core/sync/memstore"
	"github.com/starkfull/node/pkg/config"
)

func main() {
	root := &cobra.Command{
		Use:   "fullnode",
		Short: "zkrollup sync node",
	}
	root.AddCommand(runCmd(), initConfigCmd())
	if err := root.Execute(); err != nil {
		logrus.WithError(err).Fatal("fullnode: fatal error")
	}
}

func initConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteDefault(out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "default.yaml", "path to write the default config")
	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the sync daemon",
		RunE:  runFullnode,
	}
}

func runFullnode(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logrus.WithError(err).Warn("fullnode: no config file found, using built-in defaults")
		d := config.Default()
		cfg = &d
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	log := logrus.WithField("component", "fullnode")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, err := libp2p.New(libp2p.ListenAddrStrings(cfg.Network.ListenAddr))
	if err != nil {
		return err
	}
	defer host.Close()

	for _, addr := range cfg.Network.BootstrapPeers {
		log.WithField("peer", addr).Info("fullnode: bootstrap peer configured (dialing left to the discovery layer)")
	}

	upgrader := p2p.NewUpgrader(host,
		p2p.ProtoHeaders, p2p.ProtoBodies, p2p.ProtoTransactions, p2p.ProtoReceipts, p2p.ProtoEvents)
	behaviour := p2p.NewBehaviour(upgrader, cfg.Network.PerPeerLimit, log)

	store := memstore.New()
	server := sync.NewServer(store, cfg.Sync.Workers, cfg.Sync.QueueCapacity, log)
	defer server.Close()

	behaviour.ListenAndServe(ctx, protocolRouter(server))

	ps, err := pubsub.NewGossipSub(ctx, host)
	if err != nil {
		return err
	}
	announcer, err := p2p.NewAnnouncer(ctx, ps, log)
	if err != nil {
		return err
	}
	defer announcer.Close()

	mux := chi.NewRouter()
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/debug/peers", func(w http.ResponseWriter, r *http.Request) {
		for _, p := range host.Network().Peers() {
			_, _ = w.Write([]byte(p.String() + "\n"))
		}
	})

	httpServer := &http.Server{Addr: cfg.Debug.HTTPAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("fullnode: debug http server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"peer_id": host.ID().String(),
		"listen":  cfg.Network.ListenAddr,
		"debug":   cfg.Debug.HTTPAddr,
	}).Info("fullnode: running")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("fullnode: shutting down")
	_ = httpServer.Close()
	cancel()
	return nil
}

// protocolRouter dispatches an inbound request to the handler for its
// negotiated protocol ID with a single map lookup, avoiding a
// virtual-call hierarchy per protocol.
func protocolRouter(server *sync.Server) p2p.Dispatcher {
	byProtocol := map[string]p2p.Dispatcher{
		p2p.ProtoHeaders:      sync.DispatchFor(server, "headers", sync.HeaderHandler),
		p2p.ProtoBodies:       sync.DispatchFor(server, "bodies", sync.BodyHandler),
		p2p.ProtoTransactions: sync.DispatchFor(server, "transactions", sync.TransactionsHandler),
		p2p.ProtoReceipts:     sync.DispatchFor(server, "receipts", sync.ReceiptsHandler),
		p2p.ProtoEvents:       sync.DispatchFor(server, "events", sync.EventsHandler),
	}

	return func(ctx context.Context, from peer.ID, protocolID string, request []byte, fw *p2p.FrameWriter) error {
		handler, ok := byProtocol[protocolID]
		if !ok {
			return fmt.Errorf("fullnode: no handler registered for protocol %s", protocolID)
		}
		return handler(ctx, from, protocolID, request, fw)
	}
}
