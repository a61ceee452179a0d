// Command listener subscribes to a chat topic over the gossip middleware and
// prints every message an executor dispatches to it.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/fastQM/rclmesh"
	"github.com/fastQM/rclmesh/internal/chatmsg"
	"github.com/fastQM/rclmesh/internal/democli"
	"github.com/fastQM/rclmesh/rmw/gossip"
)

func main() {
	nodeName := flag.String("node", "listener", "node name")
	namespace := flag.String("namespace", "", "node namespace")
	topic := flag.String("topic", "chatter", "topic to subscribe to")
	listen := flag.StringSlice("listen", nil, "listen multiaddrs")
	bootstrap := flag.StringSlice("bootstrap", nil, "bootstrap peer multiaddrs")
	mdns := flag.Bool("mdns", true, "enable mDNS discovery")
	rendezvous := flag.String("rendezvous", "rclmesh", "mDNS rendezvous string")
	identityKey := flag.String("identity-key", "", "path to a persistent identity key")
	qosFile := flag.String("qos-file", "", "YAML file with named QoS profiles")
	qosProfile := flag.String("qos-profile", "", "profile name to use from --qos-file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	qos, err := democli.ResolveQoS(*qosFile, *qosProfile)
	if err != nil {
		logger.Error("resolve qos", "err", err)
		os.Exit(1)
	}

	mw := gossip.New(gossip.Options{
		ListenAddrs:     *listen,
		Bootstrap:       *bootstrap,
		EnableMDNS:      *mdns,
		Rendezvous:      *rendezvous,
		IdentityKeyFile: *identityKey,
		Logger:          logger,
	})
	rctx, err := rclmesh.Init(os.Args, mw, rclmesh.WithLogger(logger))
	if err != nil {
		logger.Error("init context", "err", err)
		os.Exit(1)
	}
	defer rctx.Close()

	node, err := rclmesh.NewNode(rctx, *nodeName, *namespace)
	if err != nil {
		logger.Error("create node", "err", err)
		os.Exit(1)
	}
	defer node.Close()

	sub, err := rclmesh.NewSubscription(node, *topic, qos, func(m *chatmsg.Chat) {
		logger.Info("received", "seq", m.Seq, "from", m.From, "text", m.Text, "sent", m.Sent)
	})
	if err != nil {
		logger.Error("create subscription", "err", err)
		os.Exit(1)
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := rclmesh.NewExecutor(rclmesh.WithExecutorLogger(logger))
	exec.AddNode(node)
	if err := exec.Spin(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("spin", "err", err)
		os.Exit(1)
	}
}
