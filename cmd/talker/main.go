// Command talker publishes chat messages on a topic over the gossip
// middleware. Point listeners at its bootstrap address (logged at startup)
// or run both with --mdns on one network.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fastQM/rclmesh"
	"github.com/fastQM/rclmesh/internal/chatmsg"
	"github.com/fastQM/rclmesh/internal/democli"
	"github.com/fastQM/rclmesh/rmw/gossip"
)

func main() {
	nodeName := flag.String("node", "talker", "node name")
	namespace := flag.String("namespace", "", "node namespace")
	topic := flag.String("topic", "chatter", "topic to publish on")
	from := flag.String("from", "talker", "sender name stamped on messages")
	rate := flag.Duration("rate", time.Second, "publish interval")
	count := flag.Int64("count", 0, "messages to publish before exiting (0 = until interrupted)")
	listen := flag.StringSlice("listen", nil, "listen multiaddrs")
	bootstrap := flag.StringSlice("bootstrap", nil, "bootstrap peer multiaddrs")
	mdns := flag.Bool("mdns", true, "enable mDNS discovery")
	rendezvous := flag.String("rendezvous", "rclmesh", "mDNS rendezvous string")
	identityKey := flag.String("identity-key", "", "path to a persistent identity key")
	qosFile := flag.String("qos-file", "", "YAML file with named QoS profiles")
	qosProfile := flag.String("qos-profile", "", "profile name to use from --qos-file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger, runConfig{
		nodeName:    *nodeName,
		namespace:   *namespace,
		topic:       *topic,
		from:        *from,
		rate:        *rate,
		count:       *count,
		listen:      *listen,
		bootstrap:   *bootstrap,
		mdns:        *mdns,
		rendezvous:  *rendezvous,
		identityKey: *identityKey,
		qosFile:     *qosFile,
		qosProfile:  *qosProfile,
	}); err != nil {
		logger.Error("talker failed", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	nodeName    string
	namespace   string
	topic       string
	from        string
	rate        time.Duration
	count       int64
	listen      []string
	bootstrap   []string
	mdns        bool
	rendezvous  string
	identityKey string
	qosFile     string
	qosProfile  string
}

func run(logger *slog.Logger, cfg runConfig) error {
	qos, err := democli.ResolveQoS(cfg.qosFile, cfg.qosProfile)
	if err != nil {
		return err
	}

	mw := gossip.New(gossip.Options{
		ListenAddrs:     cfg.listen,
		Bootstrap:       cfg.bootstrap,
		EnableMDNS:      cfg.mdns,
		Rendezvous:      cfg.rendezvous,
		IdentityKeyFile: cfg.identityKey,
		Logger:          logger,
	})
	rctx, err := rclmesh.Init(os.Args, mw, rclmesh.WithLogger(logger))
	if err != nil {
		return err
	}
	defer rctx.Close()

	node, err := rclmesh.NewNode(rctx, cfg.nodeName, cfg.namespace)
	if err != nil {
		return err
	}
	defer node.Close()

	pub, err := rclmesh.NewPublisher[chatmsg.Chat](node, cfg.topic, qos)
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(cfg.rate)
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		seq++
		m := chatmsg.Chat{Seq: seq, From: cfg.from, Text: fmt.Sprintf("hello %d", seq), Sent: time.Now()}
		if err := pub.Publish(&m); err != nil {
			logger.Error("publish", "seq", seq, "err", err)
			continue
		}
		logger.Info("published", "topic", cfg.topic, "seq", seq)
		if cfg.count > 0 && seq >= cfg.count {
			return nil
		}
	}
}
