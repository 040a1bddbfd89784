// Command daugherty-ledgerd serves a certification ledger over gRPC.
//
// Flags take precedence over LEDGERD_* environment variables. The daemon
// supports two backends: a localfs ledger (one file per transaction) and a
// pebble ledger for larger anchoring volumes.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/caarlos0/env/v11"
	"google.golang.org/grpc"

	"daugherty.co/certify/ledger"
	"daugherty.co/certify/ledger/grpcledger"
	"daugherty.co/certify/ledger/localfs"
	"daugherty.co/certify/ledger/pebbleledger"
)

type config struct {
	Listen  string `env:"LEDGERD_LISTEN" envDefault:"127.0.0.1:7846"`
	Backend string `env:"LEDGERD_BACKEND" envDefault:"localfs"`
	DataDir string `env:"LEDGERD_DATA_DIR" envDefault:"./ledgerd-data"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("parse environment", "error", err)
		return 2
	}

	fs := flag.NewFlagSet("daugherty-ledgerd", flag.ExitOnError)
	listen := fs.String("listen", cfg.Listen, "listen address")
	backend := fs.String("backend", cfg.Backend, "ledger backend: localfs or pebble")
	dataDir := fs.String("data-dir", cfg.DataDir, "ledger data directory")
	_ = fs.Parse(args)

	var (
		backendLedger ledger.Client
		closeFn       func() error
	)
	switch *backend {
	case "localfs":
		l, err := localfs.New(*dataDir)
		if err != nil {
			logger.Error("open localfs ledger", "dir", *dataDir, "error", err)
			return 2
		}
		backendLedger = l
	case "pebble":
		l, err := pebbleledger.Open(*dataDir)
		if err != nil {
			logger.Error("open pebble ledger", "dir", *dataDir, "error", err)
			return 2
		}
		backendLedger = l
		closeFn = l.Close
	default:
		fmt.Fprintf(os.Stderr, "unknown backend %q (expected localfs or pebble)\n", *backend)
		return 2
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Error("listen", "addr", *listen, "error", err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpcledger.RegisterLedgerServer(s, &grpcledger.Server{Backend: backendLedger})

	logger.Info("daugherty-ledgerd listening", "addr", lis.Addr().String(), "backend", *backend, "data_dir", *dataDir)
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "error", err)
		return 1
	}
	return 0
}
