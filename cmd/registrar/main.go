// Command registrar runs the voter-registration HTTP service of spec.md
// §4.10: certifies a voter's verification key once, rejecting re-registration.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/distvote/evote/keyfile"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/service"
	"github.com/distvote/evote/storage"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 9091
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "serve" {
		fmt.Fprintln(os.Stderr, "usage: registrar serve [flags]")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, cfg.LogOutput, nil)
	log.Infow("starting registrar", "host", cfg.Host, "port", cfg.Port)

	keys, err := keyfile.LoadOrGenerateIdentity(cfg.KeyFile)
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}

	database, err := metadb.New(db.TypePebble, filepath.Join(cfg.DataDir, "registrar-db"))
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	stg := storage.New(database)

	svc := service.NewRegistrarService(stg, keys, cfg.Host, cfg.Port)
	if err := svc.Start(); err != nil {
		log.Fatalf("failed to start registrar: %v", err)
	}
	defer svc.Stop()

	log.Infow("registrar public key", "key", hex.EncodeToString(keys.PublicBytes()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

type config struct {
	Host      string
	Port      int
	KeyFile   string
	DataDir   string
	LogLevel  string
	LogOutput string
}

func loadConfig(args []string) (*config, error) {
	v := viper.New()
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)

	fs.String("host", defaultHost, "listen host")
	fs.Int("port", defaultPort, "listen port")
	fs.String("keyfile", "registrar.key", "path to the registrar's signing key file")
	fs.String("datadir", ".registrar", "data directory for the registrar's store")
	fs.String("loglevel", "info", "log level (debug, info, warn, error)")
	fs.String("logoutput", "stderr", "log output (stdout, stderr or filepath)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("REGISTRAR")
	v.AutomaticEnv()

	return &config{
		Host:      v.GetString("host"),
		Port:      v.GetInt("port"),
		KeyFile:   v.GetString("keyfile"),
		DataDir:   v.GetString("datadir"),
		LogLevel:  v.GetString("loglevel"),
		LogOutput: v.GetString("logoutput"),
	}, nil
}
