package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/clarkflip/pf-verify/internal/api"
	"github.com/clarkflip/pf-verify/internal/config"
	"github.com/clarkflip/pf-verify/internal/engine"
	"github.com/clarkflip/pf-verify/internal/events"
	"github.com/clarkflip/pf-verify/internal/kvstore"
	"github.com/clarkflip/pf-verify/internal/logger"
	"github.com/clarkflip/pf-verify/internal/store"
)

// app carries the resolved configuration into every subcommand.
type app struct {
	configPath string
	logLevel   string
	float      string
	jsonOut    bool

	cfg  *config.Config
	conv engine.FloatConvention
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "pfverify",
		Short:        "Recompute and verify provably fair coinflip, squares and blackjack rounds",
		Version:      api.EngineVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&a.float, "float", "", "float convention: 64bit (cli) or 52bit (browser)")
	pf.BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		newCommitCmd(a),
		newCoinflipCmd(a),
		newSquaresCmd(a),
		newBlackjackCmd(a),
		newVerifyCmd(a),
		newScanCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads config, applies flag overrides and installs the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.float != "" {
		conv, err := engine.ParseFloatConvention(a.float)
		if err != nil {
			return err
		}
		cfg.Engine.FloatConvention = string(conv)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger.Init(&logger.Options{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Writer:     cmd.ErrOrStderr(),
		TimeFormat: cfg.Log.TimeFormat,
	})

	a.cfg = cfg
	a.conv = cfg.Convention()
	return nil
}

// openStore opens the run database, or returns nil when none is configured.
func (a *app) openStore() (store.DB, error) {
	if a.cfg.Store.Path == "" {
		return nil, nil
	}
	db, err := store.NewSQLiteDB(a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// requireStore is openStore for commands that cannot run without one.
func (a *app) requireStore() (store.DB, error) {
	db, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("no run store configured: set store.path or PFV_STORE_PATH")
	}
	return db, nil
}

// openCache opens the badger outcome cache. The returned close func is
// always safe to call.
func (a *app) openCache() (*kvstore.OutcomeCache, func(), error) {
	var (
		kv  *kvstore.BadgerStore
		err error
	)
	switch {
	case a.cfg.Cache.InMemory:
		kv, err = kvstore.NewMemoryStore("pfverify")
	case a.cfg.Cache.Dir != "":
		kv, err = kvstore.NewBadgerStore(a.cfg.Cache.Dir, "pfverify")
	default:
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	return kvstore.NewOutcomeCache(kv, a.cfg.Cache.TTL), func() { kv.Close() }, nil
}

// openPublisher connects to NATS when a URL is configured.
func (a *app) openPublisher() (events.Publisher, error) {
	if a.cfg.NATS.URL == "" {
		return events.NopPublisher{}, nil
	}
	return events.NewNATSPublisher(a.cfg.NATS.URL, a.cfg.NATS.SubjectPrefix)
}

// emit prints v as indented JSON when --json is set, otherwise calls text.
func (a *app) emit(w io.Writer, v any, text func(io.Writer) error) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
