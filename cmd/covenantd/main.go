// Command covenantd runs the escrow engine with its transition journal,
// metrics, and read API. Parties and balances are bootstrapped from the
// config file; mutations are driven through the engine library.
package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slyt3/Covenant/internal/api"
	"github.com/slyt3/Covenant/internal/bank"
	"github.com/slyt3/Covenant/internal/config"
	"github.com/slyt3/Covenant/internal/escrow"
	"github.com/slyt3/Covenant/internal/journal"
	"github.com/slyt3/Covenant/internal/logging"
	"github.com/slyt3/Covenant/internal/metrics"
	"github.com/slyt3/Covenant/internal/registry"
	"github.com/slyt3/Covenant/internal/stream"
)

func main() {
	configPath := flag.String("config", "covenant.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Log.Error().Err(err).Msg("loading config failed")
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	jrnl, err := journal.Open(cfg.DBPath, cfg.KeyPath)
	if err != nil {
		logging.Log.Error().Err(err).Msg("opening journal failed")
		os.Exit(1)
	}
	defer jrnl.Close()
	logging.Log.Info().
		Str("journal_id", jrnl.JournalID()).
		Str("public_key", jrnl.PublicKey()).
		Msg("journal ready")

	ledger := bank.New()
	reg := registry.New()
	for _, p := range cfg.Parties {
		reg.Register(p.Address)
		if p.Balance > 0 {
			ledger.Mint(p.Address, p.Balance)
		}
	}

	opts := []escrow.Option{
		escrow.WithRecorder(jrnl),
		escrow.WithRecorder(metrics.NewCollector(ledger, escrow.DefaultVaultAccount)),
	}
	if cfg.RedisAddr != "" {
		publisher, err := stream.New(cfg.RedisAddr, stream.DefaultStreamKey, 1024)
		if err != nil {
			logging.Log.Error().Err(err).Msg("starting event publisher failed")
			os.Exit(1)
		}
		defer publisher.Close()
		opts = append(opts, escrow.WithRecorder(publisher))
		logging.Log.Info().Str("redis", cfg.RedisAddr).Msg("event stream enabled")
	}

	engine, err := escrow.NewEngine(ledger, reg, escrow.Params{
		MaxReward: cfg.MaxReward,
		PostFee:   cfg.PostFee,
		FeeBps:    cfg.FeeBps,
		Windows: escrow.Windows{
			Open:      cfg.OpenWindow.Std(),
			Progress:  cfg.ProgressWindow.Std(),
			Review:    cfg.ReviewWindow.Std(),
			Terminate: cfg.TerminateWindow.Std(),
		},
	}, opts...)
	if err != nil {
		logging.Log.Error().Err(err).Msg("creating engine failed")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.NewHandlers(engine, ledger, jrnl).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	logging.Log.Info().Str("addr", cfg.ListenAddr).Msg("covenantd listening")
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logging.Log.Error().Err(err).Msg("http server failed")
		os.Exit(1)
	}
}
