package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mvisser/groupledger/internal/api"
	"github.com/mvisser/groupledger/internal/service"
	"github.com/mvisser/groupledger/internal/storage/sqlite"
	"github.com/mvisser/groupledger/pkg/logging"
)

type config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/ledger.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DBPath)

	ledger := service.NewLedgerService(store)
	server := api.NewServer(ledger)

	// h2c enables HTTP/2 without TLS for clients that want it.
	handler := h2c.NewHandler(server.Router(), &http2.Server{})

	slog.Info("server starting", "address", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
