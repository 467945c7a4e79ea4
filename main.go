package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"

	"groups/config"
	"groups/logging"
	"groups/metrics"
	"groups/solver"
	"groups/store"
)

func main() {
	fs := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("server configuration", zap.Error(err))
	}
	mode, err := solver.ParseMode(cfg.Build.Mode)
	if err != nil {
		log.Fatal("build mode", zap.Error(err))
	}

	st, err := store.Open(context.Background(), cfg.Server.PGConn, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()
	log.Info("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := &server{
		store: st,
		auth: &auth{
			clientID: cfg.Server.ClientID,
			secret:   []byte(cfg.Server.ClientSecret),
			admins:   cfg.Server.Admins,
			validate: idtoken.Validate,
			log:      log,
		},
		metrics:     metrics.New(reg),
		log:         log,
		defaultMode: mode,
		defaultSeed: cfg.Build.Seed,
	}
	mux := srv.routes(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	log.Info("listening", zap.String("addr", cfg.Server.ListenAddr))
	if err := http.ListenAndServe(cfg.Server.ListenAddr, mux); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
