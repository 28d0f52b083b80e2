// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adxyz/slotbid/pkg/api"
	"github.com/adxyz/slotbid/pkg/bank"
	"github.com/adxyz/slotbid/pkg/coordinator"
	"github.com/adxyz/slotbid/pkg/eventlog"
	"github.com/adxyz/slotbid/pkg/ledger"
	"github.com/adxyz/slotbid/pkg/log"
	"github.com/adxyz/slotbid/pkg/metric"
	"github.com/adxyz/slotbid/pkg/registry"
	"github.com/adxyz/slotbid/pkg/settlement"
	"github.com/adxyz/slotbid/pkg/storage"
	"github.com/adxyz/slotbid/pkg/verify"
)

var (
	port        = flag.String("port", "8080", "API server port")
	adminPort   = flag.String("admin-port", "9090", "Admin server port (metrics, health)")
	env         = flag.String("env", "development", "Environment (development/production)")
	logLevel    = flag.String("log-level", "info", "Log level")
	dbBackend   = flag.String("db", "badger", "Storage backend (memory/badger)")
	dbPath      = flag.String("db-path", "./data/slotbid", "Storage path for the badger backend")
	scale       = flag.Int("scale", 18, "Decimal places of the display token")
	currency    = flag.String("currency", "AUSD", "Currency code reported by the API")
	verifierURL = flag.String("verifier", "", "Content verifier endpoint (empty accepts all creatives)")
	gatewayURL  = flag.String("creative-gateway", "https://ipfs.io/ipfs", "Content store gateway for creative URLs")
	origins     = flag.String("cors-origins", "", "Comma-separated allowed CORS origins (empty allows all)")
	feeNum      = flag.Uint64("fee-num", settlement.DefaultPolicy.FeeNum, "Total fee numerator")
	feeDen      = flag.Uint64("fee-den", settlement.DefaultPolicy.FeeDen, "Total fee denominator")
	ownerNum    = flag.Uint64("owner-num", settlement.DefaultPolicy.OwnerNum, "Owner share numerator")
	ownerDen    = flag.Uint64("owner-den", settlement.DefaultPolicy.OwnerDen, "Owner share denominator")
)

func main() {
	flag.Parse()

	logger := log.NewWithLevel(*logLevel)
	defer logger.Sync()

	store, err := storage.New(*dbBackend, *dbPath)
	if err != nil {
		logger.Fatal("failed to open storage", log.Error(err))
	}
	defer store.Close()

	events, err := eventlog.Open(store, logger)
	if err != nil {
		logger.Fatal("failed to open event log", log.Error(err))
	}

	reg, err := registry.Open(store, events, logger)
	if err != nil {
		logger.Fatal("failed to open slot registry", log.Error(err))
	}

	funds := bank.New(logger)

	var verifier verify.Verifier = verify.AllowAll
	if *verifierURL != "" {
		verifier = verify.NewHTTPVerifier(*verifierURL, 5*time.Second)
	}

	policy := settlement.Policy{
		FeeNum:   *feeNum,
		FeeDen:   *feeDen,
		OwnerNum: *ownerNum,
		OwnerDen: *ownerDen,
	}

	led, err := ledger.New(ledger.Config{
		Registry: reg,
		Store:    store,
		Events:   events,
		Funds:    funds,
		Verifier: verifier,
		Policy:   policy,
		Accounts: ledger.DefaultAccounts,
		Log:      logger,
	})
	if err != nil {
		logger.Fatal("failed to open bid ledger", log.Error(err))
	}

	metrics, err := metric.NewMetrics()
	if err != nil {
		logger.Fatal("failed to create metrics", log.Error(err))
	}

	coord := coordinator.New(coordinator.Config{
		Registry: reg,
		Ledger:   led,
		Events:   events,
		Metrics:  metrics,
		Log:      logger,
	})

	var allowOrigins []string
	if *origins != "" {
		allowOrigins = strings.Split(*origins, ",")
	}

	server := api.NewServer(api.Config{
		Coordinator:     coord,
		Bank:            funds,
		Log:             logger,
		Scale:           int32(*scale),
		Currency:        *currency,
		CreativeGateway: *gatewayURL,
		AllowOrigins:    allowOrigins,
		Production:      *env == "production",
	})

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: server.Router(),
	}
	adminSrv := &http.Server{
		Addr:    ":" + *adminPort,
		Handler: adminRouter(metrics),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", log.Error(err))
		}
	}()
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("admin server failed", log.Error(err))
		}
	}()

	logger.Info("slotbid daemon started",
		log.String("port", *port),
		log.String("admin_port", *adminPort),
		log.String("db", *dbBackend),
		log.Int("slots", reg.Len()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("API server shutdown", log.Error(err))
	}
	if err := adminSrv.Shutdown(ctx); err != nil {
		logger.Error("admin server shutdown", log.Error(err))
	}
}

func adminRouter(metrics *metric.Metrics) http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetGatherer(), promhttp.HandlerOpts{}))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}
