// Command fontanad runs a Fontana rollup node: the UTXO ledger, block
// sequencer, DA poster, and bridge handler wired together behind the
// single-writer core described in SPEC_FULL.md §5.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fontana-rollup/fontana/internal/bridge"
	"github.com/fontana-rollup/fontana/internal/config"
	"github.com/fontana-rollup/fontana/internal/da"
	"github.com/fontana-rollup/fontana/internal/da/mockda"
	"github.com/fontana-rollup/fontana/internal/genesis"
	"github.com/fontana-rollup/fontana/internal/ledger"
	"github.com/fontana-rollup/fontana/internal/sequencer"
	"github.com/fontana-rollup/fontana/internal/storage"
	"github.com/fontana-rollup/fontana/internal/telemetry"
	"github.com/fontana-rollup/fontana/internal/writer"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fontanad:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	if err := telemetry.Init(cfg.LogFile); err != nil {
		return err
	}
	defer telemetry.Close()
	if err := telemetry.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}
	log := telemetry.Get(telemetry.NODE)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	genesisHeader, err := genesis.Load(store, cfg.GenesisPath)
	if err != nil {
		return err
	}
	log.WithField("state_root", genesisHeader.StateRoot.String()).Info("genesis ready")

	l, err := ledger.New(store, cfg.HistoricalRootsKept)
	if err != nil {
		return err
	}

	coreWriter := writer.New(l, 256)

	seq := sequencer.New(l, store, sequencer.Config{
		BlockInterval: cfg.BlockInterval(),
		MaxBatch:      cfg.MaxBatch,
	})

	var daClient da.Client
	var baseNamespace da.Namespace
	if cfg.DANamespace == "" {
		log.Warn("no da-namespace configured; using an in-memory mock DA client")
		daClient = mockda.New()
	} else {
		baseNamespace, err = da.ParseBaseNamespace(cfg.DANamespace)
		if err != nil {
			return err
		}
		// A real DA client implementation (gRPC/HTTP to the DA node at
		// cfg.DANodeURL with cfg.DAAuthToken) is out of scope per §1; fall
		// back to the mock so the node still runs end to end locally.
		daClient = mockda.New()
	}
	poster := da.NewPoster(daClient, store, da.PosterConfig{BaseNamespace: baseNamespace})

	bridgeHandler := bridge.New(store, coreWriter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		coreWriter.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(cfg.BlockInterval())
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				// Routed through the core writer so block construction
				// (height bump, state root observation) is serialized
				// with any concurrently-applying transaction, per §5.
				err := coreWriter.Submit(groupCtx, func(_ *ledger.Ledger) error {
					_, err := seq.BuildBlock()
					return err
				})
				if err != nil && groupCtx.Err() == nil {
					log.WithError(err).Error("failed to build block")
				}
			}
		}
	})
	group.Go(func() error {
		poster.Run(groupCtx)
		return nil
	})
	_ = bridgeHandler // wired to a VaultEventSource by an external deployment; see DESIGN.md

	if err := group.Wait(); err != nil {
		return err
	}
	log.Info("fontanad stopped")
	return nil
}
