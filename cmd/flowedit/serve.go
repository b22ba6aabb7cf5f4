package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rendis/flowedit/internal/editor"
	"github.com/rendis/flowedit/internal/panel"
	"github.com/rendis/flowedit/internal/validation"
	"github.com/rendis/flowedit/pkg/mcp"
)

func runServe(ctx context.Context, cfg Config, args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	noStore := fs.Bool("no-store", false, "run without the draft store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// stdout carries the MCP transport; logs go to stderr.
	logger := newLogger(cfg)

	cat, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	v, err := validation.New(cat)
	if err != nil {
		return err
	}
	schemas, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}

	deps := mcp.ServerDeps{
		Editor:  editor.New(editor.Config{Catalog: cat, Validator: v, Logger: logger}),
		Schemas: schemas,
		Logger:  logger,
		Version: version,
	}
	if !*noStore {
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		deps.Store = st
	}

	logger.Info("mcp server starting", "version", version, "tasks", cat.Len(), "store", !*noStore)
	if err := mcp.NewServer(deps).Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runPreview(ctx context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "TCP listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(cfg)
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cat, err := loadCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	v, err := validation.New(cat)
	if err != nil {
		return err
	}

	p := panel.NewPanelServer(panel.PanelDeps{
		Store:     st,
		Catalog:   cat,
		Validator: v,
		Logger:    logger,
	})
	srv := &http.Server{
		Addr:              *listenAddr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	fmt.Fprintf(stdout, "preview API listening on %s\n", *listenAddr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("preview API shutting down")
	return srv.Shutdown(shutdownCtx)
}
