package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rendis/flowedit/internal/catalog"
	"github.com/rendis/flowedit/internal/logging"
	"github.com/rendis/flowedit/internal/store"
	"github.com/rendis/flowedit/internal/validation"
	"github.com/rendis/flowedit/pkg/schema"
	"golang.org/x/sync/errgroup"
)

func runPull(ctx context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pull", flag.ContinueOnError)
	concurrency := fs.Int("concurrency", 4, "flows fetched in parallel")
	withCatalog := fs.Bool("catalog", false, "also write the remote task catalog to the catalog file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	logger := newLogger(cfg)
	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if *withCatalog {
		tasks, err := c.Tasks(ctx)
		if err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		data, err := json.MarshalIndent(tasks, "", "  ")
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(cfg.CatalogPath), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.CatalogPath, data, 0o644); err != nil {
			return fmt.Errorf("write catalog: %w", err)
		}
		fmt.Fprintf(stdout, "catalog\t%d tasks\t%s\n", len(tasks), cfg.CatalogPath)
	}

	ids := fs.Args()
	if len(ids) == 0 {
		flows, err := c.Flows(ctx)
		if err != nil {
			return fmt.Errorf("list flows: %w", err)
		}
		for _, f := range flows {
			ids = append(ids, f.ID)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for _, id := range ids {
		g.Go(func() error {
			doc, err := c.Flow(gctx, id)
			if err != nil {
				return fmt.Errorf("fetch flow %s: %w", id, err)
			}
			if doc == nil {
				return schema.NewErrorf(schema.ErrCodeNotFound, "flow %s not found", id)
			}
			rec, err := st.SaveFlow(gctx, *doc)
			if err != nil {
				return fmt.Errorf("save flow %s: %w", id, err)
			}
			logging.LogWith(logging.WithFlowID(gctx, rec.ID), logger).Debug("flow pulled", "revision", rec.Revision)

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(stdout, "%s\t%s\trevision %d\n", rec.ID, rec.Document.Name, rec.Revision)
			return nil
		})
	}
	return g.Wait()
}

func runPush(ctx context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, _, err := readFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	if doc.ID == "" {
		created, err := c.CreateFlow(ctx, doc.Name, doc.Description)
		if err != nil {
			return fmt.Errorf("create flow: %w", err)
		}
		doc.ID = created.ID
	}
	updated, err := c.UpdateFlow(ctx, doc)
	if err != nil {
		return fmt.Errorf("update flow %s: %w", doc.ID, err)
	}
	fmt.Fprintf(stdout, "%s\t%s\n", updated.ID, updated.Name)
	for _, fe := range updated.Errors {
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", fe.Code, strings.Join(fe.Origin, "."), fe.Message)
	}
	return nil
}

func runRun(ctx context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	inputsJSON := fs.String("inputs", "{}", "execution inputs as a JSON object")
	skipCheck := fs.Bool("no-check", false, "skip local input validation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := fs.Arg(0)
	if id == "" {
		return errors.New("flow id is required")
	}

	var inputs map[string]schema.Value
	if err := json.Unmarshal([]byte(*inputsJSON), &inputs); err != nil {
		return fmt.Errorf("decode inputs: %w", err)
	}

	c, err := newClient(cfg)
	if err != nil {
		return err
	}

	if !*skipCheck {
		doc, err := c.Flow(ctx, id)
		if err != nil {
			return fmt.Errorf("fetch flow %s: %w", id, err)
		}
		if doc == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "flow %s not found", id)
		}
		// Input checks only read the flow's variables.
		v, err := validation.New(catalog.New(nil))
		if err != nil {
			return err
		}
		if result := v.ValidateInputs(*doc, inputs); !result.Valid() {
			for _, fe := range result.Errors {
				fmt.Fprintf(stdout, "%s\t%s\t%s\n", fe.Code, strings.Join(fe.Origin, "."), fe.Message)
			}
			return fmt.Errorf("inputs of flow %s are invalid", id)
		}
	}

	executionID, err := c.RunFlow(ctx, id, inputs)
	if err != nil {
		return fmt.Errorf("run flow %s: %w", id, err)
	}
	fmt.Fprintln(stdout, executionID)
	return nil
}

// openStore opens the draft store and applies pending migrations.
func openStore(ctx context.Context, cfg Config) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
