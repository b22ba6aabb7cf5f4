package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rendis/flowedit/internal/catalog"
	"github.com/rendis/flowedit/internal/client"
	"github.com/rendis/flowedit/internal/diagram"
	"github.com/rendis/flowedit/internal/layout"
	"github.com/rendis/flowedit/internal/logging"
	"github.com/rendis/flowedit/internal/query"
	"github.com/rendis/flowedit/internal/tasktree"
	"github.com/rendis/flowedit/internal/validation"
	"github.com/rendis/flowedit/pkg/schema"
)

func runInit(_ context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	apiURL := fs.String("api-url", cfg.APIURL, "base URL of the remote flow API")
	dbPath := fs.String("db-path", cfg.DBPath, "draft store path")
	catalogPath := fs.String("catalog", cfg.CatalogPath, "task catalog file")
	listenAddr := fs.String("listen-addr", cfg.ListenAddr, "preview API listen address")
	logLevel := fs.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	timeout := fs.Int("timeout", cfg.TimeoutSeconds, "remote API timeout in seconds")
	path := fs.String("settings", settingsPath(), "settings file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	out := Config{
		APIURL:         *apiURL,
		DBPath:         *dbPath,
		LogLevel:       *logLevel,
		CatalogPath:    *catalogPath,
		ListenAddr:     *listenAddr,
		TimeoutSeconds: *timeout,
	}
	if err := writeConfig(*path, out); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	fmt.Fprintf(stdout, "Config written to %s\n", *path)
	return nil
}

func runLayout(ctx context.Context, _ Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("layout", flag.ContinueOnError)
	format := fs.String("format", "json", "output format: json, ascii, mermaid, png")
	output := fs.String("o", "", "write to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, _, err := readFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	tree, err := tasktree.FromAPI(doc.Tasks)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	d := layout.New().Layout(tree)

	var data []byte
	switch *format {
	case "json":
		if data, err = json.MarshalIndent(d, "", "  "); err != nil {
			return err
		}
		data = append(data, '\n')
	case "ascii":
		data = []byte(diagram.RenderASCII(d))
	case "mermaid":
		data = []byte(diagram.RenderMermaid(d))
	case "png":
		if *output == "" {
			return errors.New("png output needs -o")
		}
		if data, err = diagram.RenderImage(ctx, d); err != nil {
			return fmt.Errorf("render image: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q", *format)
	}

	if *output != "" {
		return os.WriteFile(*output, data, 0o644)
	}
	_, err = stdout.Write(data)
	return err
}

func runValidate(ctx context.Context, cfg Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	catalogPath := fs.String("catalog", cfg.CatalogPath, "task catalog file")
	asJSON := fs.Bool("json", false, "print errors as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, raw, err := readFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	cfg.CatalogPath = *catalogPath
	cat, err := loadCatalog(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	v, err := validation.New(cat)
	if err != nil {
		return err
	}

	result := &schema.ValidationResult{}
	if err := v.ValidateDocument(raw); err != nil {
		for _, msg := range structuralErrors(err) {
			result.AddError(schema.ErrCodeValidation, msg)
		}
	} else {
		result = v.Validate(doc)
	}

	if *asJSON {
		errs := result.Errors
		if errs == nil {
			errs = []schema.FlowError{}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(errs); err != nil {
			return err
		}
	} else {
		for _, fe := range result.Errors {
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", fe.Code, strings.Join(fe.Origin, "."), fe.Message)
		}
	}
	if !result.Valid() {
		return fmt.Errorf("flow %q has %d validation errors", doc.Name, len(result.Errors))
	}
	if !*asJSON {
		fmt.Fprintf(stdout, "flow %q is valid\n", doc.Name)
	}
	return nil
}

func runQuery(ctx context.Context, _ Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	expression := fs.String("e", ".", "jq expression")
	if err := fs.Parse(args); err != nil {
		return err
	}

	doc, _, err := readFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	results, err := query.Run(ctx, *expression, doc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// readFlow reads a flow document from path, or stdin when path is "" or "-".
func readFlow(path string) (schema.FlowAPI, []byte, error) {
	var doc schema.FlowAPI
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return doc, nil, fmt.Errorf("read flow: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, nil, fmt.Errorf("decode flow: %w", err)
	}
	return doc, data, nil
}

// loadCatalog reads the catalog file, falling back to the remote API and
// then to an empty catalog.
func loadCatalog(ctx context.Context, cfg Config, logger *slog.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err == nil {
		return cat, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if cfg.APIURL == "" {
		logger.Warn("no task catalog found, using an empty one", "path", cfg.CatalogPath)
		return catalog.New(nil), nil
	}

	c, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	logger.Info("task catalog fetched", "tasks", len(tasks))
	return catalog.New(tasks), nil
}

func newClient(cfg Config) (*client.Client, error) {
	return client.New(client.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout()})
}

func newLogger(cfg Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.LogLevel)
}

// structuralErrors lists the messages of a document schema error.
func structuralErrors(err error) []string {
	var se *schema.Error
	if errors.As(err, &se) {
		if msgs, ok := se.Details["violations"].([]string); ok && len(msgs) > 0 {
			return msgs
		}
	}
	return []string{err.Error()}
}
